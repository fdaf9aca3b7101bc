package window

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listsync/internal/item"
)

func items(ids ...item.ID) []item.Item {
	out := make([]item.Item, len(ids))
	for i, id := range ids {
		out[i] = item.Item{ID: id, ListID: "l", Fields: item.Fields{"v": int64(id)}}
	}
	return out
}

func TestAppendBottomAndTop(t *testing.T) {
	s := New(10)
	s.Append(items(5, 6, 7), item.Bottom)
	s.Append(items(8, 9), item.Bottom)
	s.Append(items(3, 4), item.Top)

	assert.Equal(t, []item.ID{3, 4, 5, 6, 7, 8, 9}, s.IDs())
	min, ok := s.Min()
	require.True(t, ok)
	assert.Equal(t, item.ID(3), min)
	max, ok := s.Max()
	require.True(t, ok)
	assert.Equal(t, item.ID(9), max)
}

func TestAppendReplacesExisting(t *testing.T) {
	s := New(10)
	s.Append(items(1, 2, 3), item.Bottom)

	updated := item.Item{ID: 3, ListID: "l", Fields: item.Fields{"v": "new"}}
	s.Append([]item.Item{updated, {ID: 4, ListID: "l"}}, item.Bottom)

	assert.Equal(t, []item.ID{1, 2, 3, 4}, s.IDs())
	got, ok := s.Get(3)
	require.True(t, ok)
	assert.Equal(t, "new", got.Fields["v"])
}

func TestAppendRepairsOrder(t *testing.T) {
	s := New(10)
	s.Append(items(5, 6), item.Bottom)
	s.Append(items(3), item.Bottom)

	assert.Equal(t, []item.ID{3, 5, 6}, s.IDs())
}

func TestAppendDuplicateWithinBatch(t *testing.T) {
	s := New(10)
	batch := items(1, 2)
	batch = append(batch, item.Item{ID: 2, ListID: "l", Fields: item.Fields{"v": "last"}})
	s.Append(batch, item.Bottom)

	assert.Equal(t, []item.ID{1, 2}, s.IDs())
	got, _ := s.Get(2)
	assert.Equal(t, "last", got.Fields["v"])
}

func TestAppendNeverDuplicates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := New(1000)

	for round := 0; round < 200; round++ {
		n := rng.Intn(6) + 1
		start := item.ID(rng.Intn(60))
		var batch []item.Item
		for i := 0; i < n; i++ {
			batch = append(batch, items(start+item.ID(i))...)
		}
		end := item.Top
		if rng.Intn(2) == 1 {
			end = item.Bottom
		}
		s.Append(batch, end)

		seen := map[item.ID]bool{}
		ids := s.IDs()
		for i, id := range ids {
			require.False(t, seen[id], "duplicate id %d after round %d", id, round)
			seen[id] = true
			if i > 0 {
				require.Less(t, ids[i-1], id, "order broken after round %d", round)
			}
		}
	}
}

func TestReduceEvictsOppositeEnd(t *testing.T) {
	s := New(4)
	s.Append(items(1, 2, 3, 4), item.Bottom)
	s.Append(items(5), item.Bottom)
	assert.Equal(t, 5, s.Len(), "transient overflow before reduce")

	evicted := s.ReduceIfOverCap(item.Bottom)

	assert.Equal(t, []item.ID{1}, evicted)
	assert.Equal(t, []item.ID{2, 3, 4, 5}, s.IDs())
	assert.False(t, s.Contains(1))
}

func TestReduceFromBottomWhenLoadingTop(t *testing.T) {
	s := New(4)
	s.Append(items(3, 4, 5, 6), item.Bottom)
	s.Append(items(1, 2), item.Top)

	evicted := s.ReduceIfOverCap(item.Top)

	assert.Equal(t, []item.ID{5, 6}, evicted)
	assert.Equal(t, []item.ID{1, 2, 3, 4}, s.IDs())
}

func TestReduceTo(t *testing.T) {
	s := New(4, WithReduceTo(2))
	s.Append(items(1, 2, 3, 4), item.Bottom)
	assert.Nil(t, s.ReduceIfOverCap(item.Bottom), "at cap is not over cap")

	s.Append(items(5), item.Bottom)
	evicted := s.ReduceIfOverCap(item.Bottom)
	assert.Equal(t, []item.ID{1, 2, 3}, evicted)
	assert.Equal(t, []item.ID{4, 5}, s.IDs())
}

func TestReduceAlwaysWithinCap(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s := New(8, WithReduceTo(6))
	next := item.ID(100)
	for round := 0; round < 100; round++ {
		end := item.End(rng.Intn(2))
		n := rng.Intn(10) + 1
		var batch []item.Item
		for i := 0; i < n; i++ {
			if end == item.Bottom {
				next++
				batch = append(batch, items(next)...)
			} else {
				batch = append(batch, items(item.ID(rng.Intn(100)))...)
			}
		}
		s.Append(batch, end)
		s.ReduceIfOverCap(end)
		require.LessOrEqual(t, s.Len(), s.MaxItems())
	}
}

func TestReplaceAndRemove(t *testing.T) {
	s := New(10)
	s.Append(items(1, 2, 3), item.Bottom)

	assert.True(t, s.Replace(item.Item{ID: 2, Fields: item.Fields{"v": "x"}}))
	assert.False(t, s.Replace(item.Item{ID: 9}), "absent item is not inserted")
	assert.Equal(t, []item.ID{1, 2, 3}, s.IDs())

	assert.True(t, s.Remove(2))
	assert.False(t, s.Remove(2), "second remove is a no-op")
	assert.Equal(t, []item.ID{1, 3}, s.IDs())
}

func TestEmptyAndClear(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultMaxItems, s.MaxItems())

	_, ok := s.Min()
	assert.False(t, ok)
	_, ok = s.Extreme(item.Bottom)
	assert.False(t, ok)

	s.Append(items(1, 2), item.Bottom)
	top, _ := s.Extreme(item.Top)
	bottom, _ := s.Extreme(item.Bottom)
	assert.Equal(t, item.ID(1), top)
	assert.Equal(t, item.ID(2), bottom)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(1))
}

func TestItemsReturnsCopy(t *testing.T) {
	s := New(10)
	s.Append(items(1), item.Bottom)
	got := s.Items()
	got[0].Fields["v"] = "mutated"

	again, _ := s.Get(1)
	assert.Equal(t, int64(1), again.Fields["v"])
}
