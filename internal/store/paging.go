package store

import (
	"sort"

	"github.com/roach88/listsync/internal/item"
)

// cursorPage cuts a cursor page out of all, which must be sorted by id
// and already filtered.
func cursorPage(all []item.Item, req item.PageRequest) item.Page {
	size := req.PageSize
	if size <= 0 {
		return item.Page{Items: []item.Item{}}
	}

	if req.Anchor != nil && req.HasHash {
		a := *req.Anchor
		split := sort.Search(len(all), func(i int) bool { return all[i].ID >= a })
		before := min(split, size/2)
		after := min(len(all)-split, size-before)
		return item.Page{Items: cloneItems(all[split-before : split+after])}
	}

	var candidates []item.Item
	switch {
	case req.Anchor == nil:
		candidates = all
	case req.Direction == item.Top:
		a := *req.Anchor
		candidates = all[:sort.Search(len(all), func(i int) bool { return all[i].ID >= a })]
	default:
		a := *req.Anchor
		candidates = all[sort.Search(len(all), func(i int) bool { return all[i].ID > a }):]
	}

	exhausted := len(candidates) <= size
	if !exhausted {
		if req.Direction == item.Top {
			candidates = candidates[len(candidates)-size:]
		} else {
			candidates = candidates[:size]
		}
	}
	return item.Page{Items: cloneItems(candidates), Exhausted: exhausted}
}

// numberedPage returns one offset/limit page in display order.
func numberedPage(all []item.Item, q item.Query) item.Numbered {
	display := displayOrder(all, q.NewestFirst)
	start := min(max(q.Offset, 0), len(display))
	end := len(display)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(display))
	}
	return item.Numbered{Items: cloneItems(display[start:end]), Count: len(all)}
}

// countBefore counts the items that precede probe in display order.
func countBefore(all []item.Item, q item.Query, probe item.ID) item.CountResult {
	var res item.CountResult
	for _, it := range all {
		switch {
		case it.ID == probe:
			res.Found = true
		case q.NewestFirst && it.ID > probe, !q.NewestFirst && it.ID < probe:
			res.Count++
		}
	}
	return res
}

func displayOrder(all []item.Item, newestFirst bool) []item.Item {
	if !newestFirst {
		return all
	}
	out := make([]item.Item, len(all))
	for i, it := range all {
		out[len(all)-1-i] = it
	}
	return out
}

func cloneItems(in []item.Item) []item.Item {
	out := make([]item.Item, len(in))
	for i, it := range in {
		out[i] = it.Clone()
	}
	return out
}
