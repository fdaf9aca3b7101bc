// Package window holds the in-memory, capped, ordered subset of a list that
// is currently loaded for display.
//
// INVARIANTS:
//   - Items are ordered by id ascending
//   - No two items share an id
//   - Len() <= MaxItems() after ReduceIfOverCap returns
//
// Overflow is allowed only between an Append and the following
// ReduceIfOverCap, so that eviction can wait until the view has committed
// the appended items.
//
// A Store is not safe for concurrent use. The owning list engine mutates it
// from a single goroutine.
package window

import (
	"log/slog"
	"sort"

	"github.com/roach88/listsync/internal/item"
)

// DefaultMaxItems is the cap applied when none is configured.
const DefaultMaxItems = 200

// Store is the ordered, deduplicated window of loaded items.
type Store struct {
	items    []item.Item
	index    map[item.ID]struct{}
	maxItems int
	reduceTo int
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithReduceTo sets the length the window is cut down to when it overflows.
// Values outside (0, maxItems] are ignored.
func WithReduceTo(n int) Option {
	return func(s *Store) {
		if n > 0 && n <= s.maxItems {
			s.reduceTo = n
		}
	}
}

// WithLogger sets the logger used to report repaired ordering.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty window capped at maxItems.
// A non-positive maxItems selects DefaultMaxItems.
func New(maxItems int, opts ...Option) *Store {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	s := &Store{
		items:    make([]item.Item, 0, maxItems),
		index:    make(map[item.ID]struct{}, maxItems),
		maxItems: maxItems,
		reduceTo: maxItems,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxItems returns the configured cap.
func (s *Store) MaxItems() int { return s.maxItems }

// Len returns the number of loaded items.
func (s *Store) Len() int { return len(s.items) }

// Contains reports whether an item with id is loaded.
func (s *Store) Contains(id item.ID) bool {
	_, ok := s.index[id]
	return ok
}

// Items returns a copy of the window contents in id order.
func (s *Store) Items() []item.Item {
	out := make([]item.Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

// IDs returns the loaded ids in order.
func (s *Store) IDs() []item.ID {
	return item.IDs(s.items)
}

// Min returns the smallest loaded id.
func (s *Store) Min() (item.ID, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	return s.items[0].ID, true
}

// Max returns the largest loaded id.
func (s *Store) Max() (item.ID, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	return s.items[len(s.items)-1].ID, true
}

// Extreme returns the id at the given end: Min for Top, Max for Bottom.
func (s *Store) Extreme(end item.End) (item.ID, bool) {
	if end == item.Top {
		return s.Min()
	}
	return s.Max()
}

// Append inserts a batch at end. Any loaded item sharing an id with the
// batch is removed first, so the batch always carries the newest payload.
// Within the batch, the last occurrence of an id wins.
//
// The window may exceed MaxItems until ReduceIfOverCap is called.
func (s *Store) Append(batch []item.Item, end item.End) {
	if len(batch) == 0 {
		return
	}

	incoming := make([]item.Item, 0, len(batch))
	pos := make(map[item.ID]int, len(batch))
	for _, it := range batch {
		if i, dup := pos[it.ID]; dup {
			incoming[i] = it.Clone()
			continue
		}
		pos[it.ID] = len(incoming)
		incoming = append(incoming, it.Clone())
	}

	kept := s.items[:0:0]
	for _, it := range s.items {
		if _, replaced := pos[it.ID]; !replaced {
			kept = append(kept, it)
		}
	}

	if end == item.Top {
		s.items = append(incoming, kept...)
	} else {
		s.items = append(kept, incoming...)
	}
	for id := range pos {
		s.index[id] = struct{}{}
	}

	if !sort.SliceIsSorted(s.items, func(i, j int) bool { return s.items[i].ID < s.items[j].ID }) {
		s.logger.Warn("window order repaired after append",
			"end", end.String(),
			"batch", len(incoming),
			"len", len(s.items),
		)
		sort.SliceStable(s.items, func(i, j int) bool { return s.items[i].ID < s.items[j].ID })
	}
}

// ReduceIfOverCap evicts a contiguous run from the end opposite fetchEnd
// when the window holds more than MaxItems, leaving the configured reduce
// target. It returns the evicted ids in window order.
func (s *Store) ReduceIfOverCap(fetchEnd item.End) []item.ID {
	if len(s.items) <= s.maxItems {
		return nil
	}
	drop := len(s.items) - s.reduceTo

	var evicted []item.Item
	if fetchEnd == item.Bottom {
		evicted = s.items[:drop]
		s.items = append(s.items[:0:0], s.items[drop:]...)
	} else {
		evicted = s.items[len(s.items)-drop:]
		s.items = append(s.items[:0:0], s.items[:len(s.items)-drop]...)
	}

	ids := item.IDs(evicted)
	for _, id := range ids {
		delete(s.index, id)
	}
	return ids
}

// Replace swaps in a new payload for a loaded item. It reports false, and
// changes nothing, when the item is not loaded.
func (s *Store) Replace(it item.Item) bool {
	i, ok := s.find(it.ID)
	if !ok {
		return false
	}
	s.items[i] = it.Clone()
	return true
}

// Get returns a copy of a loaded item.
func (s *Store) Get(id item.ID) (item.Item, bool) {
	i, ok := s.find(id)
	if !ok {
		return item.Item{}, false
	}
	return s.items[i].Clone(), true
}

// Remove drops a loaded item. Removing an absent id is a no-op.
func (s *Store) Remove(id item.ID) bool {
	i, ok := s.find(id)
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	return true
}

// Clear empties the window.
func (s *Store) Clear() {
	s.items = s.items[:0]
	clear(s.index)
}

func (s *Store) find(id item.ID) (int, bool) {
	if _, ok := s.index[id]; !ok {
		return 0, false
	}
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i].ID >= id })
	if i < len(s.items) && s.items[i].ID == id {
		return i, true
	}
	return 0, false
}
