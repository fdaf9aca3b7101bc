package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/listsync/internal/item"
)

// Memory is an in-process backend with the same contracts as Store.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	lists  map[string][]item.Item
	lastID item.ID
	events []item.Event
	subs   subscribers
}

// NewMemory creates an empty backend.
func NewMemory() *Memory {
	return &Memory{lists: make(map[string][]item.Item)}
}

// Seed inserts items without recording events, for setting up fixtures.
// Existing ids are replaced.
func (m *Memory) Seed(items ...item.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.upsertLocked(it.Clone())
	}
}

// Create assigns the next id to a new item in listID.
func (m *Memory) Create(_ context.Context, listID string, fields item.Fields) (item.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := item.Item{ID: m.lastID + 1, ListID: listID, Fields: fields}
	m.upsertLocked(it.Clone())
	m.appendEventLocked(item.Created, it)
	return it, nil
}

// Put inserts an item with a caller-chosen id. It fails if the id exists.
func (m *Memory) Put(_ context.Context, it item.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, _, ok := m.findLocked(it.ID); ok {
		return fmt.Errorf("put item %d: %w", it.ID, ErrExists)
	}
	m.upsertLocked(it.Clone())
	m.appendEventLocked(item.Created, it)
	return nil
}

// Update replaces an item's fields.
func (m *Memory) Update(_ context.Context, it item.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	listID, i, ok := m.findLocked(it.ID)
	if !ok {
		return fmt.Errorf("update item %d: %w", it.ID, ErrNotFound)
	}
	it.ListID = listID
	m.lists[listID][i] = it.Clone()
	m.appendEventLocked(item.Updated, it)
	return nil
}

// Delete removes an item.
func (m *Memory) Delete(_ context.Context, id item.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	listID, i, ok := m.findLocked(id)
	if !ok {
		return fmt.Errorf("delete item %d: %w", id, ErrNotFound)
	}
	items := m.lists[listID]
	m.lists[listID] = append(items[:i], items[i+1:]...)
	m.appendEventLocked(item.Deleted, item.Item{ID: id, ListID: listID})
	return nil
}

// FetchPage implements the cursor page contract.
func (m *Memory) FetchPage(ctx context.Context, req item.PageRequest) (item.Page, error) {
	if err := ctx.Err(); err != nil {
		return item.Page{}, err
	}
	if err := req.Filter.Validate(); err != nil {
		return item.Page{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return cursorPage(m.filteredLocked(req.ListID, req.Filter), req), nil
}

// FetchNumbered implements the numbered page contract.
func (m *Memory) FetchNumbered(ctx context.Context, q item.Query) (item.Numbered, error) {
	if err := ctx.Err(); err != nil {
		return item.Numbered{}, err
	}
	if err := q.Filter.Validate(); err != nil {
		return item.Numbered{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return numberedPage(m.filteredLocked(q.ListID, q.Filter), q), nil
}

// FetchCount returns how many items match q.
func (m *Memory) FetchCount(ctx context.Context, q item.Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := q.Filter.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.filteredLocked(q.ListID, q.Filter)), nil
}

// FetchCountFiltered counts the items preceding probe in display order.
func (m *Memory) FetchCountFiltered(ctx context.Context, q item.Query, probe item.ID) (item.CountResult, error) {
	if err := ctx.Err(); err != nil {
		return item.CountResult{}, err
	}
	if err := q.Filter.Validate(); err != nil {
		return item.CountResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return countBefore(m.filteredLocked(q.ListID, q.Filter), q, probe), nil
}

// EventsSince returns up to limit events for listID with seq > after.
func (m *Memory) EventsSince(_ context.Context, listID string, after int64, limit int) ([]item.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []item.Event
	start := sort.Search(len(m.events), func(i int) bool { return m.events[i].Seq > after })
	for _, ev := range m.events[start:] {
		if ev.ListID != listID {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// LatestSeq returns the seq of the newest event for listID, or 0.
func (m *Memory) LatestSeq(_ context.Context, listID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].ListID == listID {
			return m.events[i].Seq, nil
		}
	}
	return 0, nil
}

// Subscribe streams events for listID until ctx ends. The channel is
// closed when the subscription ends or falls too far behind.
func (m *Memory) Subscribe(ctx context.Context, listID string) (<-chan item.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ch := m.subs.add(listID)
	watch(ctx, m.mu.Lock, m.mu.Unlock, &m.subs, id)
	return ch, nil
}

// Items returns a copy of a list, for assertions.
func (m *Memory) Items(listID string) []item.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneItems(m.lists[listID])
}

func (m *Memory) filteredLocked(listID string, f item.Filter) []item.Item {
	items := m.lists[listID]
	if f == "" {
		return items
	}
	out := make([]item.Item, 0, len(items))
	for _, it := range items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

func (m *Memory) findLocked(id item.ID) (string, int, bool) {
	for listID, items := range m.lists {
		i := sort.Search(len(items), func(i int) bool { return items[i].ID >= id })
		if i < len(items) && items[i].ID == id {
			return listID, i, true
		}
	}
	return "", 0, false
}

func (m *Memory) upsertLocked(it item.Item) {
	if listID, i, ok := m.findLocked(it.ID); ok {
		items := m.lists[listID]
		m.lists[listID] = append(items[:i], items[i+1:]...)
	}
	items := m.lists[it.ListID]
	i := sort.Search(len(items), func(i int) bool { return items[i].ID >= it.ID })
	items = append(items, item.Item{})
	copy(items[i+1:], items[i:])
	items[i] = it
	m.lists[it.ListID] = items
	if it.ID > m.lastID {
		m.lastID = it.ID
	}
}

func (m *Memory) appendEventLocked(kind item.EventKind, it item.Item) {
	ev := item.Event{
		Seq:    int64(len(m.events) + 1),
		Kind:   kind,
		ListID: it.ListID,
		Item:   it.Clone(),
	}
	m.events = append(m.events, ev)
	m.subs.publish(ev)
}
