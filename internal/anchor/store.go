package anchor

import (
	"context"
	"sync"

	"github.com/roach88/listsync/internal/item"
)

// Store persists the last seen item per list identity. Writes for the same
// key replace each other; the latest write wins.
type Store interface {
	Get(ctx context.Context, listID string) (item.ID, bool, error)
	Set(ctx context.Context, listID string, id item.ID) error
	Clear(ctx context.Context, listID string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]item.ID
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]item.ID)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, listID string) (item.ID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.entries[listID]
	return id, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, listID string, id item.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[listID] = id
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context, listID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, listID)
	return nil
}
