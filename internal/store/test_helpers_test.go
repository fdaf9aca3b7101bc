package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/listsync/internal/item"
)

// backend is the surface both stores share.
type backend interface {
	Create(ctx context.Context, listID string, fields item.Fields) (item.Item, error)
	Put(ctx context.Context, it item.Item) error
	Update(ctx context.Context, it item.Item) error
	Delete(ctx context.Context, id item.ID) error
	FetchPage(ctx context.Context, req item.PageRequest) (item.Page, error)
	FetchNumbered(ctx context.Context, q item.Query) (item.Numbered, error)
	FetchCount(ctx context.Context, q item.Query) (int, error)
	FetchCountFiltered(ctx context.Context, q item.Query, probe item.ID) (item.CountResult, error)
	EventsSince(ctx context.Context, listID string, after int64, limit int) ([]item.Event, error)
	LatestSeq(ctx context.Context, listID string) (int64, error)
	Subscribe(ctx context.Context, listID string) (<-chan item.Event, error)
}

var (
	_ backend = (*Store)(nil)
	_ backend = (*Memory)(nil)
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachBackend runs fn against a fresh SQLite store and a fresh Memory.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

// seedList creates n items in listID, tagging every third one "pinned".
func seedList(t *testing.T, b backend, listID string, n int) []item.Item {
	t.Helper()
	out := make([]item.Item, 0, n)
	for i := 1; i <= n; i++ {
		tag := "plain"
		if i%3 == 0 {
			tag = "pinned"
		}
		it, err := b.Create(context.Background(), listID, item.Fields{"n": int64(i), "tag": tag})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		out = append(out, it)
	}
	return out
}
