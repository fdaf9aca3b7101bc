package anchor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/listsync/internal/item"
)

var bucketAnchors = []byte("anchors")

// BoltStore keeps anchors in a bbolt file. bbolt serializes writers, so
// concurrent list instances writing the same key cannot race; the last
// committed write wins.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the anchor file at path.
func OpenBolt(path string) (*BoltStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("anchor store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create anchor store dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open anchor store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAnchors)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init anchor store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the file lock.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements Store.
func (s *BoltStore) Get(_ context.Context, listID string) (item.ID, bool, error) {
	var (
		id    item.ID
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAnchors).Get([]byte(listID))
		if raw == nil {
			return nil
		}
		if len(raw) != 8 {
			return fmt.Errorf("corrupt anchor for %s: %d bytes", listID, len(raw))
		}
		id = item.ID(binary.BigEndian.Uint64(raw))
		found = true
		return nil
	})
	return id, found, err
}

// Set implements Store.
func (s *BoltStore) Set(_ context.Context, listID string, id item.ID) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAnchors).Put([]byte(listID), buf[:])
	})
}

// Clear implements Store.
func (s *BoltStore) Clear(_ context.Context, listID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAnchors).Delete([]byte(listID))
	})
}

// List returns every persisted anchor, keyed by list id.
func (s *BoltStore) List(_ context.Context) (map[string]item.ID, error) {
	out := make(map[string]item.ID)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAnchors).ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				out[string(k)] = item.ID(binary.BigEndian.Uint64(v))
			}
			return nil
		})
	})
	return out, err
}
