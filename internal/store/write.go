package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/listsync/internal/item"
)

// Create inserts a new item into listID and appends a created event.
// The id is assigned by SQLite and is greater than every id ever issued.
func (s *Store) Create(ctx context.Context, listID string, fields item.Fields) (item.Item, error) {
	fieldsJSON, err := marshalFields(fields)
	if err != nil {
		return item.Item{}, fmt.Errorf("create item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var it item.Item
	ev, err := s.inTx(ctx, func(tx *sql.Tx) (item.Event, error) {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO items (list_id, fields) VALUES (?, ?)`, listID, fieldsJSON)
		if err != nil {
			return item.Event{}, fmt.Errorf("insert item: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return item.Event{}, fmt.Errorf("last insert id: %w", err)
		}
		it = item.Item{ID: item.ID(id), ListID: listID, Fields: fields}
		return appendEvent(ctx, tx, item.Created, it, fieldsJSON)
	})
	if err != nil {
		return item.Item{}, fmt.Errorf("create item: %w", err)
	}
	s.subs.publish(ev)
	return it, nil
}

// Put inserts an item with a caller-chosen id. It fails with ErrExists if
// the id is taken.
func (s *Store) Put(ctx context.Context, it item.Item) error {
	fieldsJSON, err := marshalFields(it.Fields)
	if err != nil {
		return fmt.Errorf("put item %d: %w", it.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.inTx(ctx, func(tx *sql.Tx) (item.Event, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO items (id, list_id, fields) VALUES (?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, int64(it.ID), it.ListID, fieldsJSON)
		if err != nil {
			return item.Event{}, fmt.Errorf("insert item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return item.Event{}, ErrExists
		}
		return appendEvent(ctx, tx, item.Created, it, fieldsJSON)
	})
	if err != nil {
		return fmt.Errorf("put item %d: %w", it.ID, err)
	}
	s.subs.publish(ev)
	return nil
}

// Update replaces the fields of an existing item. The item keeps its list.
func (s *Store) Update(ctx context.Context, it item.Item) error {
	fieldsJSON, err := marshalFields(it.Fields)
	if err != nil {
		return fmt.Errorf("update item %d: %w", it.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.inTx(ctx, func(tx *sql.Tx) (item.Event, error) {
		listID, err := lookupList(ctx, tx, it.ID)
		if err != nil {
			return item.Event{}, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET fields = ? WHERE id = ?`, fieldsJSON, int64(it.ID)); err != nil {
			return item.Event{}, fmt.Errorf("update item: %w", err)
		}
		it.ListID = listID
		return appendEvent(ctx, tx, item.Updated, it, fieldsJSON)
	})
	if err != nil {
		return fmt.Errorf("update item %d: %w", it.ID, err)
	}
	s.subs.publish(ev)
	return nil
}

// Delete removes an item and appends a deleted event.
func (s *Store) Delete(ctx context.Context, id item.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.inTx(ctx, func(tx *sql.Tx) (item.Event, error) {
		listID, err := lookupList(ctx, tx, id)
		if err != nil {
			return item.Event{}, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, int64(id)); err != nil {
			return item.Event{}, fmt.Errorf("delete item: %w", err)
		}
		return appendEvent(ctx, tx, item.Deleted, item.Item{ID: id, ListID: listID}, "{}")
	})
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	s.subs.publish(ev)
	return nil
}

// inTx runs fn in a transaction and commits when it succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) (item.Event, error)) (item.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return item.Event{}, fmt.Errorf("begin: %w", err)
	}
	ev, err := fn(tx)
	if err != nil {
		tx.Rollback()
		return item.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return item.Event{}, fmt.Errorf("commit: %w", err)
	}
	return ev, nil
}

func lookupList(ctx context.Context, tx *sql.Tx, id item.ID) (string, error) {
	var listID string
	err := tx.QueryRowContext(ctx, `SELECT list_id FROM items WHERE id = ?`, int64(id)).Scan(&listID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup item: %w", err)
	}
	return listID, nil
}

func appendEvent(ctx context.Context, tx *sql.Tx, kind item.EventKind, it item.Item, fieldsJSON string) (item.Event, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO events (list_id, kind, item_id, fields) VALUES (?, ?, ?, ?)
	`, it.ListID, string(kind), int64(it.ID), fieldsJSON)
	if err != nil {
		return item.Event{}, fmt.Errorf("insert event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return item.Event{}, fmt.Errorf("event seq: %w", err)
	}
	return item.Event{Seq: seq, Kind: kind, ListID: it.ListID, Item: it.Clone()}, nil
}
