package store

import (
	"context"
	"fmt"

	"github.com/roach88/listsync/internal/item"
)

// EventsSince returns events for listID with seq > after, oldest first.
// A non-positive limit returns all of them.
func (s *Store) EventsSince(ctx context.Context, listID string, after int64, limit int) ([]item.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, list_id, kind, item_id, fields
		FROM events
		WHERE list_id = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, listID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []item.Event
	for rows.Next() {
		var (
			ev         item.Event
			kind       string
			itemID     int64
			fieldsJSON string
		)
		if err := rows.Scan(&ev.Seq, &ev.ListID, &kind, &itemID, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Kind, err = item.ParseEventKind(kind); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		fields, err := unmarshalFields(fieldsJSON)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		ev.Item = item.Item{ID: item.ID(itemID), ListID: ev.ListID, Fields: fields}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// LatestSeq returns the seq of the newest event for listID, or 0.
func (s *Store) LatestSeq(ctx context.Context, listID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE list_id = ?`, listID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return seq, nil
}

// Subscribe streams events for listID as they are written, until ctx ends
// or the subscriber falls too far behind. Callers resume with EventsSince.
func (s *Store) Subscribe(ctx context.Context, listID string) (<-chan item.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ch := s.subs.add(listID)
	watch(ctx, s.mu.Lock, s.mu.Unlock, &s.subs, id)
	return ch, nil
}
