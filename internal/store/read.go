package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/listsync/internal/item"
)

// FetchPage returns one cursor page. See the package documentation for
// the anchor and direction rules.
func (s *Store) FetchPage(ctx context.Context, req item.PageRequest) (item.Page, error) {
	if err := req.Filter.Validate(); err != nil {
		return item.Page{}, err
	}
	size := req.PageSize
	if size <= 0 {
		return item.Page{Items: []item.Item{}}, nil
	}
	where, args := scopeClause(req.ListID, req.Filter)

	if req.Anchor != nil && req.HasHash {
		a := int64(*req.Anchor)
		before, err := s.queryItems(ctx,
			`SELECT id, list_id, fields FROM items WHERE `+where+` AND id < ? ORDER BY id DESC LIMIT ?`,
			append(args, a, size/2)...)
		if err != nil {
			return item.Page{}, fmt.Errorf("fetch page: %w", err)
		}
		after, err := s.queryItems(ctx,
			`SELECT id, list_id, fields FROM items WHERE `+where+` AND id >= ? ORDER BY id ASC LIMIT ?`,
			append(args, a, size-len(before))...)
		if err != nil {
			return item.Page{}, fmt.Errorf("fetch page: %w", err)
		}
		reverse(before)
		return item.Page{Items: append(before, after...)}, nil
	}

	query := `SELECT id, list_id, fields FROM items WHERE ` + where
	switch {
	case req.Anchor != nil && req.Direction == item.Top:
		query += ` AND id < ?`
		args = append(args, int64(*req.Anchor))
	case req.Anchor != nil:
		query += ` AND id > ?`
		args = append(args, int64(*req.Anchor))
	}
	if req.Direction == item.Top {
		query += ` ORDER BY id DESC LIMIT ?`
	} else {
		query += ` ORDER BY id ASC LIMIT ?`
	}
	args = append(args, size+1)

	items, err := s.queryItems(ctx, query, args...)
	if err != nil {
		return item.Page{}, fmt.Errorf("fetch page: %w", err)
	}
	exhausted := len(items) <= size
	if !exhausted {
		items = items[:size]
	}
	if req.Direction == item.Top {
		reverse(items)
	}
	return item.Page{Items: items, Exhausted: exhausted}, nil
}

// FetchNumbered returns one offset/limit page in display order with the
// total count. A non-positive limit returns everything from the offset.
func (s *Store) FetchNumbered(ctx context.Context, q item.Query) (item.Numbered, error) {
	count, err := s.FetchCount(ctx, q)
	if err != nil {
		return item.Numbered{}, err
	}
	where, args := scopeClause(q.ListID, q.Filter)
	order := "ASC"
	if q.NewestFirst {
		order = "DESC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	items, err := s.queryItems(ctx,
		`SELECT id, list_id, fields FROM items WHERE `+where+` ORDER BY id `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, max(q.Offset, 0))...)
	if err != nil {
		return item.Numbered{}, fmt.Errorf("fetch numbered: %w", err)
	}
	return item.Numbered{Items: items, Count: count}, nil
}

// FetchCount returns how many items match q.
func (s *Store) FetchCount(ctx context.Context, q item.Query) (int, error) {
	if err := q.Filter.Validate(); err != nil {
		return 0, err
	}
	where, args := scopeClause(q.ListID, q.Filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("fetch count: %w", err)
	}
	return n, nil
}

// FetchCountFiltered counts the items before probe in display order and
// reports whether probe itself is in the filtered list.
func (s *Store) FetchCountFiltered(ctx context.Context, q item.Query, probe item.ID) (item.CountResult, error) {
	if err := q.Filter.Validate(); err != nil {
		return item.CountResult{}, err
	}
	where, args := scopeClause(q.ListID, q.Filter)
	cmp := "<"
	if q.NewestFirst {
		cmp = ">"
	}
	var res item.CountResult
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN id `+cmp+` ? THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(id = ?), 0)
		FROM items WHERE `+where,
		append([]any{int64(probe), int64(probe)}, args...)...,
	).Scan(&res.Count, &res.Found)
	if err != nil {
		return item.CountResult{}, fmt.Errorf("fetch count filtered: %w", err)
	}
	return res, nil
}

// scopeClause builds the WHERE predicate for a list and optional filter.
// A filter matches string fields only; a missing or non-string field reads
// as the empty string.
func scopeClause(listID string, f item.Filter) (string, []any) {
	var b strings.Builder
	args := []any{listID}
	b.WriteString("list_id = ?")
	if field, value, ok := f.Parse(); ok {
		path := "$." + field
		b.WriteString(` AND COALESCE(CASE WHEN json_type(fields, ?) = 'text' THEN json_extract(fields, ?) END, '') = ?`)
		args = append(args, path, path, value)
	}
	return b.String(), args
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]item.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []item.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func scanItem(rows *sql.Rows) (item.Item, error) {
	var (
		id         int64
		listID     string
		fieldsJSON string
	)
	if err := rows.Scan(&id, &listID, &fieldsJSON); err != nil {
		return item.Item{}, fmt.Errorf("scan item: %w", err)
	}
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return item.Item{}, fmt.Errorf("item %d: %w", id, err)
	}
	return item.Item{ID: item.ID(id), ListID: listID, Fields: fields}, nil
}

func reverse(items []item.Item) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
