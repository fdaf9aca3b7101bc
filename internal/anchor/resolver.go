// Package anchor decides which item a (re)loaded list aligns to and keeps
// the persisted "last seen" position for each list.
//
// Provenance, in priority order:
//  1. an id from the navigational hash (deep link)
//  2. an id persisted in client storage for the list
//  3. the current extreme of the window: max when moving toward Top,
//     min when moving toward Bottom (nil on a first load)
package anchor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/listsync/internal/item"
)

// Extremes exposes the bounds of the loaded window.
type Extremes interface {
	Min() (item.ID, bool)
	Max() (item.ID, bool)
}

// Resolver computes anchors for one list instance.
//
// Not safe for concurrent use; it is owned by the list engine.
type Resolver struct {
	listID string
	store  Store
	hash   HashSource
	logger *slog.Logger

	hashRead   bool
	hashID     *item.ID
	persisted  *item.ID
	remembered *item.ID
}

// NewResolver creates a resolver. store and hash may be nil.
func NewResolver(listID string, store Store, hash HashSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{listID: listID, store: store, hash: hash, logger: logger}
}

// Prepare loads the working copies for a new load cycle. The hash is read
// once per navigation; the persisted entry is re-read every cycle so a
// reload resumes near the last remembered boundary.
func (r *Resolver) Prepare(ctx context.Context) error {
	if !r.hashRead {
		r.hashRead = true
		if r.hash != nil {
			if id, ok := r.hash.HashAnchor(); ok {
				r.hashID = item.Ref(id)
			}
		}
	}

	r.persisted = nil
	if r.store == nil {
		return nil
	}
	id, ok, err := r.store.Get(ctx, r.listID)
	if err != nil {
		return fmt.Errorf("read persisted anchor for %s: %w", r.listID, err)
	}
	if ok {
		r.persisted = item.Ref(id)
		r.remembered = item.Ref(id)
	}
	return nil
}

// Navigate replaces the hash source, e.g. when the user follows a new deep
// link. The next Prepare reads it.
func (r *Resolver) Navigate(hash HashSource) {
	r.hash = hash
	r.hashRead = false
	r.hashID = nil
}

// Resolve returns the anchor for a load toward dir.
func (r *Resolver) Resolve(dir item.End, win Extremes) item.Anchor {
	if r.hashID != nil {
		return item.Anchor{ItemID: item.Ref(*r.hashID), HasHash: true}
	}
	if r.persisted != nil {
		return item.Anchor{ItemID: item.Ref(*r.persisted), HasHash: true}
	}

	var (
		id item.ID
		ok bool
	)
	if dir == item.Top {
		id, ok = win.Max()
	} else {
		id, ok = win.Min()
	}
	if !ok {
		return item.Anchor{}
	}
	return item.Anchor{ItemID: item.Ref(id)}
}

// Consumed drops the hash and persisted working copies after the first
// successful scroll to the anchor. The persisted entry itself is kept.
func (r *Resolver) Consumed() {
	r.hashID = nil
	r.persisted = nil
}

// Remember persists id as the list's visible boundary. Writing the value
// already stored is skipped.
func (r *Resolver) Remember(ctx context.Context, id item.ID) error {
	if r.store == nil {
		return nil
	}
	if r.remembered != nil && *r.remembered == id {
		return nil
	}
	if err := r.store.Set(ctx, r.listID, id); err != nil {
		return fmt.Errorf("persist anchor %d for %s: %w", id, r.listID, err)
	}
	r.remembered = item.Ref(id)
	r.logger.Debug("anchor remembered", "list", r.listID, "id", int64(id))
	return nil
}

// Forget clears both the working copies and the persisted entry. Used when
// the anchored item no longer exists.
func (r *Resolver) Forget(ctx context.Context) error {
	r.hashID = nil
	r.persisted = nil
	r.remembered = nil
	if r.store == nil {
		return nil
	}
	if err := r.store.Clear(ctx, r.listID); err != nil {
		return fmt.Errorf("clear persisted anchor for %s: %w", r.listID, err)
	}
	return nil
}
