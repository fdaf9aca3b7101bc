package pager

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/reconcile"
)

// Apply reconciles a pushed event into the cached page.
// Nothing is applied before a page has loaded.
func (c *Cache) Apply(ctx context.Context, ev item.Event) (reconcile.Outcome, error) {
	if !c.loaded {
		return reconcile.OutOfScope, nil
	}
	out, err := c.rec.Apply(ctx, pageTarget{c}, ev)
	c.metrics.Event(string(ev.Kind), out.String())
	if err != nil {
		c.logger.Warn("event not applied to page", "kind", string(ev.Kind), "id", int64(ev.Item.ID), "error", err)
		return out, err
	}
	if out == reconcile.Applied {
		c.publish()
	}
	return out, nil
}

type pageTarget struct{ c *Cache }

func (t pageTarget) Scope() reconcile.Scope {
	return reconcile.Scope{ListID: t.c.params.ListID, Filter: t.c.params.Filter}
}

// Created counts the new item and shows it when the newest page is open:
// at the front of page 1 when newest first, or at the end of a last page
// that still has room. An id is counted once per cache.
func (t pageTarget) Created(_ context.Context, it item.Item) (bool, error) {
	c := t.c
	if i := c.index(it.ID); i >= 0 {
		if item.SameContent(c.items[i], it) {
			return false, nil
		}
		c.items[i] = it.Clone()
		return true, nil
	}
	key := it.ID.String()
	if c.counted.Seen(key) {
		return false, nil
	}
	c.counted.Record(key)

	wasLast := c.page >= c.PagesCount()
	c.count++
	switch {
	case c.cfg.NewestFirst && c.page == 1:
		c.items = slices.Insert(c.items, 0, it.Clone())
		if len(c.items) > c.cfg.PageSize {
			c.items = c.items[:c.cfg.PageSize]
		}
	case !c.cfg.NewestFirst && wasLast && len(c.items) < c.cfg.PageSize:
		c.items = append(c.items, it.Clone())
	}
	return true, nil
}

// Updated replaces an item on the page.
func (t pageTarget) Updated(_ context.Context, it item.Item) (bool, error) {
	c := t.c
	i := c.index(it.ID)
	if i < 0 || item.SameContent(c.items[i], it) {
		return false, nil
	}
	c.items[i] = it.Clone()
	return true, nil
}

// Deleted removes an item on the page, refreshes the count and then either
// steps back while the page no longer exists or tops the page up from the
// next one.
func (t pageTarget) Deleted(ctx context.Context, id item.ID) (bool, error) {
	c := t.c
	if c.index(id) < 0 {
		return false, nil
	}

	gen := c.generation
	start := time.Now()
	count, err := c.src.FetchCount(ctx, c.query(0, 0))
	c.metrics.ObserveFetch("count", time.Since(start), err)
	if gen != c.generation {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("refresh count: %w", err)
	}
	if i := c.index(id); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
	c.count = count

	if c.page > 1 && c.page > c.PagesCount() {
		c.logger.Debug("page emptied; stepping back", "page", c.page, "pages", c.PagesCount())
		if err := c.fetchPage(ctx, max(c.PagesCount(), 1)); err != nil {
			return true, err
		}
		return true, nil
	}
	if len(c.items) < c.cfg.PageSize && c.page < c.PagesCount() {
		c.backfill(ctx)
	}
	return true, nil
}

// backfill tops an under-filled page up from the start of the next page.
// Failures are logged; the page is merely short until the next fetch.
func (c *Cache) backfill(ctx context.Context) {
	gen := c.generation
	need := c.cfg.PageSize - len(c.items)
	offset := (c.page-1)*c.cfg.PageSize + len(c.items)

	start := time.Now()
	res, err := c.src.FetchNumbered(ctx, c.query(offset, need))
	c.metrics.ObserveFetch("numbered", time.Since(start), err)
	if gen != c.generation {
		return
	}
	if err != nil {
		c.logger.Warn("backfill failed", "page", c.page, "error", err)
		return
	}
	for _, it := range res.Items {
		if c.index(it.ID) < 0 {
			c.items = append(c.items, it)
		}
	}
	c.count = res.Count
	c.logger.Debug("page backfilled", "page", c.page, "added", len(res.Items))
}

func (c *Cache) index(id item.ID) int {
	return slices.IndexFunc(c.items, func(it item.Item) bool { return it.ID == id })
}
