package engine

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/listsync/internal/item"
)

// loadPlan describes one anchored load cycle.
type loadPlan struct {
	op     string
	anchor item.Anchor

	// restore is the item to scroll to once the page is rendered, and edge
	// the viewport edge it is aligned to. A nil restore scrolls to the
	// newest or oldest edge instead.
	restore *item.ID
	edge    item.End

	// known holds ends already known to be exhausted before the fetch.
	known []item.End
}

// InitialLoad resolves the anchor and loads the first page. A load that is
// already in flight makes this a no-op.
func (l *List) InitialLoad(ctx context.Context) error {
	if l.loading {
		l.logger.Debug("initial load ignored: load in flight")
		return nil
	}
	l.startCycle(ctx)
	a := l.resolver.Resolve(l.dir.Direction(), l.win)
	plan := loadPlan{op: "initial_load", anchor: a}
	if a.HasHash {
		plan.restore = a.ItemID
		plan.edge = item.Top
	}
	return l.runLoad(ctx, plan)
}

// ReloadItems discards the window and loads it again around where it was.
// Without a deep link or persisted anchor the former extreme at the load
// end is re-fetched and restored.
func (l *List) ReloadItems(ctx context.Context) error {
	dir := l.dir.Direction()
	min, hasMin := l.win.Min()
	max, hasMax := l.win.Max()
	oppositeReached := l.trigger.Reached(dir.Opposite())

	l.Reset()
	l.startCycle(ctx)

	var bounds shiftedBounds
	if hasMin && hasMax {
		bounds = shiftedBounds{min: min - 1, max: max + 1, ok: true}
	}
	a := l.resolver.Resolve(dir, bounds)
	plan := loadPlan{op: "reload", anchor: a}
	switch {
	case a.HasHash:
		plan.restore = a.ItemID
		plan.edge = item.Top
	case a.ItemID != nil:
		former := max
		if dir == item.Bottom {
			former = min
		}
		plan.restore = item.Ref(former)
		plan.edge = dir.Opposite()
		if oppositeReached {
			plan.known = append(plan.known, dir.Opposite())
		}
	}
	return l.runLoad(ctx, plan)
}

// shiftedBounds widens captured window bounds by one id on each side, so a
// cursor load strictly beyond them includes the former extremes.
type shiftedBounds struct {
	min, max item.ID
	ok       bool
}

func (b shiftedBounds) Min() (item.ID, bool) { return b.min, b.ok }
func (b shiftedBounds) Max() (item.ID, bool) { return b.max, b.ok }

func (l *List) startCycle(ctx context.Context) {
	l.cycle = l.tokens.Generate()
	if err := l.resolver.Prepare(ctx); err != nil {
		// A broken anchor store degrades to the default anchor.
		l.logger.Warn("anchor store unavailable", "cycle", l.cycle, "error", err)
	}
}

// runLoad fetches the page for plan, commits it, aligns the viewport and
// schedules the boundary observer.
func (l *List) runLoad(ctx context.Context, plan loadPlan) error {
	gen := l.generation
	dir := l.dir.Direction()

	req := item.PageRequest{
		ListID:    l.caps.ListID,
		Anchor:    plan.anchor.ItemID,
		Direction: dir,
		HasHash:   plan.anchor.HasHash,
		PageSize:  l.cfg.PageSize,
		Filter:    l.cfg.Filter,
	}
	l.logger.Debug("load starting",
		"op", plan.op,
		"cycle", l.cycle,
		"anchor", plan.anchor.String(),
		"direction", dir.String(),
	)

	l.loading = true
	page, err := l.fetch(ctx, req)
	if gen != l.generation {
		l.logger.Debug("stale load dropped", "op", plan.op, "cycle", l.cycle)
		return nil
	}
	l.loading = false
	if err != nil {
		return l.fail(ctx, plan.op, err)
	}
	l.err = nil

	l.win.Append(page.Items, item.Bottom)
	for _, end := range plan.known {
		l.trigger.MarkReached(end)
	}
	switch {
	case plan.anchor.ItemID == nil:
		// Unanchored: Top asks for the newest page, Bottom for the oldest.
		l.trigger.MarkReached(dir.Opposite())
		if page.Exhausted {
			l.trigger.MarkReached(dir)
		}
	case !plan.anchor.HasHash:
		if page.Exhausted {
			l.trigger.MarkReached(dir)
		}
	}
	l.isFirstLoad = false
	l.commit(ctx)
	if gen != l.generation {
		return nil
	}
	l.reduce(dir)

	if plan.restore != nil {
		if !l.caps.Viewport.ScrollTo(*plan.restore, plan.edge) {
			return l.anchorMissing(ctx, plan)
		}
		if plan.anchor.HasHash {
			l.resolver.Consumed()
		}
		l.retries.Reset()
	} else if id, ok := l.win.Extreme(dir.Opposite()); ok {
		l.caps.Viewport.ScrollTo(id, dir.Opposite())
	}

	l.scheduleObserver(gen)
	l.logger.Info("list loaded",
		"op", plan.op,
		"cycle", l.cycle,
		"items", l.win.Len(),
		"reached_top", l.trigger.Reached(item.Top),
		"reached_bottom", l.trigger.Reached(item.Bottom),
	)
	return nil
}

// anchorMissing handles an anchor that is not rendered after its load. An
// explicit anchor gets one full reload with the default anchor and its
// persisted entry cleared; after that the list gives up and stays where it
// is.
func (l *List) anchorMissing(ctx context.Context, plan loadPlan) error {
	missing := *plan.restore
	if !plan.anchor.HasHash {
		l.logger.Debug("restore item gone; keeping position", "op", plan.op, "id", int64(missing))
		l.scheduleObserver(l.generation)
		return nil
	}

	if err := l.retries.Take(l.caps.ListID); err != nil {
		l.logger.Warn("anchor not found; giving up",
			"op", plan.op,
			"cycle", l.cycle,
			"id", int64(missing),
			"error", newAnchorNotFoundError(l.caps.ListID, err),
		)
		l.resolver.Consumed()
		l.scheduleObserver(l.generation)
		return nil
	}

	l.logger.Info("anchor not found; reloading with default anchor",
		"op", plan.op,
		"cycle", l.cycle,
		"id", int64(missing),
	)
	if err := l.resolver.Forget(ctx); err != nil {
		l.logger.Warn("clear persisted anchor failed", "error", err)
	}
	l.resetState()
	l.cycle = l.tokens.Generate()
	a := l.resolver.Resolve(l.dir.Direction(), l.win)
	return l.runLoad(ctx, loadPlan{op: "anchor_retry", anchor: a})
}

// LoadTop loads the next older page.
func (l *List) LoadTop(ctx context.Context) error {
	return l.loadMore(ctx, item.Top)
}

// LoadBottom loads the next newer page.
func (l *List) LoadBottom(ctx context.Context) error {
	return l.loadMore(ctx, item.Bottom)
}

func (l *List) loadMore(ctx context.Context, end item.End) error {
	op := "load_" + end.String()
	switch {
	case l.loading:
		l.logger.Debug("load ignored: load in flight", "op", op)
		return nil
	case l.isFirstLoad:
		l.logger.Debug("load ignored: list not loaded", "op", op)
		return nil
	case l.trigger.Reached(end):
		l.logger.Debug("load ignored: end reached", "op", op)
		return nil
	}

	restore, ok := l.win.Extreme(end)
	if !ok {
		// Everything loaded was deleted; start over from the anchor.
		l.resetState()
		return l.InitialLoad(ctx)
	}

	gen := l.generation
	freezer, _ := l.caps.Viewport.(Freezer)
	if freezer != nil {
		freezer.Freeze()
	}
	thaw := func() {
		if freezer != nil {
			freezer.Thaw()
		}
	}

	l.loading = true
	page, err := l.fetch(ctx, item.PageRequest{
		ListID:    l.caps.ListID,
		Anchor:    item.Ref(restore),
		Direction: end,
		PageSize:  l.cfg.PageSize,
		Filter:    l.cfg.Filter,
	})
	if gen != l.generation {
		thaw()
		l.logger.Debug("stale load dropped", "op", op)
		return nil
	}
	l.loading = false
	if err != nil {
		thaw()
		return l.fail(ctx, op, err)
	}
	l.err = nil

	if page.Exhausted {
		l.trigger.MarkReached(end)
	}
	l.win.Append(page.Items, end)
	l.commit(ctx)
	if gen != l.generation {
		thaw()
		return nil
	}

	if l.cfg.EvictBeforeRestore {
		if l.reduce(end) {
			l.commit(ctx)
		}
		l.caps.Viewport.ScrollTo(restore, end)
	} else {
		l.caps.Viewport.ScrollTo(restore, end)
		if l.reduce(end) {
			l.commit(ctx)
		}
	}
	thaw()

	l.logger.Debug("page loaded",
		"op", op,
		"items", len(page.Items),
		"exhausted", page.Exhausted,
		"len", l.win.Len(),
	)
	l.trigger.Rearm()
	return nil
}

// fetch wraps the fetcher with timing and metrics.
func (l *List) fetch(ctx context.Context, req item.PageRequest) (item.Page, error) {
	start := time.Now()
	page, err := l.caps.Fetcher.FetchPage(ctx, req)
	l.metrics.ObserveFetch("cursor", time.Since(start), err)
	return page, err
}

// fail records a fetch failure without touching the window.
func (l *List) fail(ctx context.Context, op string, err error) error {
	ferr := newFetchError(op, l.caps.ListID, err)
	l.err = ferr
	l.logger.Warn("fetch failed", "op", op, "cycle", l.cycle, "error", err)
	if !errors.Is(err, context.Canceled) {
		l.commit(ctx)
	}
	return ferr
}

// scheduleObserver connects the boundary trigger once layout has settled.
func (l *List) scheduleObserver(gen uint64) {
	stopTimer(&l.observerTimer)
	l.observerTimer = l.sched.AfterFunc(l.cfg.ObserverDelay, func() {
		l.observerTimer = nil
		if gen != l.generation {
			return
		}
		l.trigger.Connect()
		l.logger.Debug("boundary observer connected")
	})
}
