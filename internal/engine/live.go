package engine

import (
	"context"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/reconcile"
)

// Apply reconciles a pushed event into the window and commits if anything
// changed. Events must be applied in delivery order on the list goroutine.
func (l *List) Apply(ctx context.Context, ev item.Event) (reconcile.Outcome, error) {
	out, err := l.rec.Apply(ctx, windowTarget{l}, ev)
	l.metrics.Event(string(ev.Kind), out.String())
	if err != nil {
		l.logger.Warn("event not applied", "kind", string(ev.Kind), "id", int64(ev.Item.ID), "error", err)
		return out, err
	}
	l.logger.Debug("event reconciled",
		"kind", string(ev.Kind),
		"id", int64(ev.Item.ID),
		"seq", ev.Seq,
		"outcome", out.String(),
	)
	if out == reconcile.Applied {
		l.commit(ctx)
	}
	return out, nil
}

// windowTarget applies reconciled events to the list's window.
type windowTarget struct{ l *List }

func (t windowTarget) Scope() reconcile.Scope {
	return reconcile.Scope{ListID: t.l.caps.ListID, Filter: t.l.cfg.Filter}
}

// Created appends at the newest end, but only when the window holds the
// newest page; anywhere else the item would land out of order. The cap is
// re-applied on the next tick, after the append has been rendered.
func (t windowTarget) Created(_ context.Context, it item.Item) (bool, error) {
	l := t.l
	if l.isFirstLoad || !l.trigger.Reached(item.Bottom) {
		return false, nil
	}
	if prev, ok := l.win.Get(it.ID); ok && item.SameContent(prev, it) {
		return false, nil
	}
	l.win.Append([]item.Item{it}, item.Bottom)
	l.scheduleCap()
	return true, nil
}

// Updated replaces a loaded item. Absent or unchanged items are a no-op.
func (t windowTarget) Updated(_ context.Context, it item.Item) (bool, error) {
	prev, ok := t.l.win.Get(it.ID)
	if !ok || item.SameContent(prev, it) {
		return false, nil
	}
	return t.l.win.Replace(it), nil
}

// Deleted removes a loaded item. Absent items are a no-op.
func (t windowTarget) Deleted(_ context.Context, id item.ID) (bool, error) {
	return t.l.win.Remove(id), nil
}

// scheduleCap re-applies the cap after a live append. Live items arrive at
// the bottom, so eviction is from the top.
func (l *List) scheduleCap() {
	if l.capTimer != nil || l.win.Len() <= l.win.MaxItems() {
		return
	}
	gen := l.generation
	l.capTimer = l.sched.AfterFunc(l.cfg.CapDelay, func() {
		l.capTimer = nil
		if gen != l.generation {
			return
		}
		if l.reduce(item.Bottom) {
			l.commit(l.base)
		}
	})
}
