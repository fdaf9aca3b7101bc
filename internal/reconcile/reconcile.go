// Package reconcile applies pushed create/update/delete notifications to an
// already-loaded list without breaking its ordering or cap.
//
// Reconciliation is idempotent: replacing by id and removing by id are
// naturally repeatable, and numbered deliveries (Seq > 0) are additionally
// suppressed by a bounded history of event keys.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/listsync/internal/item"
)

// Outcome describes what Apply did with an event.
type Outcome int

const (
	// Applied means the target changed.
	Applied Outcome = iota
	// Ignored means the event was valid but changed nothing (absent item,
	// unchanged payload, or a Created event off the newest page).
	Ignored
	// Duplicate means the delivery was seen before.
	Duplicate
	// OutOfScope means the event belongs to another list or filter.
	OutOfScope
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Ignored:
		return "ignored"
	case Duplicate:
		return "duplicate"
	case OutOfScope:
		return "out_of_scope"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Scope identifies the slice of the backend a target represents.
type Scope struct {
	ListID string
	Filter item.Filter
}

// Contains reports whether ev falls inside the scope. Updates and deletes
// are matched by list only, since they address items by id.
func (s Scope) Contains(ev item.Event) bool {
	if ev.ListID != s.ListID {
		return false
	}
	if ev.Kind == item.Created {
		return s.Filter.Match(ev.Item)
	}
	return true
}

// Target is a loaded list surface: the cursor window or a numbered page.
// Each method reports whether it changed anything.
type Target interface {
	Scope() Scope
	Created(ctx context.Context, it item.Item) (bool, error)
	Updated(ctx context.Context, it item.Item) (bool, error)
	Deleted(ctx context.Context, id item.ID) (bool, error)
}

// Reconciler routes events to targets in delivery order.
type Reconciler struct {
	dedupe *Deduper
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDedupeWindow sets how many delivery keys are remembered.
func WithDedupeWindow(n int) Option {
	return func(r *Reconciler) {
		r.dedupe = NewDeduper(n)
	}
}

// New creates a reconciler with a DefaultDedupeWindow history.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		dedupe: NewDeduper(DefaultDedupeWindow),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply reconciles one event against target.
//
// Errors come only from targets that need the backend (a numbered page
// re-querying its count); the delivery key is then not recorded so a
// redelivery can try again.
func (r *Reconciler) Apply(ctx context.Context, t Target, ev item.Event) (Outcome, error) {
	if !t.Scope().Contains(ev) {
		return OutOfScope, nil
	}

	var key string
	if ev.Seq > 0 {
		k, err := ev.Key()
		if err != nil {
			return Ignored, fmt.Errorf("reconcile %s %d: %w", ev.Kind, ev.Item.ID, err)
		}
		if r.dedupe.Seen(k) {
			r.logger.Debug("duplicate delivery suppressed",
				"list", ev.ListID,
				"kind", string(ev.Kind),
				"id", int64(ev.Item.ID),
				"seq", ev.Seq,
			)
			return Duplicate, nil
		}
		key = k
	}

	var (
		changed bool
		err     error
	)
	switch ev.Kind {
	case item.Created:
		changed, err = t.Created(ctx, ev.Item)
	case item.Updated:
		changed, err = t.Updated(ctx, ev.Item)
	case item.Deleted:
		changed, err = t.Deleted(ctx, ev.Item.ID)
	default:
		return Ignored, fmt.Errorf("reconcile: unknown event kind %q", ev.Kind)
	}
	if err != nil {
		return Ignored, fmt.Errorf("reconcile %s %d: %w", ev.Kind, ev.Item.ID, err)
	}

	if key != "" {
		r.dedupe.Record(key)
	}
	if !changed {
		return Ignored, nil
	}
	return Applied, nil
}

// Forget clears the delivery history, e.g. when the list is reset.
func (r *Reconciler) Forget() {
	r.dedupe.Clear()
}
