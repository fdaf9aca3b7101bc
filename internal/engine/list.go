package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/listsync/internal/anchor"
	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/loop"
	"github.com/roach88/listsync/internal/metrics"
	"github.com/roach88/listsync/internal/reconcile"
	"github.com/roach88/listsync/internal/scroll"
	"github.com/roach88/listsync/internal/window"
)

// List is one mounted list instance.
//
// INVARIANTS:
//   - The window never holds two items with the same id
//   - The window is within its cap whenever no load is between append and
//     reduce
//   - At most one LoadTop/LoadBottom is in flight
//   - Nothing scheduled before a Reset mutates the list after it
type List struct {
	cfg     Config
	caps    Capabilities
	logger  *slog.Logger
	sched   loop.Scheduler
	metrics *metrics.Metrics
	tokens  CycleTokenGenerator
	base    context.Context

	win      *window.Store
	dir      *scroll.Controller
	trigger  *scroll.Trigger
	resolver *anchor.Resolver
	retries  *anchor.RetryBudget
	rec      *reconcile.Reconciler
	rev      Revision

	isFirstLoad bool
	loading     bool
	err         error
	cycle       string
	generation  uint64

	observerTimer loop.Timer
	capTimer      loop.Timer
}

// Option configures a List.
type Option func(*List)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(lst *List) {
		if l != nil {
			lst.logger = l
		}
	}
}

// WithScheduler sets the scheduler for debounce, observer and cap timers.
// Its callbacks must run on the list's goroutine; pass the session loop.
// Default: loop.SystemScheduler{}, which is only safe for single-goroutine
// tools that never let a timer fire concurrently with a call.
func WithScheduler(s loop.Scheduler) Option {
	return func(lst *List) {
		if s != nil {
			lst.sched = s
		}
	}
}

// WithMetrics records fetches, evictions and events to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(lst *List) {
		lst.metrics = m
	}
}

// WithCycleTokens sets the load cycle token generator.
// Default: UUIDv7Generator.
func WithCycleTokens(g CycleTokenGenerator) Option {
	return func(lst *List) {
		if g != nil {
			lst.tokens = g
		}
	}
}

// WithContext sets the context used for work the list starts on its own:
// trigger-initiated loads and timer-driven commits. Default:
// context.Background().
func WithContext(ctx context.Context) Option {
	return func(lst *List) {
		if ctx != nil {
			lst.base = ctx
		}
	}
}

// New validates the configuration and capability set and creates an empty
// list. Nothing is fetched until InitialLoad.
func New(cfg Config, caps Capabilities, opts ...Option) (*List, error) {
	if err := caps.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, newConfigError(caps.ListID, err)
	}

	l := &List{
		cfg:         cfg,
		caps:        caps,
		logger:      slog.Default(),
		sched:       loop.SystemScheduler{},
		tokens:      UUIDv7Generator{},
		base:        context.Background(),
		isFirstLoad: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("list", caps.ListID)

	reduceTo := cfg.ReduceTo
	if reduceTo == 0 {
		reduceTo = cfg.MaxItems
	}
	l.win = window.New(cfg.MaxItems, window.WithReduceTo(reduceTo), window.WithLogger(l.logger))
	l.dir = scroll.NewController(cfg.InitialDirection, cfg.DirectionSamples)
	l.trigger = scroll.NewTrigger(triggerHost{l}, l.sched, cfg.TriggerDebounce, l.logger)
	l.resolver = anchor.NewResolver(caps.ListID, caps.Anchors, caps.Hash, l.logger)
	l.retries = anchor.NewRetryBudget(cfg.AnchorRetries)
	l.rec = reconcile.New(reconcile.WithLogger(l.logger), reconcile.WithDedupeWindow(cfg.DedupeWindow))
	return l, nil
}

// ListID returns the list identity.
func (l *List) ListID() string { return l.caps.ListID }

// Config returns the configuration the list was created with.
func (l *List) Config() Config { return l.cfg }

// Direction returns the end the list is extending toward.
func (l *List) Direction() item.End { return l.dir.Direction() }

// Loading reports whether a fetch is in flight.
func (l *List) Loading() bool { return l.loading }

// State returns a snapshot of the list.
func (l *List) State() State {
	return State{
		ListID:        l.caps.ListID,
		Items:         l.win.Items(),
		IsFirstLoad:   l.isFirstLoad,
		Loading:       l.loading,
		Direction:     l.dir.Direction(),
		ReachedTop:    l.trigger.Reached(item.Top),
		ReachedBottom: l.trigger.Reached(item.Bottom),
		Revision:      l.rev.Current(),
		Err:           l.err,
		Cycle:         l.cycle,
	}
}

// OnScroll samples a scroll offset and reports whether the direction
// flipped. A flip re-arms the boundary trigger so a sentinel that is
// already visible at the new end is acted on.
func (l *List) OnScroll(offset float64) bool {
	if !l.dir.Sample(offset) {
		return false
	}
	l.logger.Debug("direction flipped", "direction", l.dir.Direction().String())
	l.trigger.Rearm()
	return true
}

// OnSentinel records a sentinel visibility change.
func (l *List) OnSentinel(end item.End, visible bool) {
	l.trigger.SetVisible(end, visible)
}

// OnBoundaryItem persists id as the visible boundary so a later reload
// resumes near it.
func (l *List) OnBoundaryItem(ctx context.Context, id item.ID) error {
	if err := l.resolver.Remember(ctx, id); err != nil {
		l.logger.Warn("remember anchor failed", "id", int64(id), "error", err)
		return err
	}
	return nil
}

// Navigate replaces the deep-link source. It takes effect on the next
// InitialLoad or ReloadItems.
func (l *List) Navigate(hash anchor.HashSource) {
	l.resolver.Navigate(hash)
}

// Reset tears the list down to its freshly mounted state: the observer is
// disconnected, pending debounce and timers are cancelled, the window and
// delivery history are cleared, and anything still in flight is dropped
// when it completes. The direction is kept.
func (l *List) Reset() {
	l.resetState()
	l.retries.Reset()
	l.commit(l.base)
}

func (l *List) resetState() {
	l.generation++
	l.trigger.Reset()
	stopTimer(&l.observerTimer)
	stopTimer(&l.capTimer)
	l.win.Clear()
	l.rec.Forget()
	l.dir.Reset()
	l.isFirstLoad = true
	l.loading = false
	l.err = nil
	l.logger.Debug("list reset", "generation", l.generation)
}

func stopTimer(t *loop.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// commit stamps a new revision and hands the state to the viewport.
// Viewport failures are logged; the list state is already consistent.
func (l *List) commit(ctx context.Context) {
	l.rev.Next()
	st := l.State()
	l.metrics.WindowSize(len(st.Items))
	if err := l.caps.Viewport.Commit(ctx, st); err != nil {
		l.logger.Warn("viewport commit failed", "revision", st.Revision, "error", err)
	}
}

// reduce applies the cap after a load or append at end. Eviction from the
// opposite end means that end has more data again.
func (l *List) reduce(end item.End) bool {
	evicted := l.win.ReduceIfOverCap(end)
	if len(evicted) == 0 {
		return false
	}
	l.trigger.ClearReached(end.Opposite())
	l.metrics.Evicted(len(evicted))
	l.logger.Debug("window reduced",
		"end", end.Opposite().String(),
		"evicted", len(evicted),
		"len", l.win.Len(),
	)
	return true
}

// triggerHost adapts a List to scroll.Host without widening its API.
type triggerHost struct{ l *List }

func (h triggerHost) Direction() item.End { return h.l.dir.Direction() }
func (h triggerHost) Busy() bool          { return h.l.loading }

func (h triggerHost) LoadMore(end item.End) {
	// The error is already recorded in State.Err.
	_ = h.l.loadMore(h.l.base, end)
}
