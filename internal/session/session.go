// Package session wires one mounted list to its backend: a serial loop, the
// list engine, an optional numbered-page dialog and the live subscription.
//
// Every entry point is funnelled onto the loop, so the list, the dialog
// cache and the subscription manager are only ever touched from one
// goroutine. Live events, timer callbacks and caller actions interleave in
// the order they reach the loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/listsync/internal/anchor"
	"github.com/roach88/listsync/internal/engine"
	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/loop"
	"github.com/roach88/listsync/internal/metrics"
	"github.com/roach88/listsync/internal/pager"
	"github.com/roach88/listsync/internal/subscribe"
)

// Backend is everything a session needs from the server side. Both store
// backends and the HTTP client implement it.
type Backend interface {
	engine.Fetcher
	pager.Source
	subscribe.Source
}

// Options configures Start.
type Options struct {
	ListID   string
	Backend  Backend
	Viewport engine.Viewport

	// Anchors and Hash are handed to the list engine. Optional.
	Anchors anchor.Store
	Hash    anchor.HashSource

	List      engine.Config
	Subscribe subscribe.Config

	// Pager enables the numbered-page dialog. Nil disables it.
	Pager *pager.Config

	// OnPagerChange is called on the loop with every dialog state change.
	OnPagerChange func(pager.State)

	// Live disables the subscription when false.
	Live bool

	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Scheduler   loop.Scheduler
	CycleTokens engine.CycleTokenGenerator
}

// Session is a running list. All methods are safe for concurrent use.
type Session struct {
	loop   *loop.Loop
	list   *engine.List
	pages  *pager.Cache
	subs   *subscribe.Manager
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan error
}

// Start builds the session, subscribes to live events and runs the initial
// load. A failed initial load is returned together with the running
// session, whose state carries the error until a reload succeeds.
func Start(ctx context.Context, opts Options) (*Session, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("session: backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("list", opts.ListID)

	loopOpts := []loop.Option{loop.WithLogger(logger)}
	if opts.Scheduler != nil {
		loopOpts = append(loopOpts, loop.WithScheduler(opts.Scheduler))
	}
	lp := loop.New(loopOpts...)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		loop:   lp,
		logger: logger,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan error, 1),
	}

	list, err := engine.New(opts.List, engine.Capabilities{
		ListID:   opts.ListID,
		Fetcher:  opts.Backend,
		Viewport: opts.Viewport,
		Anchors:  opts.Anchors,
		Hash:     opts.Hash,
	},
		engine.WithLogger(opts.Logger),
		engine.WithScheduler(lp),
		engine.WithMetrics(opts.Metrics),
		engine.WithCycleTokens(opts.CycleTokens),
		engine.WithContext(runCtx),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	s.list = list

	if opts.Pager != nil {
		popts := []pager.Option{pager.WithLogger(logger), pager.WithMetrics(opts.Metrics)}
		if opts.OnPagerChange != nil {
			popts = append(popts, pager.WithOnChange(opts.OnPagerChange))
		}
		if s.pages, err = pager.New(*opts.Pager, opts.Backend, popts...); err != nil {
			cancel()
			return nil, err
		}
	}

	if opts.Live {
		s.subs, err = subscribe.New(opts.Subscribe, opts.Backend, lp, lp, s.deliver,
			subscribe.WithLogger(logger),
			subscribe.WithMetrics(opts.Metrics),
		)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	go func() { s.done <- lp.Run(runCtx) }()

	err = lp.Do(ctx, func() error {
		// Subscribing first queues live events behind the initial load
		// instead of losing the ones written while it is in flight.
		if s.subs != nil {
			s.subs.Subscribe(opts.ListID)
		}
		return list.InitialLoad(runCtx)
	})
	if err != nil {
		logger.Warn("initial load failed", "error", err)
	}
	return s, err
}

// deliver runs on the loop for every live event.
func (s *Session) deliver(ev item.Event) {
	if _, err := s.list.Apply(s.ctx, ev); err != nil {
		s.logger.Warn("live event not applied to list", "seq", ev.Seq, "error", err)
	}
	if s.pages == nil || !s.pages.State().Open {
		return
	}
	if _, err := s.pages.Apply(s.ctx, ev); err != nil {
		s.logger.Warn("live event not applied to dialog", "seq", ev.Seq, "error", err)
	}
}

// Do runs fn on the loop with exclusive access to the list.
func (s *Session) Do(ctx context.Context, fn func(*engine.List) error) error {
	return s.loop.Do(ctx, func() error { return fn(s.list) })
}

// State returns a snapshot of the list.
func (s *Session) State(ctx context.Context) (engine.State, error) {
	var st engine.State
	err := s.loop.Do(ctx, func() error {
		st = s.list.State()
		return nil
	})
	return st, err
}

// OnScroll forwards a scroll offset sample.
func (s *Session) OnScroll(offset float64) bool {
	return s.loop.Post(func() { s.list.OnScroll(offset) })
}

// OnSentinel forwards a sentinel visibility change.
func (s *Session) OnSentinel(end item.End, visible bool) bool {
	return s.loop.Post(func() { s.list.OnSentinel(end, visible) })
}

// OnBoundaryItem persists the visible boundary item.
func (s *Session) OnBoundaryItem(ctx context.Context, id item.ID) error {
	return s.loop.Do(ctx, func() error { return s.list.OnBoundaryItem(s.ctx, id) })
}

// LoadTop extends the window toward older items.
func (s *Session) LoadTop(ctx context.Context) error {
	return s.loop.Do(ctx, func() error { return s.list.LoadTop(s.ctx) })
}

// LoadBottom extends the window toward newer items.
func (s *Session) LoadBottom(ctx context.Context) error {
	return s.loop.Do(ctx, func() error { return s.list.LoadBottom(s.ctx) })
}

// Reload discards the window and loads it again around where it was.
func (s *Session) Reload(ctx context.Context) error {
	return s.loop.Do(ctx, func() error { return s.list.ReloadItems(s.ctx) })
}

// Navigate switches the deep link and reloads from it.
func (s *Session) Navigate(ctx context.Context, hash anchor.HashSource) error {
	return s.loop.Do(ctx, func() error {
		s.list.Navigate(hash)
		s.list.Reset()
		return s.list.InitialLoad(s.ctx)
	})
}

// ErrNoPager is returned by the dialog methods when the session was
// started without a pager configuration.
var ErrNoPager = errors.New("session: numbered pages not enabled")

// ShowPages opens the numbered-page dialog.
func (s *Session) ShowPages(ctx context.Context, p pager.Params) error {
	return s.withPager(ctx, func(c *pager.Cache) error { return c.Show(s.ctx, p) })
}

// ShowPagesAt opens the dialog on the page holding probe.
func (s *Session) ShowPagesAt(ctx context.Context, p pager.Params, probe item.ID) error {
	return s.withPager(ctx, func(c *pager.Cache) error { return c.ShowAt(s.ctx, p, probe) })
}

// SetPage switches the dialog page.
func (s *Session) SetPage(ctx context.Context, n int) error {
	return s.withPager(ctx, func(c *pager.Cache) error { return c.SetPage(s.ctx, n) })
}

// HidePages closes the dialog. The cache is kept for the next ShowPages.
func (s *Session) HidePages(ctx context.Context) error {
	return s.withPager(ctx, func(c *pager.Cache) error {
		c.Hide()
		return nil
	})
}

// Pages returns the dialog state.
func (s *Session) Pages(ctx context.Context) (pager.State, error) {
	var st pager.State
	err := s.withPager(ctx, func(c *pager.Cache) error {
		st = c.State()
		return nil
	})
	return st, err
}

func (s *Session) withPager(ctx context.Context, fn func(*pager.Cache) error) error {
	if s.pages == nil {
		return ErrNoPager
	}
	return s.loop.Do(ctx, func() error { return fn(s.pages) })
}

// Subscription returns the live subscription state.
func (s *Session) Subscription(ctx context.Context) (subscribe.State, error) {
	st := subscribe.Unsubscribed
	err := s.loop.Do(ctx, func() error {
		if s.subs != nil {
			st = s.subs.State()
		}
		return nil
	})
	return st, err
}

// Close unsubscribes, resets the list and the dialog, and stops the loop
// once the queued work has drained. Calls after Close return
// loop.ErrStopped.
func (s *Session) Close() error {
	err := s.loop.Do(context.Background(), func() error {
		if s.subs != nil {
			s.subs.Unsubscribe()
		}
		s.list.Reset()
		if s.pages != nil {
			s.pages.Reset()
		}
		return nil
	})
	if errors.Is(err, loop.ErrStopped) {
		return nil
	}
	s.loop.Stop()
	runErr := <-s.done
	s.cancel()
	if err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
