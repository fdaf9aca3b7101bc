package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when work is submitted to a stopped loop.
var ErrStopped = errors.New("loop stopped")

// Loop runs posted tasks one at a time, in FIFO order, on the goroutine
// that called Run.
type Loop struct {
	queue  *taskQueue
	logger *slog.Logger
	sched  Scheduler
	ran    atomic.Int64
	panics atomic.Int64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for lifecycle and panic reports.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// WithScheduler sets the clock that backs AfterFunc. Tests pass a manual
// scheduler here to control time.
func WithScheduler(s Scheduler) Option {
	return func(lp *Loop) {
		if s != nil {
			lp.sched = s
		}
	}
}

// New creates a loop. Nothing runs until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue:  newTaskQueue(),
		logger: slog.Default(),
		sched:  SystemScheduler{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post submits fn to run on the loop. Returns false if the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	return l.queue.Enqueue(fn)
}

// Do runs fn on the loop and waits for its result.
// If ctx ends first, Do returns ctx.Err(); fn may still run later.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	ok := l.Post(func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("task panicked: %v", r)
				panic(r)
			}
			done <- err
		}()
		err = fn()
	})
	if !ok {
		return ErrStopped
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled or Stop is called.
// Tasks already queued when Stop is called still run.
//
// A panicking task is logged with its stack and the loop keeps going.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")

	for {
		if fn, ok := l.queue.TryDequeue(); ok {
			l.runTask(fn)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			if l.queue.Drained() {
				l.logger.Debug("loop stopping: queue closed",
					"tasks", l.ran.Load(),
					"panics", l.panics.Load(),
				)
				return nil
			}
		}
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error("task panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	l.ran.Add(1)
	fn()
}

// Stop closes the queue. Run returns once the remaining tasks have run.
func (l *Loop) Stop() {
	l.queue.Close()
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

// AfterFunc schedules f to run on the loop after d.
//
// Stopping the returned timer from a task guarantees f never runs, even if
// the underlying timer already fired and its callback is sitting in the
// queue.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	t := &loopTimer{}
	t.inner = l.sched.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.CompareAndSwap(false, true) {
				f()
			}
		})
	})
	return t
}

type loopTimer struct {
	inner   Timer
	stopped atomic.Bool
}

// Stop reports whether the call prevented f from running.
func (t *loopTimer) Stop() bool {
	t.inner.Stop()
	return t.stopped.CompareAndSwap(false, true)
}
