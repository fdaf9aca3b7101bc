package scroll

import (
	"log/slog"
	"time"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/loop"
)

// DefaultDebounce coalesces visibility churn from one scroll gesture.
const DefaultDebounce = 200 * time.Millisecond

// Host is the list a Trigger drives.
type Host interface {
	// Direction is the end the list is currently extending toward.
	Direction() item.End
	// Busy reports whether a load is in flight.
	Busy() bool
	// LoadMore requests the next page at end.
	LoadMore(end item.End)
}

// Trigger watches the top and bottom sentinels and asks the host for the
// next page once visibility has settled.
//
// A Trigger is not safe for concurrent use; the scheduler's callbacks must
// run on the same goroutine as every other call.
type Trigger struct {
	host     Host
	sched    loop.Scheduler
	debounce time.Duration
	logger   *slog.Logger

	connected bool
	visible   [2]bool
	reached   [2]bool
	pending   loop.Timer
}

// NewTrigger creates a disconnected trigger. A non-positive debounce
// selects DefaultDebounce.
func NewTrigger(host Host, sched loop.Scheduler, debounce time.Duration, logger *slog.Logger) *Trigger {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{host: host, sched: sched, debounce: debounce, logger: logger}
}

// Connect starts acting on visibility changes.
func (t *Trigger) Connect() {
	t.connected = true
	if t.visible[item.Top] || t.visible[item.Bottom] {
		t.schedule()
	}
}

// Disconnect stops acting on visibility and drops any pending check.
func (t *Trigger) Disconnect() {
	t.connected = false
	t.cancel()
}

// Connected reports whether the trigger is observing.
func (t *Trigger) Connected() bool { return t.connected }

// SetVisible records a sentinel visibility change and (re)starts the
// debounce window. Only the trailing edge acts.
func (t *Trigger) SetVisible(end item.End, visible bool) {
	t.visible[end] = visible
	if !t.connected {
		return
	}
	t.schedule()
}

// Visible reports the last known visibility of a sentinel.
func (t *Trigger) Visible(end item.End) bool { return t.visible[end] }

// MarkReached suppresses further loads toward end.
func (t *Trigger) MarkReached(end item.End) { t.reached[end] = true }

// ClearReached allows loads toward end again, e.g. after eviction removed
// items from that end.
func (t *Trigger) ClearReached(end item.End) { t.reached[end] = false }

// Reached reports whether the server has no more items toward end.
func (t *Trigger) Reached(end item.End) bool { return t.reached[end] }

// Rearm re-checks after a load finishes, in case the sentinel the load
// extended past is still on screen.
func (t *Trigger) Rearm() {
	if t.connected && (t.visible[item.Top] || t.visible[item.Bottom]) {
		t.schedule()
	}
}

// Reset disconnects and clears visibility and reached flags.
func (t *Trigger) Reset() {
	t.Disconnect()
	t.visible = [2]bool{}
	t.reached = [2]bool{}
}

// Check runs the load decision immediately. It reports whether a load was
// requested.
func (t *Trigger) Check() bool {
	if !t.connected {
		return false
	}
	if t.host.Busy() {
		t.logger.Debug("boundary check skipped: load in flight")
		return false
	}
	dir := t.host.Direction()
	if !t.visible[dir] || t.reached[dir] {
		return false
	}
	t.logger.Debug("boundary reached", "end", dir.String())
	t.host.LoadMore(dir)
	return true
}

func (t *Trigger) schedule() {
	t.cancel()
	t.pending = t.sched.AfterFunc(t.debounce, func() {
		t.pending = nil
		t.Check()
	})
}

func (t *Trigger) cancel() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}
