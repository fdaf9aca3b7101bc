package scroll

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/testutil"
)

type fakeHost struct {
	dir   item.End
	busy  bool
	loads []item.End
}

func (h *fakeHost) Direction() item.End   { return h.dir }
func (h *fakeHost) Busy() bool            { return h.busy }
func (h *fakeHost) LoadMore(end item.End) { h.loads = append(h.loads, end) }

func newTrigger(h *fakeHost) (*Trigger, *testutil.ManualScheduler) {
	sched := testutil.NewManualScheduler()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTrigger(h, sched, 0, logger), sched
}

func TestTrigger_DebouncesTrailingEdge(t *testing.T) {
	h := &fakeHost{dir: item.Top}
	tr, sched := newTrigger(h)
	tr.Connect()

	tr.SetVisible(item.Top, true)
	sched.Advance(150 * time.Millisecond)
	tr.SetVisible(item.Top, false)
	tr.SetVisible(item.Top, true)
	sched.Advance(150 * time.Millisecond)
	assert.Empty(t, h.loads, "churn inside the window restarts it")

	sched.Advance(50 * time.Millisecond)
	assert.Equal(t, []item.End{item.Top}, h.loads)
}

func TestTrigger_OnlyActsOnDirectionEnd(t *testing.T) {
	h := &fakeHost{dir: item.Top}
	tr, sched := newTrigger(h)
	tr.Connect()

	tr.SetVisible(item.Bottom, true)
	sched.Advance(time.Second)
	assert.Empty(t, h.loads, "bottom sentinel while moving toward top")

	h.dir = item.Bottom
	tr.SetVisible(item.Bottom, true)
	sched.Advance(time.Second)
	assert.Equal(t, []item.End{item.Bottom}, h.loads)
}

func TestTrigger_ReachedSuppresses(t *testing.T) {
	h := &fakeHost{dir: item.Top}
	tr, sched := newTrigger(h)
	tr.Connect()
	tr.MarkReached(item.Top)

	tr.SetVisible(item.Top, true)
	sched.Advance(time.Second)
	assert.Empty(t, h.loads)

	tr.ClearReached(item.Top)
	tr.Rearm()
	sched.Advance(time.Second)
	assert.Equal(t, []item.End{item.Top}, h.loads)
}

func TestTrigger_IgnoredWhileBusy(t *testing.T) {
	h := &fakeHost{dir: item.Top, busy: true}
	tr, sched := newTrigger(h)
	tr.Connect()

	tr.SetVisible(item.Top, true)
	sched.Advance(time.Second)
	assert.Empty(t, h.loads)

	h.busy = false
	tr.Rearm()
	sched.Advance(time.Second)
	assert.Equal(t, []item.End{item.Top}, h.loads)
}

func TestTrigger_DisconnectCancelsPending(t *testing.T) {
	h := &fakeHost{dir: item.Top}
	tr, sched := newTrigger(h)
	tr.Connect()

	tr.SetVisible(item.Top, true)
	tr.Disconnect()
	sched.Advance(time.Second)
	assert.Empty(t, h.loads)
	assert.Equal(t, 0, sched.Pending())

	tr.SetVisible(item.Top, true)
	sched.Advance(time.Second)
	assert.Empty(t, h.loads, "visibility while disconnected is only recorded")

	tr.Connect()
	sched.Advance(time.Second)
	assert.Equal(t, []item.End{item.Top}, h.loads, "connect acts on the recorded visibility")
}

func TestTrigger_ResetClearsFlags(t *testing.T) {
	h := &fakeHost{dir: item.Top}
	tr, _ := newTrigger(h)
	tr.Connect()
	tr.MarkReached(item.Top)
	tr.MarkReached(item.Bottom)
	tr.SetVisible(item.Top, true)

	tr.Reset()

	assert.False(t, tr.Connected())
	assert.False(t, tr.Reached(item.Top))
	assert.False(t, tr.Reached(item.Bottom))
	assert.False(t, tr.Visible(item.Top))
}
