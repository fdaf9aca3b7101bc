package subscribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/loop"
	"github.com/roach88/listsync/internal/testutil"
)

// fakeStream is one opened subscription.
type fakeStream struct {
	ch    chan item.Event
	after int64
	once  sync.Once
}

func (s *fakeStream) close() { s.once.Do(func() { close(s.ch) }) }

// fakeSource hands out controllable streams.
type fakeSource struct {
	mu      sync.Mutex
	streams []*fakeStream
	fail    int
}

func (f *fakeSource) Subscribe(ctx context.Context, listID string) (<-chan item.Event, error) {
	return f.SubscribeFrom(ctx, listID, 0)
}

func (f *fakeSource) SubscribeFrom(ctx context.Context, _ string, after int64) (<-chan item.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("connection refused")
	}
	s := &fakeStream{ch: make(chan item.Event, 8), after: after}
	f.streams = append(f.streams, s)
	go func() {
		<-ctx.Done()
		s.close()
	}()
	return s.ch, nil
}

func (f *fakeSource) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.streams) {
		return nil
	}
	return f.streams[i]
}

func (f *fakeSource) opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

type harness struct {
	loop  *loop.Loop
	sched *testutil.ManualScheduler
	src   *fakeSource
	m     *Manager

	mu  sync.Mutex
	got []item.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{sched: testutil.NewManualScheduler(), src: &fakeSource{}}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.loop = loop.New(loop.WithScheduler(h.sched), loop.WithLogger(quiet))
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(context.Background()) }()
	t.Cleanup(func() {
		h.loop.Stop()
		<-done
	})

	cfg := Config{ReconnectDelay: 100 * time.Millisecond, ReconnectMaxDelay: 400 * time.Millisecond}
	m, err := New(cfg, h.src, h.loop, h.loop, func(ev item.Event) {
		h.mu.Lock()
		h.got = append(h.got, ev)
		h.mu.Unlock()
	}, WithLogger(quiet))
	require.NoError(t, err)
	h.m = m
	return h
}

func (h *harness) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, h.loop.Do(context.Background(), func() error {
		fn()
		return nil
	}))
}

func (h *harness) state(t *testing.T) State {
	var st State
	h.do(t, func() { st = h.m.State() })
	return st
}

func (h *harness) delivered() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.got)
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Config{}, &fakeSource{}, loop.New(), loop.SystemScheduler{}, func(item.Event) {})
	assert.Error(t, err)

	_, err = New(DefaultConfig(), nil, loop.New(), loop.SystemScheduler{}, func(item.Event) {})
	assert.Error(t, err)
}

func TestManager_DeliversInOrder(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { h.m.Subscribe("inbox") })
	require.Eventually(t, func() bool { return h.src.opened() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, Subscribed, h.state(t))

	s := h.src.stream(0)
	for seq := int64(1); seq <= 3; seq++ {
		s.ch <- item.Event{Seq: seq, Kind: item.Created, ListID: "inbox", Item: item.Item{ID: item.ID(seq)}}
	}
	require.Eventually(t, func() bool { return h.delivered() == 3 }, time.Second, time.Millisecond)

	h.mu.Lock()
	for i, ev := range h.got {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	h.mu.Unlock()

	var last int64
	h.do(t, func() { last = h.m.LastSeq() })
	assert.Equal(t, int64(3), last)
}

func TestManager_ReconnectsAndResumes(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { h.m.Subscribe("inbox") })
	require.Eventually(t, func() bool { return h.src.opened() == 1 }, time.Second, time.Millisecond)

	first := h.src.stream(0)
	first.ch <- item.Event{Seq: 7, Kind: item.Created, ListID: "inbox"}
	require.Eventually(t, func() bool { return h.delivered() == 1 }, time.Second, time.Millisecond)

	first.close()
	require.Eventually(t, func() bool { return h.state(t) == Reconnecting }, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.sched.Pending(), "exactly one reconnect timer")

	h.sched.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool { return h.src.opened() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(7), h.src.stream(1).after, "resumes after the last delivered seq")
	require.Eventually(t, func() bool { return h.state(t) == Subscribed }, time.Second, time.Millisecond)
}

func TestManager_BacksOffOnConnectFailure(t *testing.T) {
	h := newHarness(t)
	h.src.mu.Lock()
	h.src.fail = 2
	h.src.mu.Unlock()

	h.do(t, func() { h.m.Subscribe("inbox") })
	require.Eventually(t, func() bool { return h.state(t) == Reconnecting }, time.Second, time.Millisecond)

	h.sched.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool { return h.sched.Pending() == 1 && h.sched.Now() == 100*time.Millisecond }, time.Second, time.Millisecond)

	h.sched.Advance(100 * time.Millisecond)
	assert.Zero(t, h.src.opened(), "second retry waits twice as long")

	h.sched.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool { return h.src.opened() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return h.state(t) == Subscribed }, time.Second, time.Millisecond)
}

func TestManager_UnsubscribeCancelsEverything(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { h.m.Subscribe("inbox") })
	require.Eventually(t, func() bool { return h.src.opened() == 1 }, time.Second, time.Millisecond)

	h.do(t, func() { h.m.Unsubscribe() })
	assert.Equal(t, Unsubscribed, h.state(t))

	// The cancelled stream closes; that must not schedule a reconnect.
	h.do(t, func() {})
	h.sched.Advance(time.Second)
	h.do(t, func() {})
	assert.Zero(t, h.sched.Pending())
	assert.Equal(t, 1, h.src.opened())
	assert.Equal(t, Unsubscribed, h.state(t))
}

func TestBackoff_Capped(t *testing.T) {
	m := &Manager{cfg: Config{ReconnectDelay: 100 * time.Millisecond, ReconnectMaxDelay: 350 * time.Millisecond}}

	want := []time.Duration{100, 200, 350, 350}
	for i, w := range want {
		m.attempt = i + 1
		assert.Equal(t, w*time.Millisecond, m.backoff(), "attempt %d", i+1)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unsubscribed", Unsubscribed.String())
	assert.Equal(t, "subscribed", Subscribed.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
}
