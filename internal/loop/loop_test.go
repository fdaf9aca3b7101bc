package loop_test

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

	"github.com/roach88/listsync/internal/loop"
	"github.com/roach88/listsync/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startLoop(t *testing.T, opts ...loop.Option) *loop.Loop {
	t.Helper()
	opts = append([]loop.Option{loop.WithLogger(quietLogger())}, opts...)
	l := loop.New(opts...)
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	t.Cleanup(func() {
		l.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("loop did not stop")
		}
	})
	return l
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := startLoop(t)
	var mu sync.Mutex
	var got []int

	for i := 0; i < 50; i++ {
		i := i
		require.True(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, l.Do(context.Background(), func() error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_DoReturnsError(t *testing.T) {
	l := startLoop(t)
	want := errors.New("boom")

	err := l.Do(context.Background(), func() error { return want })
	assert.ErrorIs(t, err, want)
}

func TestLoop_PanicIsContained(t *testing.T) {
	l := startLoop(t)

	err := l.Do(context.Background(), func() error { panic("bad task") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad task")

	ran := false
	require.NoError(t, l.Do(context.Background(), func() error { ran = true; return nil }))
	assert.True(t, ran, "loop keeps running after a panic")
}

func TestLoop_StopDrainsThenRejects(t *testing.T) {
	l := loop.New(loop.WithLogger(quietLogger()))
	count := 0
	for i := 0; i < 3; i++ {
		l.Post(func() { count++ })
	}
	l.Stop()

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 3, count)
	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return nil }), loop.ErrStopped)
}

func TestLoop_ContextCancel(t *testing.T) {
	l := loop.New(loop.WithLogger(quietLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_AfterFuncRunsOnLoop(t *testing.T) {
	sched := testutil.NewManualScheduler()
	l := startLoop(t, loop.WithScheduler(sched))

	fired := make(chan struct{}, 1)
	l.AfterFunc(200*time.Millisecond, func() { fired <- struct{}{} })

	sched.Advance(100 * time.Millisecond)
	require.NoError(t, l.Do(context.Background(), func() error { return nil }))
	select {
	case <-fired:
		t.Fatal("fired early")
	default:
	}

	sched.Advance(100 * time.Millisecond)
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_StoppedTimerNeverRuns(t *testing.T) {
	sched := testutil.NewManualScheduler()
	l := startLoop(t, loop.WithScheduler(sched))

	ran := false
	var timer loop.Timer
	require.NoError(t, l.Do(context.Background(), func() error {
		timer = l.AfterFunc(time.Millisecond, func() { ran = true })
		return nil
	}))

	// The underlying timer fires while the loop is busy, so the callback is
	// already queued when the busy task stops the timer.
	gate := make(chan struct{})
	var stopped bool
	l.Post(func() {
		<-gate
		stopped = timer.Stop()
	})
	sched.Advance(time.Millisecond)
	close(gate)

	require.NoError(t, l.Do(context.Background(), func() error { return nil }))
	assert.False(t, ran)
	assert.True(t, stopped, "Stop wins over a queued callback")
}
