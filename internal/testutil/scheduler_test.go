package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler_FiresInDeadlineOrder(t *testing.T) {
	s := NewManualScheduler()
	var order []string

	s.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	s.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	s.AfterFunc(100*time.Millisecond, func() { order = append(order, "b") })

	assert.Equal(t, 0, s.Advance(50*time.Millisecond))
	assert.Equal(t, 2, s.Advance(100*time.Millisecond))
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 150*time.Millisecond, s.Now())

	assert.Equal(t, 1, s.Advance(time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, s.Pending())
}

func TestManualScheduler_Stop(t *testing.T) {
	s := NewManualScheduler()
	fired := false
	timer := s.AfterFunc(time.Millisecond, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports nothing pending")
	s.Advance(time.Second)
	assert.False(t, fired)
}

func TestManualScheduler_ChainedTimers(t *testing.T) {
	s := NewManualScheduler()
	var at []time.Duration

	s.AfterFunc(100*time.Millisecond, func() {
		at = append(at, s.Now())
		s.AfterFunc(100*time.Millisecond, func() {
			at = append(at, s.Now())
		})
	})

	assert.Equal(t, 2, s.Advance(250*time.Millisecond))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, at)
	assert.Equal(t, 250*time.Millisecond, s.Now())
}
