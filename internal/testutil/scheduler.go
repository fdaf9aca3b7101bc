package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/listsync/internal/loop"
)

// ManualScheduler is a loop.Scheduler driven by virtual time.
//
// Nothing fires until Advance is called; callbacks then run synchronously
// on the caller's goroutine in deadline order (ties in scheduling order).
// Timers scheduled by a callback fire within the same Advance if their
// deadline is reached.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	nextSeq int
	pending []*manualTimer
}

type manualTimer struct {
	sched    *ManualScheduler
	deadline time.Duration
	seq      int
	fn       func()
}

// NewManualScheduler creates a scheduler at virtual time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc implements loop.Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) loop.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d < 0 {
		d = 0
	}
	t := &manualTimer{sched: s, deadline: s.now + d, seq: s.nextSeq, fn: f}
	s.nextSeq++
	s.pending = append(s.pending, t)
	return t
}

// Now returns the virtual time elapsed since creation.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of timers that have not fired or been stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Advance moves virtual time forward by d, firing every timer that falls
// due. It returns the number of callbacks run.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	fired := 0
	for {
		t := s.popDue(target)
		if t == nil {
			break
		}
		t.fn()
		fired++
	}

	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
	return fired
}

// popDue removes and returns the earliest timer due at or before target,
// moving the clock to its deadline.
func (s *ManualScheduler) popDue(target time.Duration) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}
	sort.SliceStable(s.pending, func(i, j int) bool {
		a, b := s.pending[i], s.pending[j]
		if a.deadline != b.deadline {
			return a.deadline < b.deadline
		}
		return a.seq < b.seq
	})
	first := s.pending[0]
	if first.deadline > target {
		return nil
	}
	s.pending = s.pending[1:]
	if first.deadline > s.now {
		s.now = first.deadline
	}
	return first
}

// Stop implements loop.Timer.
func (t *manualTimer) Stop() bool {
	s := t.sched
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.pending {
		if p == t {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}
