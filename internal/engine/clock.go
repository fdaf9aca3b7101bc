package engine

import "sync/atomic"

// Revision is a monotonic counter stamped on every committed State, so a
// renderer (or a trace) can tell commits apart and detect skipped ones.
//
// Safe for concurrent reads; the List is its only writer.
type Revision struct {
	n atomic.Int64
}

// Next advances and returns the revision.
func (r *Revision) Next() int64 {
	return r.n.Add(1)
}

// Current returns the last revision handed out.
func (r *Revision) Current() int64 {
	return r.n.Load()
}
