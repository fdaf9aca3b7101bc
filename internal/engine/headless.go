package engine

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/listsync/internal/item"
)

// Scroll records one ScrollTo call on a HeadlessViewport.
type Scroll struct {
	ID    item.ID
	Edge  item.End
	Found bool
}

// HeadlessViewport is a Viewport without a screen. Commits are recorded
// and every committed item counts as rendered.
//
// Safe for concurrent use, so another goroutine can read snapshots while
// the list commits.
type HeadlessViewport struct {
	mu       sync.Mutex
	last     State
	commits  int
	scrolls  []Scroll
	frozen   int
	onCommit func(State)
}

// NewHeadlessViewport creates a viewport. onCommit, if non-nil, is called
// with every committed state.
func NewHeadlessViewport(onCommit func(State)) *HeadlessViewport {
	return &HeadlessViewport{onCommit: onCommit}
}

// Commit implements Viewport.
func (v *HeadlessViewport) Commit(ctx context.Context, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	v.last = st
	v.commits++
	cb := v.onCommit
	v.mu.Unlock()

	if cb != nil {
		cb(st)
	}
	return nil
}

// ScrollTo implements Viewport.
func (v *HeadlessViewport) ScrollTo(id item.ID, edge item.End) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	found := slices.ContainsFunc(v.last.Items, func(it item.Item) bool { return it.ID == id })
	v.scrolls = append(v.scrolls, Scroll{ID: id, Edge: edge, Found: found})
	return found
}

// Freeze implements Freezer.
func (v *HeadlessViewport) Freeze() {
	v.mu.Lock()
	v.frozen++
	v.mu.Unlock()
}

// Thaw implements Freezer.
func (v *HeadlessViewport) Thaw() {
	v.mu.Lock()
	v.frozen--
	v.mu.Unlock()
}

// Frozen reports whether a Freeze is outstanding.
func (v *HeadlessViewport) Frozen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frozen > 0
}

// Last returns the most recently committed state.
func (v *HeadlessViewport) Last() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// Commits returns how many states have been committed.
func (v *HeadlessViewport) Commits() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.commits
}

// Scrolls returns every ScrollTo call so far.
func (v *HeadlessViewport) Scrolls() []Scroll {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.scrolls)
}

// LastScroll returns the most recent ScrollTo call.
func (v *HeadlessViewport) LastScroll() (Scroll, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.scrolls) == 0 {
		return Scroll{}, false
	}
	return v.scrolls[len(v.scrolls)-1], true
}
