package engine

import (
	"context"

	"github.com/roach88/listsync/internal/anchor"
	"github.com/roach88/listsync/internal/item"
)

// Fetcher loads cursor pages from the backend.
type Fetcher interface {
	FetchPage(ctx context.Context, req item.PageRequest) (item.Page, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req item.PageRequest) (item.Page, error)

// FetchPage implements Fetcher.
func (f FetcherFunc) FetchPage(ctx context.Context, req item.PageRequest) (item.Page, error) {
	return f(ctx, req)
}

// Viewport is the rendering side of a list.
type Viewport interface {
	// Commit publishes a new state and returns once it has been rendered,
	// so that positions can be measured afterwards.
	Commit(ctx context.Context, st State) error

	// ScrollTo brings the item with id to the given edge of the viewport.
	// It reports false when the item is not rendered.
	ScrollTo(id item.ID, edge item.End) bool
}

// Freezer is implemented by viewports that must suspend scroll side effects
// while a load is rewriting the content above or below the user.
type Freezer interface {
	Freeze()
	Thaw()
}

// Capabilities are the collaborators a List needs. ListID, Fetcher and
// Viewport are required; New rejects a set without them.
type Capabilities struct {
	ListID   string
	Fetcher  Fetcher
	Viewport Viewport

	// Anchors persists the last seen item per list. Optional.
	Anchors anchor.Store

	// Hash yields a deep-link anchor for the current navigation. Optional.
	Hash anchor.HashSource
}

func (c Capabilities) validate() error {
	switch {
	case c.ListID == "":
		return newCapabilityError("", "list id")
	case c.Fetcher == nil:
		return newCapabilityError(c.ListID, "fetcher")
	case c.Viewport == nil:
		return newCapabilityError(c.ListID, "viewport")
	}
	return nil
}
