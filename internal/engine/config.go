package engine

import (
	"fmt"
	"time"

	"github.com/roach88/listsync/internal/anchor"
	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/reconcile"
	"github.com/roach88/listsync/internal/scroll"
	"github.com/roach88/listsync/internal/window"
)

// Config holds the tunables of one list instance.
//
// The timing constants were tuned per platform in the past; none of their
// default values carry meaning beyond "long enough for layout to settle".
type Config struct {
	// PageSize is the number of items requested per cursor page.
	PageSize int

	// MaxItems caps the window at rest.
	MaxItems int

	// ReduceTo is the length an overflowing window is cut to.
	// Zero means MaxItems.
	ReduceTo int

	// InitialDirection is the direction of a fresh list. Top starts at the
	// newest page and extends toward older items.
	InitialDirection item.End

	// DirectionSamples is how many consecutive scroll deltas must agree
	// before the direction flips (2, or 3 for the stricter policy).
	DirectionSamples int

	// TriggerDebounce is the trailing-edge debounce on sentinel visibility.
	TriggerDebounce time.Duration

	// ObserverDelay is how long after an initial load the sentinels start
	// being observed.
	ObserverDelay time.Duration

	// CapDelay is how long after a live Created append the cap is
	// re-applied.
	CapDelay time.Duration

	// EvictBeforeRestore runs the cap reduction before the scroll restore
	// of a LoadTop/LoadBottom. When false, restore runs first.
	EvictBeforeRestore bool

	// AnchorRetries is how many full reloads a missing anchor may cause.
	AnchorRetries int

	// DedupeWindow is how many delivery keys are remembered for duplicate
	// suppression.
	DedupeWindow int

	// Filter restricts the list to matching items.
	Filter item.Filter
}

// DefaultConfig returns the defaults used when a field is not configured.
func DefaultConfig() Config {
	return Config{
		PageSize:           50,
		MaxItems:           window.DefaultMaxItems,
		InitialDirection:   item.Top,
		DirectionSamples:   scroll.DefaultSamples,
		TriggerDebounce:    scroll.DefaultDebounce,
		ObserverDelay:      200 * time.Millisecond,
		CapDelay:           50 * time.Millisecond,
		EvictBeforeRestore: true,
		AnchorRetries:      anchor.DefaultRetries,
		DedupeWindow:       reconcile.DefaultDedupeWindow,
	}
}

// Validate checks ranges and cross-field constraints.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.MaxItems < c.PageSize {
		return fmt.Errorf("max items (%d) must be at least the page size (%d)", c.MaxItems, c.PageSize)
	}
	if c.ReduceTo != 0 && (c.ReduceTo < c.PageSize || c.ReduceTo > c.MaxItems) {
		return fmt.Errorf("reduce-to (%d) must lie between page size (%d) and max items (%d)", c.ReduceTo, c.PageSize, c.MaxItems)
	}
	if c.InitialDirection != item.Top && c.InitialDirection != item.Bottom {
		return fmt.Errorf("invalid initial direction %d", int(c.InitialDirection))
	}
	if c.DirectionSamples < 2 || c.DirectionSamples > 3 {
		return fmt.Errorf("direction samples must be 2 or 3, got %d", c.DirectionSamples)
	}
	if c.TriggerDebounce < 0 || c.ObserverDelay < 0 || c.CapDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.AnchorRetries < 0 {
		return fmt.Errorf("anchor retries must not be negative, got %d", c.AnchorRetries)
	}
	if c.DedupeWindow < 0 {
		return fmt.Errorf("dedupe window must not be negative, got %d", c.DedupeWindow)
	}
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	return nil
}
