// Package scroll infers which end of a list the user is moving toward and
// decides, from sentinel visibility, when the next page should be loaded.
package scroll

import "github.com/roach88/listsync/internal/item"

// DefaultSamples is the number of consecutive same-sign scroll deltas
// needed to flip direction.
const DefaultSamples = 2

// Controller tracks scroll offsets and flips the list direction when the
// user has clearly reversed.
//
// Offsets grow toward the bottom of the list, so increasing offsets mean
// the user is moving toward newer items (Bottom).
type Controller struct {
	dir     item.End
	samples int

	last    float64
	hasLast bool
	up      int // consecutive strictly decreasing deltas
	down    int // consecutive strictly increasing deltas
}

// NewController creates a controller starting in dir. samples below 2 are
// raised to 2 so a single noisy delta can never toggle direction.
func NewController(dir item.End, samples int) *Controller {
	if samples < DefaultSamples {
		samples = DefaultSamples
	}
	return &Controller{dir: dir, samples: samples}
}

// Direction returns the current direction.
func (c *Controller) Direction() item.End { return c.dir }

// SetDirection forces a direction and clears the probe.
func (c *Controller) SetDirection(dir item.End) {
	c.dir = dir
	c.Reset()
}

// Sample records a scroll offset and reports whether the direction flipped.
func (c *Controller) Sample(offset float64) bool {
	if !c.hasLast {
		c.last, c.hasLast = offset, true
		return false
	}
	delta := offset - c.last
	c.last = offset

	switch {
	case delta > 0:
		c.down++
		c.up = 0
	case delta < 0:
		c.up++
		c.down = 0
	default:
		c.up, c.down = 0, 0
		return false
	}

	if c.dir == item.Top && c.down >= c.samples {
		c.dir = item.Bottom
		c.down = 0
		return true
	}
	if c.dir == item.Bottom && c.up >= c.samples {
		c.dir = item.Top
		c.up = 0
		return true
	}
	return false
}

// Reset forgets sampled offsets. The direction is kept.
func (c *Controller) Reset() {
	c.last, c.hasLast = 0, false
	c.up, c.down = 0, 0
}
