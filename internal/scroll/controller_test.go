package scroll

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/listsync/internal/item"
)

func sample(c *Controller, offsets ...float64) (flips int) {
	for _, o := range offsets {
		if c.Sample(o) {
			flips++
		}
	}
	return flips
}

func TestController_FlipNeedsTwoDeltas(t *testing.T) {
	c := NewController(item.Top, DefaultSamples)
	assert.Equal(t, 0, sample(c, 0, 5))
	assert.Equal(t, item.Top, c.Direction(), "[0,5] is a single delta")

	assert.True(t, c.Sample(12))
	assert.Equal(t, item.Bottom, c.Direction(), "[0,5,12] flips on the third sample")
}

func TestController_SymmetricFlip(t *testing.T) {
	c := NewController(item.Bottom, DefaultSamples)
	assert.Equal(t, 1, sample(c, 100, 90, 70))
	assert.Equal(t, item.Top, c.Direction())
}

func TestController_NoiseDoesNotFlip(t *testing.T) {
	c := NewController(item.Top, DefaultSamples)
	assert.Equal(t, 0, sample(c, 0, 5, 3, 8, 6, 9, 9, 10))
	assert.Equal(t, item.Top, c.Direction())
}

func TestController_SameDirectionNeverFlips(t *testing.T) {
	c := NewController(item.Top, DefaultSamples)
	assert.Equal(t, 0, sample(c, 100, 80, 60, 40, 20))
	assert.Equal(t, item.Top, c.Direction())
}

func TestController_StricterPolicy(t *testing.T) {
	c := NewController(item.Top, 3)
	assert.Equal(t, 0, sample(c, 0, 5, 12))
	assert.Equal(t, item.Top, c.Direction())
	assert.True(t, c.Sample(20))
	assert.Equal(t, item.Bottom, c.Direction())
}

func TestController_MinimumSamples(t *testing.T) {
	c := NewController(item.Top, 1)
	assert.False(t, c.Sample(0))
	assert.False(t, c.Sample(5), "one delta is never enough")
}

func TestController_ResetClearsProbe(t *testing.T) {
	c := NewController(item.Top, DefaultSamples)
	sample(c, 0, 5)
	c.Reset()
	assert.False(t, c.Sample(12), "first sample after reset only seeds the probe")
	assert.False(t, c.Sample(20))
	assert.True(t, c.Sample(30))

	c.SetDirection(item.Top)
	assert.Equal(t, item.Top, c.Direction())
	assert.False(t, c.Sample(40))
}
