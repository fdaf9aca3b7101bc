package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeduper_RecordAndSeen(t *testing.T) {
	d := NewDeduper(3)
	assert.False(t, d.Seen("a"))

	d.Record("a")
	d.Record("a")
	assert.True(t, d.Seen("a"))
	assert.Equal(t, 1, d.Len())
}

func TestDeduper_EvictsOldest(t *testing.T) {
	d := NewDeduper(2)
	d.Record("a")
	d.Record("b")
	d.Record("c")

	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("b"))
	assert.True(t, d.Seen("c"))

	d.Record("d")
	assert.False(t, d.Seen("b"))
	assert.Equal(t, 2, d.Len())
}

func TestDeduper_Clear(t *testing.T) {
	d := NewDeduper(0)
	d.Record("a")
	d.Clear()
	assert.False(t, d.Seen("a"))
	assert.Equal(t, 0, d.Len())

	d.Record("b")
	assert.True(t, d.Seen("b"))
}
