package reconcile

// DefaultDedupeWindow is how many recent delivery keys are remembered.
const DefaultDedupeWindow = 1024

// Deduper remembers the most recent delivery keys, evicting the oldest
// once full.
//
// This is bounded history, not a permanent log: a redelivery older than
// the window is applied again, which is safe because replace and remove
// are idempotent.
type Deduper struct {
	max  int
	keys map[string]struct{}
	ring []string
	next int
}

// NewDeduper creates a history of at most max keys. A non-positive max
// selects DefaultDedupeWindow.
func NewDeduper(max int) *Deduper {
	if max <= 0 {
		max = DefaultDedupeWindow
	}
	return &Deduper{
		max:  max,
		keys: make(map[string]struct{}, max),
		ring: make([]string, 0, max),
	}
}

// Seen reports whether key is in the history.
func (d *Deduper) Seen(key string) bool {
	_, ok := d.keys[key]
	return ok
}

// Record adds key, evicting the oldest key when full.
func (d *Deduper) Record(key string) {
	if d.Seen(key) {
		return
	}
	if len(d.ring) < d.max {
		d.ring = append(d.ring, key)
	} else {
		delete(d.keys, d.ring[d.next])
		d.ring[d.next] = key
		d.next = (d.next + 1) % d.max
	}
	d.keys[key] = struct{}{}
}

// Len returns the number of remembered keys.
func (d *Deduper) Len() int { return len(d.keys) }

// Clear forgets every key.
func (d *Deduper) Clear() {
	clear(d.keys)
	d.ring = d.ring[:0]
	d.next = 0
}
