package anchor

import (
	"strings"

	"github.com/roach88/listsync/internal/item"
)

// HashSource yields the anchor embedded in the current navigation, if any.
type HashSource interface {
	HashAnchor() (item.ID, bool)
}

// FragmentHash parses a URL fragment such as "#42", "#message-42" or
// "#item_42". Anything else carries no anchor.
type FragmentHash string

// HashAnchor implements HashSource.
func (f FragmentHash) HashAnchor() (item.ID, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(string(f)), "#")
	if i := strings.LastIndexAny(s, "-_"); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return 0, false
	}
	id, err := item.ParseID(s)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// StaticHash is a HashSource holding a fixed optional id.
type StaticHash struct {
	ID    item.ID
	Valid bool
}

// HashAnchor implements HashSource.
func (s StaticHash) HashAnchor() (item.ID, bool) {
	return s.ID, s.Valid
}

// NoHash returns a source without an anchor.
func NoHash() HashSource { return StaticHash{} }
