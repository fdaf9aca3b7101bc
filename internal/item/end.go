package item

import "fmt"

// End names one end of a list window.
//
// As a Direction, Top means the window is being extended toward older items
// and Bottom toward newer items.
type End int

const (
	// Top is the oldest end of the window (smallest ids).
	Top End = iota
	// Bottom is the newest end of the window (largest ids).
	Bottom
)

// Opposite returns the other end.
func (e End) Opposite() End {
	if e == Top {
		return Bottom
	}
	return Top
}

func (e End) String() string {
	switch e {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	default:
		return fmt.Sprintf("end(%d)", int(e))
	}
}

// ParseEnd parses "top" or "bottom".
func ParseEnd(s string) (End, error) {
	switch s {
	case "top":
		return Top, nil
	case "bottom":
		return Bottom, nil
	default:
		return Top, fmt.Errorf("invalid end %q: must be top or bottom", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e End) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *End) UnmarshalText(text []byte) error {
	parsed, err := ParseEnd(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Anchor is the item a load or scroll-restore is aligned to.
//
// HasHash is true when the id came from an explicit source (a deep link or a
// persisted last-seen position) rather than from the current window.
type Anchor struct {
	ItemID  *ID  `json:"item_id,omitempty"`
	HasHash bool `json:"has_hash"`
}

// IsZero reports whether the anchor carries no item.
func (a Anchor) IsZero() bool {
	return a.ItemID == nil
}

func (a Anchor) String() string {
	if a.ItemID == nil {
		return "none"
	}
	if a.HasHash {
		return a.ItemID.String() + "#"
	}
	return a.ItemID.String()
}
