package item

import (
	"fmt"
	"strings"
)

// Filter restricts a list to items whose string field equals a value.
// The textual form is "field=value"; the empty filter matches everything.
type Filter string

// Parse splits the filter into its field and value.
func (f Filter) Parse() (field, value string, ok bool) {
	if f == "" {
		return "", "", false
	}
	field, value, ok = strings.Cut(string(f), "=")
	if !ok || field == "" {
		return "", "", false
	}
	return field, value, true
}

// Validate checks that a non-empty filter is well formed and that the field
// name is a plain identifier.
func (f Filter) Validate() error {
	if f == "" {
		return nil
	}
	field, _, ok := f.Parse()
	if !ok {
		return fmt.Errorf("invalid filter %q: expected field=value", string(f))
	}
	for _, r := range field {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("invalid filter field %q", field)
		}
	}
	return nil
}

// Match reports whether the item passes the filter.
func (f Filter) Match(it Item) bool {
	field, value, ok := f.Parse()
	if !ok {
		return true
	}
	return it.Fields.String(field) == value
}
