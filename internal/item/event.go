package item

import "fmt"

// EventKind is the kind of a live notification.
type EventKind string

const (
	Created EventKind = "created"
	Updated EventKind = "updated"
	Deleted EventKind = "deleted"
)

// ParseEventKind validates a kind string.
func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case Created, Updated, Deleted:
		return EventKind(s), nil
	default:
		return "", fmt.Errorf("invalid event kind %q", s)
	}
}

// Event is a pushed create/update/delete notification scoped to one list.
//
// Seq is the delivery sequence assigned by the pushing transport. It is 0
// when the transport does not number its deliveries; such events rely on
// the natural idempotence of replace and remove.
type Event struct {
	Seq    int64     `json:"seq,omitempty"`
	Kind   EventKind `json:"kind"`
	ListID string    `json:"list_id"`
	Item   Item      `json:"item"`
}

// Key returns the delivery identity of the event.
func (e Event) Key() (string, error) {
	obj := map[string]any{
		"seq":     e.Seq,
		"kind":    string(e.Kind),
		"list_id": e.ListID,
		"item_id": int64(e.Item.ID),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("event key: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}
