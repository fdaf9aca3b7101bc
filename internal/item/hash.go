package item

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old values.
const (
	DomainItem  = "listsync/item/v1"
	DomainEvent = "listsync/event/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash identifies an item's id and payload. Two items with the same
// hash are interchangeable in a window, which lets updates that change
// nothing be skipped.
func ContentHash(it Item) (string, error) {
	fields := map[string]any(it.Fields)
	if fields == nil {
		fields = map[string]any{}
	}
	obj := map[string]any{
		"id":      int64(it.ID),
		"list_id": it.ListID,
		"fields":  fields,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("content hash for item %d: %w", it.ID, err)
	}
	return hashWithDomain(DomainItem, canonical), nil
}

// SameContent reports whether a and b hash identically. Items whose fields
// cannot be hashed are never considered the same.
func SameContent(a, b Item) bool {
	ha, err := ContentHash(a)
	if err != nil {
		return false
	}
	hb, err := ContentHash(b)
	if err != nil {
		return false
	}
	return ha == hb
}
