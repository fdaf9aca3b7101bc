package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/listsync/internal/item"
)

// marshalFields converts item fields to canonical JSON TEXT for storage.
func marshalFields(f item.Fields) (string, error) {
	if len(f) == 0 {
		return "{}", nil
	}
	data, err := item.MarshalCanonical(map[string]any(f))
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses stored JSON, keeping integers exact.
func unmarshalFields(data string) (item.Fields, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return item.NormalizeFields(raw)
}
