package item

import "strconv"

// ID identifies an item. IDs are assigned by the backend in creation order,
// so ascending ID order is also server order.
type ID int64

// String renders the id in decimal.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Ref returns a pointer to a copy of id, for optional anchor fields.
func Ref(id ID) *ID {
	return &id
}

// ParseID parses a decimal item id.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(n), nil
}

// Fields is the opaque payload of an item.
// Values must be canonical: string, int64, bool, []any or map[string]any.
type Fields map[string]any

// Item is a single record in a list.
type Item struct {
	ID     ID     `json:"id"`
	ListID string `json:"list_id"`
	Fields Fields `json:"fields,omitempty"`
}

// Clone returns a deep copy of the item so callers cannot mutate window state.
func (it Item) Clone() Item {
	out := it
	if it.Fields != nil {
		out.Fields = cloneValue(map[string]any(it.Fields)).(map[string]any)
	}
	return out
}

// String returns the field as a string, or "" when absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case Fields:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return val
	}
}

// IDs extracts the ids of items in order.
func IDs(items []Item) []ID {
	out := make([]ID, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
