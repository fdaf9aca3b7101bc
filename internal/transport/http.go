package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeBackendError maps store errors onto HTTP statuses.
func writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrExists):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}

// wireItem decodes an item keeping integer fields exact.
type wireItem struct {
	ID     item.ID        `json:"id"`
	ListID string         `json:"list_id"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (w wireItem) item() (item.Item, error) {
	it := item.Item{ID: w.ID, ListID: w.ListID}
	if len(w.Fields) == 0 {
		return it, nil
	}
	fields, err := item.NormalizeFields(w.Fields)
	if err != nil {
		return item.Item{}, fmt.Errorf("item %d: %w", w.ID, err)
	}
	it.Fields = fields
	return it, nil
}

func wireItems(in []wireItem) ([]item.Item, error) {
	out := make([]item.Item, 0, len(in))
	for _, w := range in {
		it, err := w.item()
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

type wireEvent struct {
	Seq    int64          `json:"seq,omitempty"`
	Kind   item.EventKind `json:"kind"`
	ListID string         `json:"list_id"`
	Item   wireItem       `json:"item"`
}

func (w wireEvent) event() (item.Event, error) {
	kind, err := item.ParseEventKind(string(w.Kind))
	if err != nil {
		return item.Event{}, err
	}
	it, err := w.Item.item()
	if err != nil {
		return item.Event{}, err
	}
	return item.Event{Seq: w.Seq, Kind: kind, ListID: w.ListID, Item: it}, nil
}

// fieldsBody is the request body of create and update.
type fieldsBody struct {
	Fields map[string]any `json:"fields"`
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(v)
}

func encodeJSON(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return &buf, nil
}
