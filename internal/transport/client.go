package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/listsync/internal/item"
)

// DefaultTimeout bounds non-streaming requests.
const DefaultTimeout = 30 * time.Second

// Client talks to a Server. It implements the list fetcher, the pager
// source and the subscription source.
//
// Thread-safety: safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the client used for non-streaming requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientLogger sets the logger. Default: slog.Default().
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		stream:  &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage implements the cursor page contract.
func (c *Client) FetchPage(ctx context.Context, req item.PageRequest) (item.Page, error) {
	v := url.Values{}
	if req.Anchor != nil {
		v.Set("anchor", req.Anchor.String())
	}
	v.Set("direction", req.Direction.String())
	if req.HasHash {
		v.Set("has_hash", "true")
	}
	v.Set("page_size", strconv.Itoa(req.PageSize))
	if req.Filter != "" {
		v.Set("filter", string(req.Filter))
	}

	var out struct {
		Items     []wireItem `json:"items"`
		Exhausted bool       `json:"exhausted"`
	}
	if err := c.getJSON(ctx, listPath(req.ListID, "items"), v, &out); err != nil {
		return item.Page{}, fmt.Errorf("fetch page: %w", err)
	}
	items, err := wireItems(out.Items)
	if err != nil {
		return item.Page{}, fmt.Errorf("fetch page: %w", err)
	}
	return item.Page{Items: items, Exhausted: out.Exhausted}, nil
}

// FetchNumbered implements the numbered page contract.
func (c *Client) FetchNumbered(ctx context.Context, q item.Query) (item.Numbered, error) {
	v := queryValues(q)
	v.Set("offset", strconv.Itoa(q.Offset))
	v.Set("limit", strconv.Itoa(q.Limit))

	var out struct {
		Items []wireItem `json:"items"`
		Count int        `json:"count"`
	}
	if err := c.getJSON(ctx, listPath(q.ListID, "pages"), v, &out); err != nil {
		return item.Numbered{}, fmt.Errorf("fetch numbered: %w", err)
	}
	items, err := wireItems(out.Items)
	if err != nil {
		return item.Numbered{}, fmt.Errorf("fetch numbered: %w", err)
	}
	return item.Numbered{Items: items, Count: out.Count}, nil
}

// FetchCount returns how many items match q.
func (c *Client) FetchCount(ctx context.Context, q item.Query) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.getJSON(ctx, listPath(q.ListID, "count"), queryValues(q), &out); err != nil {
		return 0, fmt.Errorf("fetch count: %w", err)
	}
	return out.Count, nil
}

// FetchCountFiltered counts the items before probe in display order.
func (c *Client) FetchCountFiltered(ctx context.Context, q item.Query, probe item.ID) (item.CountResult, error) {
	v := queryValues(q)
	v.Set("probe", probe.String())
	var out item.CountResult
	if err := c.getJSON(ctx, listPath(q.ListID, "count-before"), v, &out); err != nil {
		return item.CountResult{}, fmt.Errorf("fetch count before %d: %w", probe, err)
	}
	return out, nil
}

// Create adds an item to listID.
func (c *Client) Create(ctx context.Context, listID string, fields item.Fields) (item.Item, error) {
	var out wireItem
	if err := c.send(ctx, http.MethodPost, listPath(listID, "items"), fieldsBody{Fields: fields}, &out); err != nil {
		return item.Item{}, fmt.Errorf("create item: %w", err)
	}
	return out.item()
}

// Update replaces an item's fields.
func (c *Client) Update(ctx context.Context, it item.Item) error {
	if err := c.send(ctx, http.MethodPut, "/v1/items/"+it.ID.String(), fieldsBody{Fields: it.Fields}, nil); err != nil {
		return fmt.Errorf("update item %d: %w", it.ID, err)
	}
	return nil
}

// Delete removes an item.
func (c *Client) Delete(ctx context.Context, id item.ID) error {
	if err := c.send(ctx, http.MethodDelete, "/v1/items/"+id.String(), nil, nil); err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v url.Values, out any) error {
	u := c.baseURL + path
	if len(v) > 0 {
		u += "?" + v.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		var err error
		if r, err = encodeJSON(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return decodeJSON(resp.Body, out)
}

func listPath(listID, suffix string) string {
	return "/v1/lists/" + url.PathEscape(listID) + "/" + suffix
}

func queryValues(q item.Query) url.Values {
	v := url.Values{}
	if q.Filter != "" {
		v.Set("filter", string(q.Filter))
	}
	if q.NewestFirst {
		v.Set("newest_first", "true")
	}
	return v
}
