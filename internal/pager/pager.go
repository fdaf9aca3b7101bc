package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/metrics"
	"github.com/roach88/listsync/internal/reconcile"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 20

// Source is the backend a Cache pages through.
type Source interface {
	FetchNumbered(ctx context.Context, q item.Query) (item.Numbered, error)
	FetchCount(ctx context.Context, q item.Query) (int, error)
	FetchCountFiltered(ctx context.Context, q item.Query, probe item.ID) (item.CountResult, error)
}

// Config holds the cache tunables.
type Config struct {
	PageSize    int
	NewestFirst bool
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	return nil
}

// Params select what the dialog shows. Two Show calls with equal Params
// share the cache.
type Params struct {
	ListID string      `json:"list_id"`
	Filter item.Filter `json:"filter,omitempty"`
}

// State is the read-only view handed to the dialog.
type State struct {
	Open       bool        `json:"open"`
	Params     Params      `json:"params"`
	Page       int         `json:"page"`
	PagesCount int         `json:"pages_count"`
	Count      int         `json:"count"`
	Items      []item.Item `json:"items"`
	Loading    bool        `json:"loading"`
	Err        error       `json:"-"`
	Revision   int64       `json:"revision"`
}

// IDs returns the ids on the page in display order.
func (s State) IDs() []item.ID {
	return item.IDs(s.Items)
}

// Cache is the numbered-page cache.
type Cache struct {
	cfg      Config
	src      Source
	logger   *slog.Logger
	metrics  *metrics.Metrics
	rec      *reconcile.Reconciler
	counted  *reconcile.Deduper
	onChange func(State)

	open       bool
	params     Params
	loaded     bool
	page       int
	count      int
	items      []item.Item
	loading    bool
	err        error
	revision   int64
	generation uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records fetches, events and the page count to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithOnChange registers a callback invoked with every new state.
func WithOnChange(fn func(State)) Option {
	return func(c *Cache) { c.onChange = fn }
}

// WithDedupeWindow sets how many delivery keys are remembered.
func WithDedupeWindow(n int) Option {
	return func(c *Cache) {
		c.rec = reconcile.New(reconcile.WithLogger(c.logger), reconcile.WithDedupeWindow(n))
	}
}

// New creates a closed, empty cache.
func New(cfg Config, src Source, opts ...Option) (*Cache, error) {
	if src == nil {
		return nil, errors.New("pager: source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pager: %w", err)
	}
	c := &Cache{cfg: cfg, src: src, logger: slog.Default(), page: 1, counted: reconcile.NewDeduper(0)}
	for _, opt := range opts {
		opt(c)
	}
	if c.rec == nil {
		c.rec = reconcile.New(reconcile.WithLogger(c.logger))
	}
	return c, nil
}

// State returns a snapshot.
func (c *Cache) State() State {
	items := make([]item.Item, len(c.items))
	for i, it := range c.items {
		items[i] = it.Clone()
	}
	return State{
		Open:       c.open,
		Params:     c.params,
		Page:       c.page,
		PagesCount: c.PagesCount(),
		Count:      c.count,
		Items:      items,
		Loading:    c.loading,
		Err:        c.err,
		Revision:   c.revision,
	}
}

// PagesCount returns ceil(count / pageSize).
func (c *Cache) PagesCount() int {
	return (c.count + c.cfg.PageSize - 1) / c.cfg.PageSize
}

// Show opens the dialog for p. The cached page is reused when p equals
// the previous invocation's params and that page loaded; otherwise the
// cache is reset and page 1 fetched.
func (c *Cache) Show(ctx context.Context, p Params) error {
	if c.loaded && p == c.params {
		c.open = true
		c.logger.Debug("pager reused", "list", p.ListID, "page", c.page)
		c.publish()
		return nil
	}
	c.Reset()
	c.open = true
	c.params = p
	return c.fetchPage(ctx, 1)
}

// ShowAt opens the dialog on the page that holds probe. A probe that is
// no longer in the list opens page 1.
func (c *Cache) ShowAt(ctx context.Context, p Params, probe item.ID) error {
	c.Reset()
	c.open = true
	c.params = p

	gen := c.generation
	start := time.Now()
	res, err := c.src.FetchCountFiltered(ctx, c.query(0, 0), probe)
	c.metrics.ObserveFetch("count_filtered", time.Since(start), err)
	if gen != c.generation {
		return nil
	}
	if err != nil {
		return c.fail(fmt.Errorf("locate item %d: %w", probe, err))
	}
	page := 1
	if res.Found {
		page = res.Count/c.cfg.PageSize + 1
	}
	return c.fetchPage(ctx, page)
}

// Hide closes the dialog. The cache is kept for the next Show.
func (c *Cache) Hide() {
	c.open = false
	c.publish()
}

// SetPage fetches page n, clamped to the known page range.
func (c *Cache) SetPage(ctx context.Context, n int) error {
	n = min(n, max(c.PagesCount(), 1))
	n = max(n, 1)
	return c.fetchPage(ctx, n)
}

// Reload refetches the current page.
func (c *Cache) Reload(ctx context.Context) error {
	return c.fetchPage(ctx, c.page)
}

// Reset drops the cache and anything in flight. The dialog stays in its
// current open state.
func (c *Cache) Reset() {
	c.generation++
	c.params = Params{}
	c.loaded = false
	c.page = 1
	c.count = 0
	c.items = nil
	c.loading = false
	c.err = nil
	c.rec.Forget()
	c.counted.Clear()
}

func (c *Cache) query(offset, limit int) item.Query {
	return item.Query{
		ListID:      c.params.ListID,
		Filter:      c.params.Filter,
		NewestFirst: c.cfg.NewestFirst,
		Offset:      offset,
		Limit:       limit,
	}
}

// fetchPage loads page n. If the list shrank below n in the meantime,
// it steps back to the last page that exists.
func (c *Cache) fetchPage(ctx context.Context, n int) error {
	n = max(n, 1)
	gen := c.generation
	c.loading = true
	c.publish()

	for {
		start := time.Now()
		res, err := c.src.FetchNumbered(ctx, c.query((n-1)*c.cfg.PageSize, c.cfg.PageSize))
		c.metrics.ObserveFetch("numbered", time.Since(start), err)
		if gen != c.generation {
			c.logger.Debug("stale page dropped", "page", n)
			return nil
		}
		if err != nil {
			c.loading = false
			return c.fail(fmt.Errorf("fetch page %d: %w", n, err))
		}
		c.count = res.Count
		if n > 1 && n > c.PagesCount() {
			n = max(c.PagesCount(), 1)
			continue
		}
		c.items = res.Items
		break
	}

	c.page = n
	c.loaded = true
	c.loading = false
	c.err = nil
	c.logger.Debug("page loaded",
		"list", c.params.ListID,
		"page", n,
		"pages", c.PagesCount(),
		"items", len(c.items),
	)
	c.publish()
	return nil
}

func (c *Cache) fail(err error) error {
	c.err = err
	c.logger.Warn("pager fetch failed", "list", c.params.ListID, "error", err)
	c.publish()
	return err
}

func (c *Cache) publish() {
	c.revision++
	c.metrics.PageCount(c.count)
	if c.onChange != nil {
		c.onChange(c.State())
	}
}
