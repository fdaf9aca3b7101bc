package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/metrics"
)

// DefaultHeartbeat is the interval of SSE keep-alive comments.
const DefaultHeartbeat = 15 * time.Second

// Backend is what the server exposes. Both store backends implement it.
type Backend interface {
	Create(ctx context.Context, listID string, fields item.Fields) (item.Item, error)
	Update(ctx context.Context, it item.Item) error
	Delete(ctx context.Context, id item.ID) error
	FetchPage(ctx context.Context, req item.PageRequest) (item.Page, error)
	FetchNumbered(ctx context.Context, q item.Query) (item.Numbered, error)
	FetchCount(ctx context.Context, q item.Query) (int, error)
	FetchCountFiltered(ctx context.Context, q item.Query, probe item.ID) (item.CountResult, error)
	EventsSince(ctx context.Context, listID string, after int64, limit int) ([]item.Event, error)
	Subscribe(ctx context.Context, listID string) (<-chan item.Event, error)
}

// Server is the HTTP front of a Backend.
type Server struct {
	backend   Backend
	logger    *slog.Logger
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	heartbeat time.Duration
	mux       *http.ServeMux
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger. Default: slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServerMetrics records requests to m and serves g on /metrics.
func WithServerMetrics(m *metrics.Metrics, g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// NewServer builds the route table.
func NewServer(b Backend, opts ...ServerOption) *Server {
	s := &Server{
		backend:   b,
		logger:    slog.Default(),
		heartbeat: DefaultHeartbeat,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handle("GET /v1/lists/{list}/items", "page", s.handlePage)
	s.handle("POST /v1/lists/{list}/items", "create", s.handleCreate)
	s.handle("GET /v1/lists/{list}/pages", "numbered", s.handleNumbered)
	s.handle("GET /v1/lists/{list}/count", "count", s.handleCount)
	s.handle("GET /v1/lists/{list}/count-before", "count_before", s.handleCountBefore)
	s.handle("GET /v1/lists/{list}/events", "events", s.handleEvents)
	s.handle("PUT /v1/items/{id}", "update", s.handleUpdate)
	s.handle("DELETE /v1/items/{id}", "delete", s.handleDelete)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handle(pattern, route string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		s.metrics.Request(route, rec.code)
		s.logger.Debug("http request", "route", route, "code", rec.code, "path", r.URL.Path)
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	req, err := parsePageRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page, err := s.backend.FetchPage(r.Context(), req)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleNumbered(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.backend.FetchNumbered(r.Context(), q)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := s.backend.FetchCount(r.Context(), q)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleCountBefore(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	probe, err := item.ParseID(r.URL.Query().Get("probe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid probe: %w", err))
		return
	}
	res, err := s.backend.FetchCountFiltered(r.Context(), q, probe)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	it, err := s.backend.Create(r.Context(), r.PathValue("list"), fields)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := item.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid id: %w", err))
		return
	}
	fields, err := parseFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.backend.Update(r.Context(), item.Item{ID: id, Fields: fields}); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := item.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid id: %w", err))
		return
	}
	if err := s.backend.Delete(r.Context(), id); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parsePageRequest(r *http.Request) (item.PageRequest, error) {
	v := r.URL.Query()
	req := item.PageRequest{ListID: r.PathValue("list"), Filter: item.Filter(v.Get("filter"))}
	if err := req.Filter.Validate(); err != nil {
		return req, err
	}
	if s := v.Get("anchor"); s != "" {
		id, err := item.ParseID(s)
		if err != nil {
			return req, fmt.Errorf("invalid anchor: %w", err)
		}
		req.Anchor = item.Ref(id)
	}
	if s := v.Get("direction"); s != "" {
		dir, err := item.ParseEnd(s)
		if err != nil {
			return req, err
		}
		req.Direction = dir
	}
	var err error
	if req.HasHash, err = parseBool(v.Get("has_hash")); err != nil {
		return req, fmt.Errorf("invalid has_hash: %w", err)
	}
	if req.PageSize, err = parseInt(v.Get("page_size")); err != nil {
		return req, fmt.Errorf("invalid page_size: %w", err)
	}
	return req, nil
}

func parseQuery(r *http.Request) (item.Query, error) {
	v := r.URL.Query()
	q := item.Query{ListID: r.PathValue("list"), Filter: item.Filter(v.Get("filter"))}
	if err := q.Filter.Validate(); err != nil {
		return q, err
	}
	var err error
	if q.NewestFirst, err = parseBool(v.Get("newest_first")); err != nil {
		return q, fmt.Errorf("invalid newest_first: %w", err)
	}
	if q.Offset, err = parseInt(v.Get("offset")); err != nil {
		return q, fmt.Errorf("invalid offset: %w", err)
	}
	if q.Limit, err = parseInt(v.Get("limit")); err != nil {
		return q, fmt.Errorf("invalid limit: %w", err)
	}
	return q, nil
}

func parseFields(r *http.Request) (item.Fields, error) {
	var body fieldsBody
	if err := decodeJSON(r.Body, &body); err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	return item.NormalizeFields(body.Fields)
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// statusRecorder captures the response code for metrics. It forwards
// Flush so event streams keep working.
type statusRecorder struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.code = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
