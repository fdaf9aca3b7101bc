// Package metrics exposes Prometheus collectors for list loads, evictions,
// live events and subscriptions.
//
// All methods are safe on a nil *Metrics so components can record
// unconditionally.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "listsync"

// Metrics groups every collector the engine records to.
type Metrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	evictions     prometheus.Counter
	events        *prometheus.CounterVec
	windowSize    prometheus.Gauge
	pageCount     prometheus.Gauge
	reconnects    prometheus.Counter
	requests      *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in a server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Page fetches by kind and result",
		}, []string{"kind", "result"}),

		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of page and count fetches",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),

		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_items_total",
			Help:      "Items evicted from windows to respect the cap",
		}),

		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Live events by kind and reconciliation outcome",
		}, []string{"kind", "outcome"}),

		windowSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_items",
			Help:      "Items currently loaded in the most recently committed window",
		}),

		pageCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "page_cache_count",
			Help:      "Authoritative item count last reported to the numbered page cache",
		}),

		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_reconnects_total",
			Help:      "Subscription reconnect attempts",
		}),

		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Backend HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// ObserveFetch records one fetch of the given kind ("cursor", "numbered",
// "count").
func (m *Metrics) ObserveFetch(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.WithLabelValues(kind, result).Inc()
	m.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Evicted records items dropped by a window reduction.
func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// Event records a reconciled live event.
func (m *Metrics) Event(kind, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, outcome).Inc()
}

// WindowSize records the size of a committed window.
func (m *Metrics) WindowSize(n int) {
	if m == nil {
		return
	}
	m.windowSize.Set(float64(n))
}

// PageCount records the item count last reported to a numbered page cache.
func (m *Metrics) PageCount(n int) {
	if m == nil {
		return
	}
	m.pageCount.Set(float64(n))
}

// Reconnect records a subscription reconnect attempt.
func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// Request records a served HTTP request.
func (m *Metrics) Request(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
