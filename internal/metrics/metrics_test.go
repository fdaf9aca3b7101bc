package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the counter or gauge value of the series whose labels match.
func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFetch("cursor", 10*time.Millisecond, nil)
	m.ObserveFetch("cursor", time.Millisecond, errors.New("boom"))
	m.Evicted(3)
	m.Evicted(0)
	m.Event("created", "applied")
	m.WindowSize(42)
	m.PageCount(45)
	m.Reconnect()
	m.Request("pages", 200)

	assert.Equal(t, 1.0, value(t, reg, "listsync_fetches_total", map[string]string{"kind": "cursor", "result": "ok"}))
	assert.Equal(t, 1.0, value(t, reg, "listsync_fetches_total", map[string]string{"kind": "cursor", "result": "error"}))
	assert.Equal(t, 2.0, value(t, reg, "listsync_fetch_duration_seconds", map[string]string{"kind": "cursor"}))
	assert.Equal(t, 3.0, value(t, reg, "listsync_evicted_items_total", nil))
	assert.Equal(t, 1.0, value(t, reg, "listsync_events_total", map[string]string{"kind": "created", "outcome": "applied"}))
	assert.Equal(t, 42.0, value(t, reg, "listsync_window_items", nil))
	assert.Equal(t, 45.0, value(t, reg, "listsync_page_cache_count", nil))
	assert.Equal(t, 1.0, value(t, reg, "listsync_subscription_reconnects_total", nil))
	assert.Equal(t, 1.0, value(t, reg, "listsync_http_requests_total", map[string]string{"route": "pages", "code": "200"}))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("cursor", time.Second, nil)
		m.Evicted(1)
		m.Event("deleted", "ignored")
		m.WindowSize(1)
		m.PageCount(1)
		m.Reconnect()
		m.Request("items", 500)
	})
}
