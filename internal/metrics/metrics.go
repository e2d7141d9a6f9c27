// Package metrics owns the Prometheus registry and the collectors shared by
// the HTTP server, the YouTube client, the cache and the view registry.
//
// All methods are safe to call on a nil *Metrics so that packages can be
// constructed without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tubedeck"

// Metrics holds every collector exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	apiCalls    *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	viewFetches *prometheus.CounterVec
	cacheLookup *prometheus.CounterVec
	httpReqs    *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
	activeViews prometheus.Gauge
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "youtube",
			Name:      "calls_total",
			Help:      "YouTube Data API calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "youtube",
			Name:      "call_duration_seconds",
			Help:      "YouTube Data API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		viewFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "views",
			Name:      "fetches_total",
			Help:      "View state fetches by view, kind (load, more, search) and outcome (ok, error, stale).",
		}, []string{"view", "kind", "outcome"}),
		cacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result (l1, l2, miss).",
		}, []string{"result"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		activeViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "views",
			Name:      "active_sessions",
			Help:      "Sessions with live view state.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiCalls, m.apiLatency, m.viewFetches, m.cacheLookup,
		m.httpReqs, m.httpLatency, m.activeViews,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// APICall records one YouTube API call.
func (m *Metrics) APICall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.apiCalls.WithLabelValues(op, outcome).Inc()
	m.apiLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ViewFetch records one view state fetch.
func (m *Metrics) ViewFetch(view, kind, outcome string) {
	if m == nil {
		return
	}
	m.viewFetches.WithLabelValues(view, kind, outcome).Inc()
}

// CacheLookup records a cache lookup result: "l1", "l2" or "miss".
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookup.WithLabelValues(result).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpReqs.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// SetActiveViews reports the number of sessions holding view state.
func (m *Metrics) SetActiveViews(n int) {
	if m == nil {
		return
	}
	m.activeViews.Set(float64(n))
}
