package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.APICall("playlists.list", time.Millisecond, nil)
	m.ViewFetch("playlists", "load", "ok")
	m.CacheLookup("miss")
	m.HTTPRequest("GET", "/", 200, time.Millisecond)
	m.SetActiveViews(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil Handler status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAPICallOutcomes(t *testing.T) {
	m := New()
	m.APICall("playlists.list", 10*time.Millisecond, nil)
	m.APICall("playlists.list", 10*time.Millisecond, errors.New("quota"))
	m.APICall("playlists.list", 10*time.Millisecond, nil)

	if got := testutil.ToFloat64(m.apiCalls.WithLabelValues("playlists.list", "ok")); got != 2 {
		t.Errorf("ok calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.apiCalls.WithLabelValues("playlists.list", "error")); got != 1 {
		t.Errorf("error calls = %v, want 1", got)
	}
}

func TestViewFetchAndGauge(t *testing.T) {
	m := New()
	m.ViewFetch("search", "search", "stale")
	m.SetActiveViews(4)

	if got := testutil.ToFloat64(m.viewFetches.WithLabelValues("search", "search", "stale")); got != 1 {
		t.Errorf("stale fetches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activeViews); got != 4 {
		t.Errorf("active views = %v, want 4", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.HTTPRequest("GET", "GET /api/v1/health", 200, 5*time.Millisecond)
	m.CacheLookup("l1")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"tubedeck_http_requests_total",
		"tubedeck_cache_lookups_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("/metrics output missing %s", name)
		}
	}
}
