package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New("shortlinks")

	m.CacheLookup(CacheHit)
	m.CacheLookup(CacheHit)
	m.CacheLookup(CacheMiss)
	m.Resolve(ResolveRedirect, "cache")
	m.Resolve(ResolveExpired, "store")
	m.LinkCreated()
	m.LinksSwept(3)
	m.LinksSwept(0)
	m.VisitDropped("queue_full")
	m.VisitFailed("publish")
	m.EventConsumed(EventMalformed)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"cache hits", testutil.ToFloat64(m.cacheLookups.WithLabelValues(CacheHit)), 2},
		{"cache misses", testutil.ToFloat64(m.cacheLookups.WithLabelValues(CacheMiss)), 1},
		{"cache redirects", testutil.ToFloat64(m.resolves.WithLabelValues(ResolveRedirect, "cache")), 1},
		{"store expired", testutil.ToFloat64(m.resolves.WithLabelValues(ResolveExpired, "store")), 1},
		{"links created", testutil.ToFloat64(m.linksCreated), 1},
		{"links swept", testutil.ToFloat64(m.linksSwept), 3},
		{"visits dropped", testutil.ToFloat64(m.visitsDropped.WithLabelValues("queue_full")), 1},
		{"publish failures", testutil.ToFloat64(m.visitFailures.WithLabelValues("publish")), 1},
		{"malformed events", testutil.ToFloat64(m.eventsConsumed.WithLabelValues(EventMalformed)), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.CacheLookup(CacheHit)
	m.Resolve(ResolveRedirect, "cache")
	m.LinkCreated()
	m.LinksSwept(1)
	m.VisitDropped("closed")
	m.VisitFailed("track")
	m.EventConsumed(EventStored)
	m.ObserveRequest(http.MethodGet, http.StatusFound, time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("nil Handler() status = %d, want 404", rr.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New("shortlinks")
	m.ObserveRequest(http.MethodGet, http.StatusFound, 3*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`shortlinks_http_requests_total{code="302",method="GET"} 1`,
		"shortlinks_http_request_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
