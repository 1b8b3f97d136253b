// Package metrics defines the Prometheus collectors for the redirect path,
// the visit pipeline and the HTTP layer.
//
// All methods are safe on a nil *Metrics, so components can run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"

	ResolveRedirect = "redirect"
	ResolveNotFound = "not_found"
	ResolveExpired  = "expired"
	ResolveError    = "error"

	EventStored    = "stored"
	EventMalformed = "malformed"
	EventFailed    = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	cacheLookups   *prometheus.CounterVec
	resolves       *prometheus.CounterVec
	linksCreated   prometheus.Counter
	linksSwept     prometheus.Counter
	visitsDropped  *prometheus.CounterVec
	visitFailures  *prometheus.CounterVec
	eventsConsumed *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers every collector, plus the Go and process collectors, on a fresh registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Redirect cache lookups by result.",
		}, []string{"result"}),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolves_total",
			Help:      "Short code resolutions by outcome and serving tier.",
		}, []string{"outcome", "source"}),
		linksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Short links issued.",
		}),
		linksSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_swept_total",
			Help:      "Expired links deleted by the sweeper.",
		}),
		visitsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_tasks_dropped_total",
			Help:      "Visit recording tasks rejected by the worker pool.",
		}, []string{"reason"}),
		visitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_side_effect_failures_total",
			Help:      "Failed visit side effects by step.",
		}, []string{"step"}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_consumed_total",
			Help:      "Visit messages handled by the analytics consumer, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.cacheLookups,
		m.resolves,
		m.linksCreated,
		m.linksSwept,
		m.visitsDropped,
		m.visitFailures,
		m.eventsConsumed,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Resolve records a resolution; source is "cache" or "store".
func (m *Metrics) Resolve(outcome, source string) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(outcome, source).Inc()
}

func (m *Metrics) LinkCreated() {
	if m == nil {
		return
	}
	m.linksCreated.Inc()
}

func (m *Metrics) LinksSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.linksSwept.Add(float64(n))
}

func (m *Metrics) VisitDropped(reason string) {
	if m == nil {
		return
	}
	m.visitsDropped.WithLabelValues(reason).Inc()
}

// VisitFailed counts a failed side effect; step is "publish" or "track".
func (m *Metrics) VisitFailed(step string) {
	if m == nil {
		return
	}
	m.visitFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) EventConsumed(result string) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(result).Inc()
}

// ObserveRequest satisfies httpx.RequestObserver.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
