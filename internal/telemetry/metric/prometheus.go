package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "salesdesk"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Request engine
	RequestsTotal   *prometheus.CounterVec
	AttemptsTotal   *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session store
	SessionInvalidations prometheus.Counter
	SessionEvents        *prometheus.CounterVec

	// CRUD facade
	ResourceFallbacks *prometheus.CounterVec

	// Dev proxy
	ProxyRequests *prometheus.CounterVec
	ProxyDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with all application metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Logical API requests by method and outcome.",
		}, []string{"method", "outcome"}),

		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "attempts_total",
			Help:      "HTTP attempts issued, including retries.",
		}, []string{"method"}),

		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "retries_total",
			Help:      "Attempts that were retried after a transient failure.",
		}, []string{"method"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of logical API requests including retry delays.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method"}),

		SessionInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "invalidations_total",
			Help:      "Sessions cleared after the backend rejected the token.",
		}),

		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session change events by type.",
		}, []string{"type"}),

		ResourceFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "fallbacks_total",
			Help:      "CRUD operations answered by a local fallback.",
		}, []string{"resource", "op"}),

		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Requests forwarded by the dev proxy.",
		}, []string{"method", "status"}),

		ProxyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "request_duration_seconds",
			Help:      "Dev proxy request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RequestsTotal,
		r.AttemptsTotal,
		r.RetriesTotal,
		r.RequestDuration,
		r.SessionInvalidations,
		r.SessionEvents,
		r.ResourceFallbacks,
		r.ProxyRequests,
		r.ProxyDuration,
	)

	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler returns the /metrics handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registerer exposes the underlying registry for extra collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordRequest records the outcome of one logical API request.
func (r *Registry) RecordRequest(method, outcome string, d time.Duration) {
	r.RequestsTotal.WithLabelValues(method, outcome).Inc()
	r.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordAttempt counts one HTTP attempt.
func (r *Registry) RecordAttempt(method string) {
	r.AttemptsTotal.WithLabelValues(method).Inc()
}

// RecordRetry counts one retried attempt.
func (r *Registry) RecordRetry(method string) {
	r.RetriesTotal.WithLabelValues(method).Inc()
}

// IncSessionInvalidated counts a 401-triggered session clear.
func (r *Registry) IncSessionInvalidated() {
	r.SessionInvalidations.Inc()
}

// RecordSessionEvent counts a session change event.
func (r *Registry) RecordSessionEvent(eventType string) {
	r.SessionEvents.WithLabelValues(eventType).Inc()
}

// RecordFallback counts a CRUD fallback result.
func (r *Registry) RecordFallback(resource, op string) {
	r.ResourceFallbacks.WithLabelValues(resource, op).Inc()
}

// RecordProxyRequest records one forwarded proxy request.
func (r *Registry) RecordProxyRequest(method, status string, d time.Duration) {
	r.ProxyRequests.WithLabelValues(method, status).Inc()
	r.ProxyDuration.WithLabelValues(method).Observe(d.Seconds())
}
