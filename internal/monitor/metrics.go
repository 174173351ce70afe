package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the HTTP surface. It is
// constructed once at startup and passed to whichever layer records into
// it; there is no package-global registry.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	rateLimited  prometheus.Counter
	authFailures *prometheus.CounterVec
	slowRequests prometheus.Counter
}

// NewMetrics creates and registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskboard",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskboard",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests denied by the rate limiter.",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskboard",
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Total number of authentication and authorization denials.",
		}, []string{"code"}),
		slowRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskboard",
			Subsystem: "http",
			Name:      "slow_requests_total",
			Help:      "Total number of requests exceeding the slow threshold.",
		}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.rateLimited,
		m.authFailures,
		m.slowRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementInFlight marks a request as started.
func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one completed request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRateLimited counts a denied admission.
func (m *Metrics) RecordRateLimited() { m.rateLimited.Inc() }

// RecordAuthFailure counts an authentication or authorization denial by
// error code.
func (m *Metrics) RecordAuthFailure(code string) {
	m.authFailures.WithLabelValues(code).Inc()
}

// RecordSlowRequest counts a request that exceeded the slow threshold.
func (m *Metrics) RecordSlowRequest() { m.slowRequests.Inc() }
