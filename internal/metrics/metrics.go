// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like
// without tripping duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	auth     *prometheus.CounterVec
	visitors prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifeline",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lifeline",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifeline",
			Name:      "auth_attempts_total",
			Help:      "Registration, verification and login attempts by outcome.",
		}, []string{"action", "outcome"}),
		visitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lifeline",
			Name:      "visitors",
			Help:      "Last observed value of the visitor counter.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.auth,
		m.visitors,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request. route is the router
// pattern (e.g. /api/events/{id}), never the raw path, to keep cardinality low.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

// AuthAttempt counts an auth action ("register", "verify", "login", "github")
// with its outcome ("ok" or a short failure reason).
func (m *Metrics) AuthAttempt(action, outcome string) {
	if m == nil {
		return
	}
	m.auth.WithLabelValues(action, outcome).Inc()
}

// SetVisitors records the current visitor count.
func (m *Metrics) SetVisitors(n int64) {
	if m == nil {
		return
	}
	m.visitors.Set(float64(n))
}
