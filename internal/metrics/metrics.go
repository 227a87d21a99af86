// Package metrics exposes Prometheus collectors for HTTP traffic and circulation.
//
// Each Metrics value owns its registry, so tests and multiple servers in one
// process never collide on registration.
//
// # Usage
//
//	m := metrics.New("librarian")
//	router.Use(m.Middleware())
//	router.GET("/metrics", gin.WrapH(m.Handler()))
//	m.ObserveCirculation("borrow", "success")
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by callers.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	circulation     *prometheus.CounterVec
	importedRows    *prometheus.CounterVec
}

// New registers every collector under the given namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of HTTP requests by status code, method and route.",
		}, []string{"status_code", "method", "path"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_progress",
			Help:      "HTTP requests currently being served.",
		}),
		circulation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circulation_operations_total",
			Help:      "Borrow and return attempts by outcome.",
		}, []string{"operation", "outcome"}),
		importedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Bulk import rows by outcome (succeeded, failed, duplicate).",
		}, []string{"outcome"}),
	}

	registry.MustRegister(m.requests, m.requestDuration, m.inFlight, m.circulation, m.importedRows)
	return m
}

// ObserveCirculation counts one circulation attempt.
func (m *Metrics) ObserveCirculation(operation, outcome string) {
	if m == nil {
		return
	}
	m.circulation.WithLabelValues(operation, outcome).Inc()
}

// ObserveImport adds n rows with the given outcome.
func (m *Metrics) ObserveImport(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importedRows.WithLabelValues(outcome).Add(float64(n))
}

// Middleware records request counts and latency keyed by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requests.WithLabelValues(status, c.Request.Method, path).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
