package monitoring

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector handles Prometheus metrics collection. Each collector
// owns its registry.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	operationsTotal     *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	authAttemptsTotal   *prometheus.CounterVec
	rateLimitedTotal    prometheus.Counter
	systemErrors        *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	constLabels := prometheus.Labels{"service": serviceName}

	m := &MetricsCollector{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),

		// HTTP request metrics
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "Duration of HTTP requests in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint"},
		),

		// Registry operation metrics
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "registry_operations_total",
				Help:        "Total number of registry operations by outcome",
				ConstLabels: constLabels,
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "registry_operation_duration_seconds",
				Help:        "Duration of registry operations in seconds",
				Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),

		// Authentication metrics
		authAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "auth_attempts_total",
				Help:        "Total number of authentication attempts",
				ConstLabels: constLabels,
			},
			[]string{"method", "status"},
		),
		rateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "rate_limited_requests_total",
				Help:        "Total number of requests rejected by the rate limiter",
				ConstLabels: constLabels,
			},
		),

		// System metrics
		systemErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "system_errors_total",
				Help:        "Total number of system errors",
				ConstLabels: constLabels,
			},
			[]string{"error_type", "component"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.operationsTotal,
		m.operationDuration,
		m.authAttemptsTotal,
		m.rateLimitedTotal,
		m.systemErrors,
	)

	return m
}

// Registry returns the collector's Prometheus registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveOperation records a registry operation outcome
func (m *MetricsCollector) ObserveOperation(operation, outcome string, duration time.Duration) {
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAuthAttempt records authentication attempt metrics
func (m *MetricsCollector) RecordAuthAttempt(method, status string) {
	m.authAttemptsTotal.WithLabelValues(method, status).Inc()
}

// RecordRateLimited counts a request rejected by the rate limiter
func (m *MetricsCollector) RecordRateLimited() {
	m.rateLimitedTotal.Inc()
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	m.systemErrors.WithLabelValues(errorType, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// routeTemplate returns the matched route template so identities in paths
// never become label values.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
