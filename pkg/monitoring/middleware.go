package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medrex/record-registry/pkg/logger"
)

// MonitoringMiddleware combines request IDs, metrics, tracing and logging
type MonitoringMiddleware struct {
	metrics *MetricsCollector
	tracing *TracingManager
	logger  *logger.Logger
}

// NewMonitoringMiddleware creates a new monitoring middleware
func NewMonitoringMiddleware(metrics *MetricsCollector, tracing *TracingManager, log *logger.Logger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		tracing: tracing,
		logger:  log,
	}
}

// HTTPMiddleware creates comprehensive HTTP monitoring middleware
func (mm *MonitoringMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	traced := mm.tracing.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if traceID := mm.tracing.TraceIDFromContext(ctx); traceID != "" {
			ctx = context.WithValue(ctx, logger.TraceIDKey, traceID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	}))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)

		wrapper := &monitoringResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		wrapper.Header().Set("X-Request-ID", requestID)

		traced.ServeHTTP(wrapper, r.WithContext(ctx))

		duration := time.Since(start)
		route := routeTemplate(r)
		mm.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(wrapper.statusCode), duration)

		mm.logger.HTTPRequest(
			ctx,
			r.Method,
			route,
			r.UserAgent(),
			r.RemoteAddr,
			wrapper.statusCode,
			duration.Milliseconds(),
			map[string]interface{}{"bytes_written": wrapper.bytesWritten},
		)
	})
}

// TraceOperation runs fn inside a registry span and records its error
func (mm *MonitoringMiddleware) TraceOperation(ctx context.Context, operation string, fn func() error) error {
	_, span := mm.tracing.StartRegistrySpan(ctx, operation)
	defer span.End()

	err := fn()
	if err != nil {
		span.SetAttributes(attribute.Bool("registry.failed", true))
		mm.tracing.RecordError(span, err)
	}
	return err
}

// monitoringResponseWriter wraps http.ResponseWriter to capture response data
type monitoringResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (mrw *monitoringResponseWriter) WriteHeader(code int) {
	mrw.statusCode = code
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *monitoringResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.bytesWritten += int64(n)
	return n, err
}
