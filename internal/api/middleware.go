package api

import (
	"net/http"
	"strconv"
	"time"

	"cash-buying-power/observability"

	"github.com/go-chi/chi/v5"
)

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseSize int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.responseSize += size
	return size, err
}

// routePattern returns the matched chi pattern so metric labels stay bounded
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// MetricsMiddleware records HTTP metrics for each request
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		observability.GetMetrics().RecordHTTPRequest(
			r.Method,
			routePattern(r),
			strconv.Itoa(wrapped.statusCode),
			time.Since(start),
			wrapped.responseSize,
		)
	})
}

// LoggingMiddleware logs each API request at debug level and server errors at error level
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		logger := observability.WithContext(r.Context())
		args := []any{
			"method", r.Method,
			"path", routePattern(r),
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if wrapped.statusCode >= http.StatusInternalServerError {
			logger.Error("request failed", args...)
			return
		}
		logger.Debug("request served", args...)
	})
}
