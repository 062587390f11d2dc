package monitoring

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// IsInitialized reports whether Initialize has completed successfully
func IsInitialized() bool {
	return atomic.LoadInt32(&initialized) == 1
}

// Handler returns the metrics endpoint. It answers 503 until Initialize succeeds.
func Handler() http.Handler {
	if !IsInitialized() || metricsHandler == nil {
		return staticHandler(http.StatusServiceUnavailable, "# Metrics not initialized\n")
	}
	return metricsHandler
}

// HTTPMetricsMiddleware records request counts and latency labelled by the chi route pattern.
// Unmatched requests are labelled "unknown" to keep cardinality bounded.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsInitialized() {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		recordHTTPRequest(r.Method, routeLabel(r, rw.statusCode), rw.statusCode, time.Since(start))
	})
}

// routeLabel must be called after the router has served the request so the pattern is populated
func routeLabel(r *http.Request, status int) string {
	if status == http.StatusNotFound {
		return "unknown"
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets server-sent event handlers stream through the middleware
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
