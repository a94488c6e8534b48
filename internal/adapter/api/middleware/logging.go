package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/V4T54L/tenancy-engine/internal/adapter/metrics"
)

// responseWriter is a wrapper that captures the HTTP status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging is a middleware factory that logs HTTP requests and, when m is not
// nil, observes their duration per route pattern.
func Logging(logger *slog.Logger, m *metrics.LeaseMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)

			// The mux records the matched pattern on the request.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			if m != nil {
				m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Observe(duration.Seconds())
			}

			logger.Info("handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"remote_addr", r.RemoteAddr,
				"status", rw.statusCode,
				"duration_ms", duration.Milliseconds(),
			)
		})
	}
}
