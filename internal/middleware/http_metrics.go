package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns to
// prevent cardinality explosion in metrics, mapping /sessions/abc123 to
// /sessions/{sid}.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":                true,
		"/sessions":        true,
		"/sessions/folder": true,
		"/refine":          true,
		"/results":         true,
		"/health":          true,
		"/health/ready":    true,
		"/metrics":         true,
	}

	if staticRoutes[path] {
		return path
	}

	// /sessions/{sid}
	if strings.HasPrefix(path, "/sessions/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/sessions/{sid}"
		}
	}

	return "/other"
}

// HTTPMetrics returns a middleware that records request count, duration,
// and response size per normalized route. It must wrap the logging
// middleware (not the other way around) so context updates from handlers
// still reach the logging response writer.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(rw.statusCode)

			metrics.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
			metrics.httpResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.size))
		})
	}
}
