package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notification-prep/internal/handler/http/responsewriter"
	"notification-prep/internal/observability/metrics"
)

// knownPaths are reported as their own label value; anything else is "other"
// so unknown URLs cannot grow label cardinality.
var knownPaths = map[string]bool{
	"/routing/summary": true,
	"/health":          true,
	"/health/ready":    true,
	"/health/live":     true,
	"/metrics":         true,
}

func pathLabel(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}

// MetricsMiddleware records request count, duration and sizes per method,
// path and status.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()

		rw := responsewriter.Wrap(w)
		start := time.Now()
		next.ServeHTTP(rw, r)

		metrics.RecordHTTPRequest(
			r.Method,
			pathLabel(r.URL.Path),
			strconv.Itoa(rw.StatusCode()),
			time.Since(start),
			int(max(r.ContentLength, 0)),
			rw.BytesWritten(),
		)
	})
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
