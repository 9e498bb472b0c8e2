package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/metrics"
)

// Metrics records request count and latency per route. The chi route pattern
// keeps label cardinality bounded (no raw order ids in the path label).
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		metrics.RecordHTTPRequest(r.Method, path, sw.status, time.Since(start))
	})
}
