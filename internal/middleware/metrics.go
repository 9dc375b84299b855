package middleware

import (
	"net/http"
	"time"

	"storecfg/internal/observability"
)

// MetricsMiddleware records request count, latency and in-flight requests
// under a fixed route label. A nil metrics value disables recording.
func MetricsMiddleware(metrics *observability.HTTPMetrics, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			metrics.RequestStarted(ctx)
			start := time.Now()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			metrics.RequestFinished(ctx, route, rec.status, time.Since(start))
		})
	}
}
