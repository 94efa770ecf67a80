package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

// HTTPObserver records one finished request.
type HTTPObserver interface {
	ObserveHTTPRequest(method, route string, code int, duration time.Duration)
}

// MetricsMiddleware reports every request by its route pattern so ids in the
// path do not explode label cardinality.
func MetricsMiddleware(observer HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				route := "unmatched"
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				observer.ObserveHTTPRequest(r.Method, route, status, time.Since(start))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
