package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds each request with a deadline. Store calls inherit it
// through the request context; on expiry they fail with a deadline error
// the boundary maps to 503.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
