package middleware

import (
	"context"
	"net/http"
	"time"
)

// RequestTimeout puts one deadline on the request context. Backend calls made
// while handling the request, retries included, share it, so the handler
// answers before the server's write deadline. A non-positive d disables it.
func RequestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
