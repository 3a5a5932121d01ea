package middleware

import (
	"net/http"

	"github.com/whitecross/gateway/internal/api/problem"
	"github.com/whitecross/gateway/internal/validation"
)

// DefaultMaxBodySize is used when no positive limit is configured.
const DefaultMaxBodySize int64 = 1 << 20 // 1MB

// RequestSize limits the size of incoming request bodies.
//
// It wraps the body with http.MaxBytesReader; decoding then
// fails with validation.ErrBodyTooLarge and handlers answer 413. Requests that declare
// an oversized Content-Length are rejected before the handler runs.
func RequestSize(maxBytes int64, env string) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeTooLarge(w, r, env)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeTooLarge(w http.ResponseWriter, r *http.Request, env string) {
	problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypePayloadTooLarge, "Request body too large", validation.ErrBodyTooLarge, env)
}
