package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/whitecross/gateway/internal/audit"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request correlation ID
	RequestIDKey contextKey = "request_id"
)

// CorrelationID assigns a request ID, attaches a request-scoped logger and
// records the caller's origin for audit entries.
func CorrelationID(logger zerolog.Logger, trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID, ok := inboundRequestID(r, trusted)
			if !ok {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			reqLogger := logger.With().Str("request_id", requestID).Logger()

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = reqLogger.WithContext(ctx)
			ctx = audit.WithOrigin(ctx, audit.Origin{
				IPAddress: ClientIP(r, trusted),
				UserAgent: r.UserAgent(),
				RequestID: requestID,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// inboundRequestID returns the X-Request-ID set by a trusted proxy. Anything
// else, including IDs sent directly by clients, is replaced.
func inboundRequestID(r *http.Request, trusted TrustedProxies) (string, bool) {
	value := r.Header.Get("X-Request-ID")
	if len(value) != 36 || !trusted.forwarded(r) {
		return "", false
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
