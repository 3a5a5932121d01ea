package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/whitecross/gateway/internal/api/problem"
	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/metrics"
	"github.com/whitecross/gateway/internal/ratelimit"
)

type rateLimitKey string

const rateLimitPolicyKey rateLimitKey = "rateLimitPolicy"

func WithRateLimitPolicy(ctx context.Context, policy string) context.Context {
	return context.WithValue(ctx, rateLimitPolicyKey, policy)
}

// WithRateLimitPolicyHandler selects the policy RateLimit applies to the
// wrapped route.
func WithRateLimitPolicyHandler(policy string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithRateLimitPolicy(r.Context(), policy)))
		})
	}
}

// RateLimitPolicy returns the policy selected for r, defaulting to the
// general API policy.
func RateLimitPolicy(r *http.Request) string {
	if policy, ok := r.Context().Value(rateLimitPolicyKey).(string); ok && policy != "" {
		return policy
	}
	return ratelimit.PolicyAPI
}

// RateLimit enforces the request's policy. Authenticated callers are keyed
// by user, everyone else by client IP; login attempts are always keyed by IP.
// Store failures let the request through.
func RateLimit(limiter *ratelimit.Limiter, trusted TrustedProxies, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			policy := RateLimitPolicy(r)
			client := rateLimitClient(r, policy, trusted)

			decision, err := limiter.Allow(r.Context(), policy, client)
			if err != nil {
				metrics.RateLimitErrorsTotal.WithLabelValues(policy).Inc()
				zerolog.Ctx(r.Context()).Warn().
					Err(err).
					Str("policy", policy).
					Msg("rate limit store unavailable, allowing request")
			}

			if decision.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			}

			if !decision.Allowed {
				retryAfter := retryAfterSeconds(decision)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				metrics.RateLimitRejectionsTotal.WithLabelValues(policy).Inc()
				problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Too many requests",
					fmt.Errorf("rate limit %s exceeded", policy), env,
					problem.WithDetail(fmt.Sprintf("Too many requests. Retry after %d seconds.", retryAfter)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitClient(r *http.Request, policy string, trusted TrustedProxies) string {
	if policy != ratelimit.PolicyLogin {
		if subject := auth.Subject(r.Context()); subject != "" {
			return "user:" + subject
		}
	}
	return "ip:" + ClientIP(r, trusted)
}

func retryAfterSeconds(d ratelimit.Decision) int {
	seconds := int(math.Ceil(d.RetryAfter.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
