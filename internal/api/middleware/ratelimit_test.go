package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whitecross/gateway/internal/api/problem"
	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/metrics"
	"github.com/whitecross/gateway/internal/ratelimit"
	"github.com/whitecross/gateway/internal/testauth"
)

func newTestLimiter(t *testing.T, policies ...ratelimit.Policy) *ratelimit.Limiter {
	t.Helper()
	store := ratelimit.NewMemoryStore(0)
	t.Cleanup(store.Stop)
	return ratelimit.NewLimiter(store, policies...)
}

func limitedRoute(limiter *ratelimit.Limiter, policy string, trusted TrustedProxies) http.Handler {
	h := RateLimit(limiter, trusted, "test")(okHandler())
	if policy != "" {
		h = WithRateLimitPolicyHandler(policy)(h)
	}
	return Session(testManager(), "")(h)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	limiter := newTestLimiter(t, ratelimit.Policy{Name: ratelimit.PolicyLogin, Limit: 2, Window: time.Minute})
	h := limitedRoute(limiter, ratelimit.PolicyLogin, nil)
	before := testutil.ToFloat64(metrics.RateLimitRejectionsTotal.WithLabelValues(ratelimit.PolicyLogin))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "203.0.113.10:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "203.0.113.10:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	retryAfter := rec.Header().Get("Retry-After")
	require.NotEmpty(t, retryAfter)
	assert.NotEqual(t, "0", retryAfter)

	var p problem.ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, problem.TypeRateLimited, p.Type)
	assert.Equal(t, http.StatusTooManyRequests, p.Status)

	after := testutil.ToFloat64(metrics.RateLimitRejectionsTotal.WithLabelValues(ratelimit.PolicyLogin))
	assert.Equal(t, before+1, after)

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "203.0.113.11:5000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_KeysAuthenticatedUsersBySubject(t *testing.T) {
	limiter := newTestLimiter(t, ratelimit.Policy{Name: ratelimit.PolicyPHI, Limit: 1, Window: time.Minute})
	h := limitedRoute(limiter, ratelimit.PolicyPHI, nil)
	nurse := newAuthenticator(t, auth.RoleNurse)
	admin := newAuthenticator(t, auth.RoleAdmin)

	send := func(ta *testauth.TestAuthenticator) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health-records", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		ta.AddAuth(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send(nurse))
	require.Equal(t, http.StatusTooManyRequests, send(nurse))
	// Same IP, different user.
	require.Equal(t, http.StatusOK, send(admin))
}

func TestRateLimit_DefaultsToAPIPolicy(t *testing.T) {
	limiter := newTestLimiter(t, ratelimit.Policy{Name: ratelimit.PolicyAPI, Limit: 1, Window: time.Minute})
	h := limitedRoute(limiter, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_ExemptsProbes(t *testing.T) {
	limiter := newTestLimiter(t, ratelimit.Policy{Name: ratelimit.PolicyAPI, Limit: 1, Window: time.Minute})
	h := limitedRoute(limiter, "", nil)

	for i := 0; i < 3; i++ {
		for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			require.Equal(t, http.StatusOK, rec.Code, path)
		}
	}
}

func TestRateLimit_TrustedProxyForwarding(t *testing.T) {
	limiter := newTestLimiter(t, ratelimit.Policy{Name: ratelimit.PolicyLogin, Limit: 1, Window: time.Minute})
	trusted := ParseTrustedProxies([]string{"10.0.0.0/8"})
	h := limitedRoute(limiter, ratelimit.PolicyLogin, trusted)

	send := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// Through the proxy each forwarded client gets its own window.
	require.Equal(t, http.StatusOK, send("10.0.0.5:80", "192.0.2.1"))
	require.Equal(t, http.StatusOK, send("10.0.0.5:80", "192.0.2.2"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.5:80", "192.0.2.1, 10.0.0.9"))

	// Untrusted peers cannot spoof their way out.
	require.Equal(t, http.StatusOK, send("203.0.113.50:80", "192.0.2.3"))
	require.Equal(t, http.StatusTooManyRequests, send("203.0.113.50:80", "192.0.2.4"))
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis: connection refused")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := ratelimit.NewLimiter(failingStore{}, ratelimit.Policy{Name: ratelimit.PolicyMutation, Limit: 1, Window: time.Minute})
	h := limitedRoute(limiter, ratelimit.PolicyMutation, nil)
	before := testutil.ToFloat64(metrics.RateLimitErrorsTotal.WithLabelValues(ratelimit.PolicyMutation))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/incidents", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	after := testutil.ToFloat64(metrics.RateLimitErrorsTotal.WithLabelValues(ratelimit.PolicyMutation))
	require.Equal(t, before+3, after)
}

func TestClientIP(t *testing.T) {
	trusted := ParseTrustedProxies([]string{"10.0.0.0/8", "not-a-cidr"})
	require.Len(t, trusted, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Real-IP", "192.0.2.9")
	assert.Equal(t, "192.0.2.9", ClientIP(req, trusted))

	req.RemoteAddr = "203.0.113.1:443"
	assert.Equal(t, "203.0.113.1", ClientIP(req, trusted))
	assert.Equal(t, "203.0.113.1", ClientIP(req, nil))
}
