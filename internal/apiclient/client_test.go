package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type studentDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := []Option{WithBackoff(time.Millisecond, 5*time.Millisecond)}
	c := New(srv.URL+"/api/v1", append(base, opts...)...)
	c.jitter = func(d time.Duration) time.Duration { return d }
	return c, srv
}

func TestGetJSON_ForwardsTokenAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID, gotPath, gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"success":true,"data":{"student":{"id":"s-1","firstName":"Ada"}}}`))
	},
		WithTokenSource(func(context.Context) string { return "jwt-abc" }),
		WithRequestIDSource(func(context.Context) string { return "req-42" }),
	)

	var out studentDTO
	err := c.GetJSON(context.Background(), "/students/s-1", url.Values{"include": {"contacts"}}, "student", &out)
	require.NoError(t, err)

	require.Equal(t, "Bearer jwt-abc", gotAuth)
	require.Equal(t, "req-42", gotRequestID)
	require.Equal(t, "/api/v1/students/s-1", gotPath)
	require.Equal(t, "include=contacts", gotQuery)
	require.Equal(t, studentDTO{ID: "s-1", FirstName: "Ada"}, out)
}

func TestDo_RetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	})

	resp, err := c.Get(context.Background(), "/students", nil)
	require.NoError(t, err)
	require.Equal(t, 3, resp.Attempts)
	require.EqualValues(t, 3, calls.Load())
}

func TestDo_StopsAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":{"message":"database unavailable"}}`))
	}, WithMaxAttempts(4))

	_, err := c.Get(context.Background(), "/appointments", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, CategoryServer, apiErr.Category)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, 4, apiErr.Attempts)
	require.Equal(t, "database unavailable", apiErr.Message)
	require.EqualValues(t, 4, calls.Load())
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		category Category
	}{
		{"not found", http.StatusNotFound, CategoryNotFound},
		{"unauthorized", http.StatusUnauthorized, CategoryUnauthorized},
		{"forbidden", http.StatusForbidden, CategoryForbidden},
		{"conflict", http.StatusConflict, CategoryConflict},
		{"validation", http.StatusUnprocessableEntity, CategoryValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})

			_, err := c.Get(context.Background(), "/incidents/1", nil)
			require.Error(t, err)
			require.Equal(t, tt.category, CategoryOf(err))
			require.Equal(t, tt.status, StatusOf(err))
			require.False(t, IsRetryable(err))
			require.EqualValues(t, 1, calls.Load())
		})
	}
}

func TestDo_ValidationFieldErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":{"message":"Validation failed","code":"VALIDATION_ERROR","details":[{"field":"dateOfBirth","message":"must be in the past"}]}}`))
	})

	_, err := c.Post(context.Background(), "/students", map[string]string{"firstName": "Ada"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, CategoryValidation, apiErr.Category)
	require.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	require.Equal(t, map[string]string{"dateOfBirth": "must be in the past"}, apiErr.FieldErrors)
}

func TestDo_PostNotRetriedOnServerError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Post(context.Background(), "/medications/m-1/administrations", map[string]string{"dosageGiven": "5ml"})
	require.Error(t, err)
	require.EqualValues(t, 1, calls.Load())
}

func TestDo_PostRetriedOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["dosageGiven"] != "5ml" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"a-1"}}`))
	})

	resp, err := c.Post(context.Background(), "/medications/m-1/administrations", map[string]string{"dosageGiven": "5ml"})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status)
	require.Equal(t, 2, resp.Attempts)
}

func TestDo_NoRetryFlag(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.Ping(context.Background(), "/health")
	require.Error(t, err)
	require.EqualValues(t, 1, calls.Load())
}

func TestDo_PerAttemptTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, WithTimeout(50*time.Millisecond))

	resp, err := c.Get(context.Background(), "/health-records", nil)
	require.NoError(t, err)
	require.Equal(t, 2, resp.Attempts)
}

func TestDo_TimeoutCategory(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, WithTimeout(20*time.Millisecond), WithMaxAttempts(1))

	_, err := c.Get(context.Background(), "/students", nil)
	require.Error(t, err)
	require.Equal(t, CategoryTimeout, CategoryOf(err))
	require.True(t, IsRetryable(err))
}

func TestDo_NetworkErrorCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := New(addr, WithMaxAttempts(2), WithBackoff(time.Millisecond, time.Millisecond))
	_, err := c.Get(context.Background(), "/students", nil)
	require.Error(t, err)
	require.Equal(t, CategoryNetwork, CategoryOf(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 2, apiErr.Attempts)
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithBackoff(time.Hour, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.Get(ctx, "/students", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 5*time.Second)
	require.EqualValues(t, 1, calls.Load())
}

func TestBackoff(t *testing.T) {
	c := New("http://backend", WithBackoff(500*time.Millisecond, 3*time.Second))
	c.jitter = func(d time.Duration) time.Duration { return d }

	require.Equal(t, 500*time.Millisecond, c.backoff(1, 0))
	require.Equal(t, time.Second, c.backoff(2, 0))
	require.Equal(t, 2*time.Second, c.backoff(3, 0))
	require.Equal(t, 3*time.Second, c.backoff(4, 0), "capped")
	require.Equal(t, 3*time.Second, c.backoff(40, 0), "no overflow")
	require.Equal(t, 2*time.Second, c.backoff(1, 2*time.Second), "Retry-After wins")
	require.Equal(t, 3*time.Second, c.backoff(1, time.Minute), "Retry-After capped")
}

func TestEqualJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := equalJitter(time.Second)
		require.GreaterOrEqual(t, d, 500*time.Millisecond)
		require.LessOrEqual(t, d, time.Second)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	require.Equal(t, 7*time.Second, parseRetryAfter("7", now))
	require.Zero(t, parseRetryAfter("", now))
	require.Zero(t, parseRetryAfter("-3", now))
	require.Zero(t, parseRetryAfter("soon", now))
	require.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
}

func TestDo_RetryAfterOnlyForThrottlingStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   time.Duration
	}{
		{http.StatusTooManyRequests, 120 * time.Second},
		{http.StatusServiceUnavailable, 120 * time.Second},
		{http.StatusInternalServerError, 0},
		{http.StatusBadGateway, 0},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "120")
				w.WriteHeader(tt.status)
			}, WithMaxAttempts(1))

			_, err := c.Get(context.Background(), "/students", nil)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.want, apiErr.retryAfter)
		})
	}
}

func TestDo_ServerErrorRetryAfterIgnoredInBackoff(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, WithBackoff(time.Millisecond, time.Hour))

	start := time.Now()
	resp, err := c.Get(context.Background(), "/students", nil)
	require.NoError(t, err)
	require.Equal(t, 2, resp.Attempts)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestClassify(t *testing.T) {
	tests := map[int]Category{
		400: CategoryValidation,
		422: CategoryValidation,
		401: CategoryUnauthorized,
		403: CategoryForbidden,
		404: CategoryNotFound,
		409: CategoryConflict,
		429: CategoryRateLimited,
		408: CategoryServer,
		500: CategoryServer,
		503: CategoryServer,
		418: CategoryUnknown,
	}
	for status, want := range tests {
		require.Equal(t, want, Classify(status), "status %d", status)
	}
}
