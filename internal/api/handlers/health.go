package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/endpoints"
)

// HealthCheck represents the readiness of the gateway and its dependencies.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Pinger is the part of the backend client readiness needs.
type Pinger interface {
	Ping(ctx context.Context, path string) error
}

// HealthChecker answers readiness by pinging the backend.
type HealthChecker struct {
	backend   Pinger
	version   string
	gitCommit string
	timeout   time.Duration
}

func NewHealthChecker(backend Pinger, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		backend:   backend,
		version:   version,
		gitCommit: gitCommit,
		timeout:   3 * time.Second,
	}
}

// Readyz reports 200 when the backend answers its health endpoint and 503
// otherwise, including while the server is shutting down.
func (h *HealthChecker) Readyz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			respondHealth(w, http.StatusServiceUnavailable, "shutting_down")
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		checks := map[string]CheckResult{
			"backend": h.checkBackend(ctx),
		}

		status := "ready"
		statusCode := http.StatusOK
		for _, check := range checks {
			if check.Status == "fail" {
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}

		response := HealthCheck{
			Status:    status,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func (h *HealthChecker) checkBackend(ctx context.Context) CheckResult {
	if h.backend == nil {
		return CheckResult{Status: "fail", Message: "Backend client not configured"}
	}

	start := time.Now()
	err := h.backend.Ping(ctx, endpoints.Health)
	latency := time.Since(start).Milliseconds()
	if err == nil {
		return CheckResult{Status: "pass", Message: "Backend reachable", LatencyMs: latency}
	}

	message := "Backend health check failed"
	switch apiclient.CategoryOf(err) {
	case apiclient.CategoryTimeout:
		message = "Backend health check timed out"
	case apiclient.CategoryNetwork:
		message = "Backend unreachable"
	}
	details := map[string]any{"category": string(apiclient.CategoryOf(err))}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status > 0 {
		details["status"] = apiErr.Status
	}
	return CheckResult{Status: "fail", Message: message, LatencyMs: latency, Details: details}
}

// Healthz is the liveness probe; it never touches the backend.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
