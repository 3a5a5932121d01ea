package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckTimeout int
	healthcheckURL     string
)

func newHealthcheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the gateway is ready",
		Long: `Performs a readiness check by calling the /readyz endpoint.

Used by the container HEALTHCHECK. Exits 0 when the gateway and its backend
are reachable, non-zero otherwise.`,
		RunE: runHealthcheck,
	}
	cmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	cmd.Flags().StringVar(&healthcheckURL, "url", "", "readiness URL (default: http://localhost:{SERVER_PORT}/readyz)")
	return cmd
}

// healthStatus is the subset of the probe response the command reads.
type healthStatus struct {
	Status string `json:"status"`
}

type healthResult struct {
	IsHealthy bool
	Status    string
	LatencyMs int64
	Error     string
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		url = fmt.Sprintf("http://localhost:%s/readyz", port)
	}

	result := performHealthCheck(url)
	if !result.IsHealthy {
		if result.Error != "" {
			return errors.New(result.Error)
		}
		return fmt.Errorf("unhealthy: status=%s", result.Status)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (%dms)\n", result.Status, result.LatencyMs)
	return nil
}

// performHealthCheck accepts "ready" (readyz) and "ok" (healthz) as healthy.
func performHealthCheck(url string) healthResult {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return healthResult{Error: fmt.Sprintf("create request: %v", err)}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return healthResult{Error: fmt.Sprintf("health check failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	result := healthResult{LatencyMs: time.Since(start).Milliseconds()}

	var body healthStatus
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Error = fmt.Sprintf("parse response: %v", err)
		return result
	}
	result.Status = body.Status

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Sprintf("health check returned status %d (%s)", resp.StatusCode, body.Status)
		return result
	}
	result.IsHealthy = body.Status == "ready" || body.Status == "ok"
	return result
}
