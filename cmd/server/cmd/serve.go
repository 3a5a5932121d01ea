package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/whitecross/gateway/internal/api"
	"github.com/whitecross/gateway/internal/api/middleware"
	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/audit"
	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/config"
	"github.com/whitecross/gateway/internal/metrics"
	"github.com/whitecross/gateway/internal/ratelimit"
	"github.com/whitecross/gateway/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

func newServeCommand(serve func(*cobra.Command, []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		Long: `Start the gateway HTTP server and begin accepting browser requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Connect the rate limiter to Redis when RATE_LIMIT_REDIS_URL is set
- Proxy /api/v1 requests to BACKEND_URL
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  whitecross serve

  # Start on a specific host and port
  whitecross serve --host 127.0.0.1 --port 9090

  # Start with debug logging in console format
  whitecross serve --log-level debug --log-format console

  # Start with a config file
  whitecross serve --config /etc/whitecross/gateway.yaml`,
		RunE: serve,
	}
	cmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	return runServer(cmd.Context())
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("environment", cfg.Environment).
		Str("backend", cfg.Backend.URL).
		Msg("starting gateway")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracer shutdown error")
		}
	}()

	client := newBackendClient(cfg, logger)

	var auditOpts []audit.Option
	if cfg.Audit.RemoteEnabled {
		auditOpts = append(auditOpts, audit.WithSink(audit.NewBackendSink(client)))
	}
	auditOpts = append(auditOpts, audit.WithDeliveryTimeout(cfg.Audit.Timeout))
	auditLogger := audit.NewLogger(logger, auditOpts...)

	var responseCache *cache.Cache
	if cfg.Cache.Enabled {
		responseCache = cache.New(cfg.Cache.MaxEntries)
	}

	store, closeStore, err := newRateLimitStore(ctx, cfg.RateLimit, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	handler := api.NewRouter(cfg, logger, api.Deps{
		Client:    client,
		Cache:     responseCache,
		Audit:     auditLogger,
		JWT:       auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer),
		Limiter:   newLimiter(store, cfg.RateLimit),
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return gracefulShutdown(server, errCh, logger)
}

// writeTimeout outlasts the per-request deadline (one full backend retry
// budget) plus audit delivery, so a late answer is still written.
func writeTimeout(cfg config.Config) time.Duration {
	return cfg.Backend.RetryBudget() + cfg.Audit.Timeout + 5*time.Second
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func newBackendClient(cfg config.Config, logger zerolog.Logger) *apiclient.Client {
	return apiclient.New(cfg.Backend.URL,
		apiclient.WithTimeout(cfg.Backend.Timeout),
		apiclient.WithMaxAttempts(cfg.Backend.MaxAttempts),
		apiclient.WithBackoff(cfg.Backend.RetryBaseDelay, cfg.Backend.RetryMaxDelay),
		apiclient.WithTokenSource(auth.TokenFromContext),
		apiclient.WithRequestIDSource(middleware.GetRequestID),
		apiclient.WithRateLimit(cfg.Backend.RequestsPerSecond),
		apiclient.WithLogger(logger),
	)
}

// newRateLimitStore returns the shared Redis store when configured, otherwise
// an in-process store. The returned func releases it.
func newRateLimitStore(ctx context.Context, cfg config.RateLimitConfig, logger zerolog.Logger) (ratelimit.Store, func(), error) {
	if cfg.RedisURL == "" {
		store := ratelimit.NewMemoryStore(time.Minute)
		logger.Info().Msg("rate limiter using in-memory store")
		return store, store.Stop, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := ratelimit.NewRedisStoreFromURL(connectCtx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("rate limit store: %w", err)
	}
	logger.Info().Msg("rate limiter using redis store")
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}, nil
}

func newLimiter(store ratelimit.Store, cfg config.RateLimitConfig) *ratelimit.Limiter {
	return ratelimit.NewLimiter(store,
		ratelimit.Policy{Name: ratelimit.PolicyLogin, Limit: cfg.LoginLimit, Window: cfg.LoginWindow},
		ratelimit.Policy{Name: ratelimit.PolicyAPI, Limit: cfg.APILimit, Window: cfg.Window},
		ratelimit.Policy{Name: ratelimit.PolicyPHI, Limit: cfg.PHILimit, Window: cfg.Window},
		ratelimit.Policy{Name: ratelimit.PolicyMutation, Limit: cfg.MutationLimit, Window: cfg.Window},
	)
}

func gracefulShutdown(server *http.Server, errCh <-chan error, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-stop:
	}
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
