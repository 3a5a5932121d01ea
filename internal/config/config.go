package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/whitecross/gateway/internal/validation"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"

	minJWTSecretLength = 32
	csrfKeyLength      = 32
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Backend     BackendConfig   `yaml:"backend"`
	Auth        AuthConfig      `yaml:"auth"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Cache       CacheConfig     `yaml:"cache"`
	Audit       AuditConfig     `yaml:"audit"`
	CORS        CORSConfig      `yaml:"cors"`
	Logging     LoggingConfig   `yaml:"logging"`
	Tracing     TracingConfig   `yaml:"tracing"`
	Environment string          `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
}

type ServerConfig struct {
	Host              string   `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port              int      `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs" env:"TRUSTED_PROXY_CIDRS" env-separator:","`
	MaxBodyBytes      int64    `yaml:"max_body_bytes" env:"SERVER_MAX_BODY_BYTES" env-default:"1048576"`
}

// BackendConfig describes the upstream White Cross REST API.
type BackendConfig struct {
	URL            string        `yaml:"url" env:"BACKEND_URL"`
	Timeout        time.Duration `yaml:"timeout" env:"BACKEND_TIMEOUT" env-default:"30s"`
	MaxAttempts    int           `yaml:"max_attempts" env:"BACKEND_MAX_ATTEMPTS" env-default:"3"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" env:"BACKEND_RETRY_BASE_DELAY" env-default:"500ms"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" env:"BACKEND_RETRY_MAX_DELAY" env-default:"10s"`
	// RequestsPerSecond caps outbound traffic; 0 means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"BACKEND_REQUESTS_PER_SECOND" env-default:"0"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer  string        `yaml:"jwt_issuer" env:"JWT_ISSUER" env-default:"white-cross"`
	JWTExpiry  time.Duration `yaml:"jwt_expiry" env:"JWT_EXPIRY" env-default:"8h"`
	CookieName string        `yaml:"cookie_name" env:"AUTH_COOKIE_NAME" env-default:"wc_auth_token"`
	CSRFKey    string        `yaml:"csrf_key" env:"CSRF_KEY"`
}

// RateLimitConfig sets requests allowed per window for each policy.
// A limit of zero or less disables that policy.
type RateLimitConfig struct {
	LoginLimit    int           `yaml:"login_limit" env:"RATE_LIMIT_LOGIN" env-default:"5"`
	LoginWindow   time.Duration `yaml:"login_window" env:"RATE_LIMIT_LOGIN_WINDOW" env-default:"15m"`
	APILimit      int           `yaml:"api_limit" env:"RATE_LIMIT_API" env-default:"100"`
	PHILimit      int           `yaml:"phi_limit" env:"RATE_LIMIT_PHI" env-default:"60"`
	MutationLimit int           `yaml:"mutation_limit" env:"RATE_LIMIT_MUTATION" env-default:"30"`
	Window        time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
	RedisURL      string        `yaml:"redis_url" env:"RATE_LIMIT_REDIS_URL"`
}

type CacheConfig struct {
	Enabled    bool `yaml:"enabled" env:"CACHE_ENABLED" env-default:"true"`
	MaxEntries int  `yaml:"max_entries" env:"CACHE_MAX_ENTRIES" env-default:"5000"`
}

type AuditConfig struct {
	RemoteEnabled bool          `yaml:"remote_enabled" env:"AUDIT_REMOTE_ENABLED" env-default:"true"`
	Timeout       time.Duration `yaml:"timeout" env:"AUDIT_TIMEOUT" env-default:"3s"`
}

type CORSConfig struct {
	AllowedOrigins  []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
	AllowAllOrigins bool     `yaml:"-"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" env:"TRACING_ENABLED" env-default:"false"`
	Exporter     string  `yaml:"exporter" env:"TRACING_EXPORTER" env-default:"stdout"`
	ServiceName  string  `yaml:"service_name" env:"TRACING_SERVICE_NAME" env-default:"whitecross-gateway"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	SampleRate   float64 `yaml:"sample_rate" env:"TRACING_SAMPLE_RATE" env-default:"1.0"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	return finalize(cfg)
}

// LoadFile reads a YAML config file; environment variables override file values.
func LoadFile(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Load()
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return finalize(cfg)
}

func finalize(cfg Config) (Config, error) {
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.Backend.URL = strings.TrimRight(strings.TrimSpace(cfg.Backend.URL), "/")
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)
	cfg.Server.TrustedProxyCIDRs = trimAll(cfg.Server.TrustedProxyCIDRs)
	cfg.CORS.AllowAllOrigins = cfg.Environment == EnvDevelopment || cfg.Environment == EnvTest

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and cross-field constraints.
func (c Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvTest, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("ENVIRONMENT must be one of development, test, staging, production (got %q)", c.Environment)
	}

	if err := validation.ValidateURL(c.Backend.URL, "BACKEND_URL", false); err != nil {
		return err
	}
	if c.Backend.MaxAttempts < 1 {
		return fmt.Errorf("BACKEND_MAX_ATTEMPTS must be at least 1")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Auth.CSRFKey != "" && len(c.Auth.CSRFKey) != csrfKeyLength {
		return fmt.Errorf("CSRF_KEY must be exactly %d bytes", csrfKeyLength)
	}

	if c.Environment == EnvProduction && len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS is required in production")
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if err := validation.ValidateOrigin(origin, "CORS_ALLOWED_ORIGINS"); err != nil {
			return err
		}
	}
	return nil
}

// RetryBudget is the longest one backend call can take: every attempt timing
// out, with the longest backoff between attempts.
func (b BackendConfig) RetryBudget() time.Duration {
	attempts := max(b.MaxAttempts, 1)
	return time.Duration(attempts)*b.Timeout + time.Duration(attempts-1)*b.RetryMaxDelay
}

// IsProduction reports whether secure-cookie and sanitized-error behaviour applies.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction || c.Environment == EnvStaging
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
