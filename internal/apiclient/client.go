// Package apiclient is the gateway's client for the White Cross backend REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/whitecross/gateway/internal/metrics"
)

const (
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxAttempts includes the first try.
	DefaultMaxAttempts = 3
	// DefaultRetryBaseDelay is the first backoff delay.
	DefaultRetryBaseDelay = 500 * time.Millisecond
	// DefaultRetryMaxDelay caps backoff and Retry-After.
	DefaultRetryMaxDelay = 10 * time.Second

	maxResponseBytes = 10 << 20
	tracerName       = "github.com/whitecross/gateway/internal/apiclient"
)

// ContextValue reads a per-request string (bearer token, request ID) from ctx.
type ContextValue func(ctx context.Context) string

// Request is a single logical backend call; the client may send it more than once.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Header  http.Header
	NoRetry bool
}

// Response is a successful (2xx) backend response.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Attempts int
}

// Client handles communication with the backend API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	token       ContextValue
	requestID   ContextValue
	limiter     *rate.Limiter
	logger      zerolog.Logger
	tracer      trace.Tracer

	jitter func(time.Duration) time.Duration
	now    func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxAttempts sets how many times a request may be sent, including the first.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the exponential backoff base and cap.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// WithTokenSource forwards the caller's bearer token on every request.
func WithTokenSource(fn ContextValue) Option {
	return func(c *Client) {
		c.token = fn
	}
}

// WithRequestIDSource forwards the correlation ID as X-Request-ID.
func WithRequestIDSource(fn ContextValue) Option {
	return func(c *Client) {
		c.requestID = fn
	}
}

// WithRateLimit caps outbound requests per second; rps <= 0 disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a backend client rooted at baseURL (e.g. "http://localhost:3001/api/v1").
func New(baseURL string, opts ...Option) *Client {
	client := &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(baseURL, "/"),
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultRetryBaseDelay,
		maxDelay:    DefaultRetryMaxDelay,
		logger:      zerolog.Nop(),
		tracer:      otel.Tracer(tracerName),
		jitter:      equalJitter,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// GetJSON fetches path and decodes the enveloped record under key into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, key string, out any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	return DecodeData(resp.Body, key, out)
}

// Ping performs a single unretried GET, used by readiness checks.
func (c *Client) Ping(ctx context.Context, path string) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, NoRetry: true})
	return err
}

// Do sends req with per-attempt timeouts and bounded exponential backoff.
// Cancelling ctx stops any pending retry immediately.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	var payload []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = encoded
	}

	var lastErr *APIError
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt-1, lastErr.retryAfter)
			metrics.BackendRetriesTotal.WithLabelValues(req.Method, string(lastErr.Category)).Inc()
			c.logger.Debug().
				Str("method", req.Method).
				Str("path", req.Path).
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("category", string(lastErr.Category)).
				Msg("retrying backend request")

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, c.canceled(req, attempt-1, ctx.Err())
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, c.canceled(req, attempt-1, err)
			}
		}

		resp, apiErr := c.attempt(ctx, req, payload, attempt)
		if apiErr == nil {
			resp.Attempts = attempt
			return resp, nil
		}
		apiErr.Attempts = attempt
		lastErr = apiErr

		if ctx.Err() != nil {
			return nil, c.canceled(req, attempt, ctx.Err())
		}
		if req.NoRetry || !shouldRetry(req.Method, apiErr) {
			return nil, apiErr
		}
	}

	c.logger.Warn().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("attempts", lastErr.Attempts).
		Int("status", lastErr.Status).
		Msg("backend retries exhausted")
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, req Request, payload []byte, attempt int) (*Response, *APIError) {
	endpoint := metrics.NormalizePath(req.Path)

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	attemptCtx, span := c.tracer.Start(attemptCtx, "backend "+req.Method+" "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.route", endpoint),
			attribute.Int("retry.attempt", attempt),
		),
	)
	defer span.End()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, c.url(req.Path, req.Query), body)
	if err != nil {
		return nil, &APIError{Method: req.Method, Path: req.Path, Category: CategoryUnknown, Message: "build request", Err: err}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if c.requestID != nil {
		if id := c.requestID(ctx); id != "" {
			httpReq.Header.Set("X-Request-ID", id)
		}
	}
	otel.GetTextMapPropagator().Inject(attemptCtx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		category := CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = CategoryTimeout
		}
		c.observe(req.Method, endpoint, string(category), start)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(category))
		return nil, &APIError{Method: req.Method, Path: req.Path, Category: category, Message: "backend request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		category := CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = CategoryTimeout
		}
		c.observe(req.Method, endpoint, string(category), start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read response")
		return nil, &APIError{Method: req.Method, Path: req.Path, Status: resp.StatusCode, Category: category, Message: "read response", Err: err}
	}

	c.observe(req.Method, endpoint, strconv.Itoa(resp.StatusCode), start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		span.SetStatus(codes.Ok, "")
		return &Response{Status: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
	}

	span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	message, code, fields := parseErrorBody(respBody)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return nil, &APIError{
		Method:      req.Method,
		Path:        req.Path,
		Status:      resp.StatusCode,
		Category:    Classify(resp.StatusCode),
		Message:     message,
		Code:        code,
		FieldErrors: fields,
		retryAfter:  c.retryAfter(resp),
	}
}

// retryAfter honors the header only on 429 and 503.
func (c *Client) retryAfter(resp *http.Response) time.Duration {
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
	}
	return 0
}

func (c *Client) observe(method, endpoint, status string, start time.Time) {
	metrics.BackendRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	metrics.BackendRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
}

func (c *Client) canceled(req Request, attempts int, err error) *APIError {
	category := CategoryNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		category = CategoryTimeout
	}
	return &APIError{Method: req.Method, Path: req.Path, Category: category, Message: "request canceled", Attempts: attempts, Err: err}
}

// backoff returns the delay before retry n (1-based): base*2^(n-1) capped at
// maxDelay, or the server's Retry-After when it sent one.
func (c *Client) backoff(n int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return min(retryAfter, c.maxDelay)
	}
	delay := c.baseDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= c.maxDelay || delay <= 0 {
			delay = c.maxDelay
			break
		}
	}
	return c.jitter(min(delay, c.maxDelay))
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// equalJitter keeps half the delay and randomizes the other half.
func equalJitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}
