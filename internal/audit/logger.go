// Package audit records who touched which resource, PHI access in particular.
//
// Every entry is written to the structured log. When a Sink is configured the
// entry is also delivered to the backend audit store on a best-effort basis.
package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/domain/ids"
	"github.com/whitecross/gateway/internal/metrics"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	// DefaultDeliveryTimeout bounds the remote write, independent of the request.
	DefaultDeliveryTimeout = 3 * time.Second
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	UserID       string            `json:"userId,omitempty"`
	UserRole     string            `json:"userRole,omitempty"`
	ResourceType string            `json:"resourceType,omitempty"`
	ResourceID   string            `json:"resourceId,omitempty"`
	StudentID    string            `json:"studentId,omitempty"`
	IPAddress    string            `json:"ipAddress,omitempty"`
	UserAgent    string            `json:"userAgent,omitempty"`
	RequestID    string            `json:"requestId,omitempty"`
	Status       string            `json:"status"`
	IsPHI        bool              `json:"isPHI"`
	Details      map[string]string `json:"details,omitempty"`
}

// Sink delivers entries somewhere durable.
type Sink interface {
	Send(ctx context.Context, entry Entry) error
}

type Logger struct {
	logger  zerolog.Logger
	sink    Sink
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Logger)

func WithSink(sink Sink) Option {
	return func(l *Logger) { l.sink = sink }
}

func WithDeliveryTimeout(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func NewLogger(logger zerolog.Logger, opts ...Option) *Logger {
	l := &Logger{
		logger:  logger.With().Str("component", "audit").Logger(),
		timeout: DefaultDeliveryTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log stamps, logs, and delivers entry. It never fails from the caller's view.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ids.NewULID(entry.Timestamp)
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}

	l.logger.Info().
		Interface("audit", entry).
		Msg(entry.Action)
	metrics.AuditEventsTotal.WithLabelValues(entry.Status, phiLabel(entry.IsPHI)).Inc()

	if l.sink == nil {
		return
	}

	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if err := l.sink.Send(deliverCtx, entry); err != nil {
		l.logger.Warn().
			Err(err).
			Str("audit_id", entry.ID).
			Str("action", entry.Action).
			Msg("audit delivery failed")
		metrics.AuditDeliveryFailuresTotal.WithLabelValues(failureReason(err)).Inc()
	}
}

// LogSuccess logs a successful operation attributed to the caller in ctx.
func (l *Logger) LogSuccess(ctx context.Context, action, resourceType, resourceID string, phi bool, details map[string]string) {
	entry := FromContext(ctx, action, resourceType, resourceID)
	entry.IsPHI = phi
	entry.Details = details
	l.Log(ctx, entry)
}

// LogFailure logs a failed operation. reason goes under details["error"].
func (l *Logger) LogFailure(ctx context.Context, action, resourceType, resourceID string, phi bool, reason string) {
	entry := FromContext(ctx, action, resourceType, resourceID)
	entry.Status = StatusFailure
	entry.IsPHI = phi
	if reason != "" {
		entry.Details = map[string]string{"error": reason}
	}
	l.Log(ctx, entry)
}

// FromContext builds an entry attributed to the session and origin stored in ctx.
func FromContext(ctx context.Context, action, resourceType, resourceID string) Entry {
	entry := Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Status:       StatusSuccess,
	}
	if claims := auth.ClaimsFromContext(ctx); claims != nil {
		entry.UserID = claims.Subject
		entry.UserRole = string(claims.Role)
	}
	origin := OriginFromContext(ctx)
	entry.IPAddress = origin.IPAddress
	entry.UserAgent = origin.UserAgent
	entry.RequestID = origin.RequestID
	return entry
}

// FromRequest is FromContext with the user agent and remote address read from
// r when the origin middleware did not run.
func FromRequest(r *http.Request, action, resourceType, resourceID string) Entry {
	entry := FromContext(r.Context(), action, resourceType, resourceID)
	if entry.UserAgent == "" {
		entry.UserAgent = r.UserAgent()
	}
	if entry.IPAddress == "" {
		entry.IPAddress = hostOnly(r.RemoteAddr)
	}
	return entry
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func phiLabel(phi bool) string {
	if phi {
		return "true"
	}
	return "false"
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case isDeadline(err):
		return "timeout"
	default:
		return "error"
	}
}

type contextKey string

const originKey contextKey = "auditOrigin"

// Origin describes where a request came from.
type Origin struct {
	IPAddress string
	UserAgent string
	RequestID string
}

func WithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, originKey, origin)
}

func OriginFromContext(ctx context.Context) Origin {
	origin, _ := ctx.Value(originKey).(Origin)
	return origin
}
