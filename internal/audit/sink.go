package audit

import (
	"context"
	"errors"

	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/endpoints"
)

// BackendSink posts entries to the backend audit endpoint with a single attempt.
type BackendSink struct {
	client *apiclient.Client
}

func NewBackendSink(client *apiclient.Client) *BackendSink {
	return &BackendSink{client: client}
}

func (s *BackendSink) Send(ctx context.Context, entry Entry) error {
	_, err := s.client.Do(ctx, apiclient.Request{
		Method:  "POST",
		Path:    endpoints.AuditLogs,
		Body:    entry,
		NoRetry: true,
	})
	return err
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || apiclient.CategoryOf(err) == apiclient.CategoryTimeout
}
