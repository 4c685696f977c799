// Package webhook is the simple-HTTP-push stream sink: a JSON POST
// carrying the message ID as a header for downstream dedup, grounded
// on the rindexer original's webhook stream.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rindexer-go/rindexer/pkg/stream"
)

const messageIDHeader = "X-Rindexer-Message-Id"
const defaultTimeout = 10 * time.Second

var _ stream.Stream = (*Stream)(nil)

// Stream POSTs decoded event payloads to a configured HTTP endpoint.
type Stream struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// New builds a webhook stream targeting endpoint.
func New(name, endpoint string) *Stream {
	return &Stream{
		name:       name,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Name returns the stream's configured name.
func (s *Stream) Name() string { return s.name }

// Publish POSTs payload to the endpoint. topic is ignored: a webhook
// has a single fixed destination per stream configuration.
func (s *Stream) Publish(ctx context.Context, messageID, topic string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(messageIDHeader, messageID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook to %s: %w", s.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", s.endpoint, resp.StatusCode)
	}
	return nil
}

// HealthCheck is a no-op: a webhook endpoint's liveness can only be
// known at publish time, there is no separate readiness probe.
func (s *Stream) HealthCheck(ctx context.Context) error { return nil }

// Close is a no-op: http.Client needs no explicit teardown.
func (s *Stream) Close() error { return nil }
