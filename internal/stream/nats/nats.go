// Package nats is the durable message-bus stream sink: a JetStream
// publisher with per-message deduplication, grounded on the
// polymarket indexer's consumer-side publisher.
package nats

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rindexer-go/rindexer/pkg/stream"
)

const (
	streamCreateTimeout = 10 * time.Second
	duplicateWindow     = 20 * time.Minute
)

// Stream publishes decoded event payloads to a JetStream stream,
// deduplicating on messageID so pipeline replays after a reorg rewind
// do not produce duplicate downstream deliveries.
type Stream struct {
	name string
	js   jetstream.JetStream
	nc   *natsgo.Conn
}

var _ stream.Stream = (*Stream)(nil)

// New connects to a NATS server and ensures a JetStream stream exists
// covering subjectPattern (e.g. "rindexer.>").
func New(name, natsURL, jetstreamName, subjectPattern string) (*Stream, error) {
	nc, err := natsgo.Connect(natsURL,
		natsgo.Name("rindexer-"+name),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamCreateTimeout)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       jetstreamName,
		Subjects:   []string{subjectPattern},
		Storage:    jetstream.FileStorage,
		Duplicates: duplicateWindow,
		Retention:  jetstream.LimitsPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create or update stream %s: %w", jetstreamName, err)
	}

	return &Stream{name: name, js: js, nc: nc}, nil
}

// Name returns the stream's configured name.
func (s *Stream) Name() string { return s.name }

// Publish sends payload to subject with messageID as the JetStream
// dedup key.
func (s *Stream) Publish(ctx context.Context, messageID, subject string, payload []byte) error {
	_, err := s.js.Publish(ctx, subject, payload, jetstream.WithMsgID(messageID))
	if err != nil {
		return fmt.Errorf("publish to subject %s: %w", subject, err)
	}
	return nil
}

// HealthCheck reports whether the underlying NATS connection is up.
func (s *Stream) HealthCheck(ctx context.Context) error {
	if s.nc.Status() != natsgo.CONNECTED {
		return fmt.Errorf("nats connection status: %s", s.nc.Status())
	}
	return nil
}

// Close drains and closes the NATS connection.
func (s *Stream) Close() error {
	return s.nc.Drain()
}
