// Package stream declares the publish contract every message-bus sink
// (NATS/Kafka/Redis/webhook/...) implements.
package stream

import "context"

// Stream is a downstream message bus or webhook destination.
type Stream interface {
	Name() string

	// Publish sends one decoded event as JSON. messageID is globally
	// unique per record and must be surfaced to downstream consumers
	// (header or payload field) so they can deduplicate.
	Publish(ctx context.Context, messageID, topicOrChannel string, payload []byte) error

	HealthCheck(ctx context.Context) error
	Close() error
}
