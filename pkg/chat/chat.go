// Package chat declares the chat-bridge dispatch contract (Discord,
// Slack, Telegram, ...), sending rendered messages over each
// platform's webhook API.
package chat

import "context"

// Bridge sends rendered text to one chat platform.
type Bridge interface {
	Name() string

	// Send posts rendered to channelID. Rendering (the
	// `{{path.to.field}}` substitution over decoded event JSON) happens
	// in internal/chat before Send is called; Bridge implementations
	// are transport-only.
	Send(ctx context.Context, channelID, rendered string) error

	Close() error
}
