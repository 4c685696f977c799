package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rindexer-go/rindexer/pkg/chat"
)

const defaultTimeout = 10 * time.Second

// payloadShape builds the provider-specific JSON envelope around a
// rendered message body.
type payloadShape func(rendered string) any

// Bridge posts a rendered chat message to an incoming webhook URL,
// shaping the JSON body the way the target platform expects it.
type Bridge struct {
	name       string
	kind       string
	webhookURL string
	shape      payloadShape
	httpClient *http.Client
}

var _ chat.Bridge = (*Bridge)(nil)

// NewDiscord builds a Discord incoming-webhook bridge.
func NewDiscord(name, webhookURL string) *Bridge {
	return newBridge(name, "discord", webhookURL, func(rendered string) any {
		return map[string]string{"content": rendered}
	})
}

// NewSlack builds a Slack incoming-webhook bridge.
func NewSlack(name, webhookURL string) *Bridge {
	return newBridge(name, "slack", webhookURL, func(rendered string) any {
		return map[string]string{"text": rendered}
	})
}

// NewTelegram builds a Telegram bot-webhook bridge. The chat_id
// Telegram expects in the request body comes from Send's channelID.
func NewTelegram(name, webhookURL string) *Bridge {
	return newBridge(name, "telegram", webhookURL, func(rendered string) any {
		return map[string]string{"text": rendered}
	})
}

func newBridge(name, kind, webhookURL string, shape payloadShape) *Bridge {
	return &Bridge{
		name:       name,
		kind:       kind,
		webhookURL: webhookURL,
		shape:      shape,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Name returns the bridge's configured name.
func (b *Bridge) Name() string { return b.name }

// Send posts rendered to the bridge's webhook URL. channelID is
// included in the Telegram payload (chat_id); Discord and Slack
// incoming webhooks are already bound to one channel by URL.
func (b *Bridge) Send(ctx context.Context, channelID, rendered string) error {
	body := b.shape(rendered)
	if b.kind == "telegram" && channelID != "" {
		body = map[string]string{"chat_id": channelID, "text": rendered}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s chat payload: %w", b.kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s chat request: %w", b.kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send %s chat message: %w", b.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s webhook returned status %d", b.kind, resp.StatusCode)
	}
	return nil
}

// Close is a no-op: http.Client needs no explicit teardown.
func (b *Bridge) Close() error { return nil }
