// Package chat renders decoded-event notifications and dispatches
// them to Discord, Slack, and Telegram incoming webhooks, grounded on
// the rindexer original's chat/template module.
package chat

import (
	"bytes"
	"fmt"
	"text/template"
)

// Render expands a `{{.Field.Nested}}` dot-path template against
// decoded event data, the same placeholder semantics as the original
// implementation's `{{field.nested}}` syntax, adapted to Go's native
// `text/template` dot-path resolution over nested maps instead of a
// hand-rolled placeholder scanner.
func Render(tmpl string, data map[string]any) (string, error) {
	t, err := template.New("chat-message").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse chat template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render chat template: %w", err)
	}
	return buf.String(), nil
}
