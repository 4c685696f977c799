package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender_ExpandsNestedDotPath(t *testing.T) {
	data := map[string]any{
		"event": map[string]any{"from": "0xabc", "value": "100"},
	}
	out, err := Render("transfer of {{.event.value}} from {{.event.from}}", data)
	require.NoError(t, err)
	require.Equal(t, "transfer of 100 from 0xabc", out)
}

func TestRender_MissingKeyRendersNoValue(t *testing.T) {
	out, err := Render("value: {{.event.missing}}", map[string]any{"event": map[string]any{}})
	require.NoError(t, err)
	require.Equal(t, "value: <no value>", out)
}

func TestDiscordBridge_SendsContentField(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	b := NewDiscord("discord-alerts", server.URL)
	require.NoError(t, b.Send(context.Background(), "", "hello"))
	require.Equal(t, "hello", got["content"])
}

func TestSlackBridge_SendsTextField(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	b := NewSlack("slack-alerts", server.URL)
	require.NoError(t, b.Send(context.Background(), "", "hello"))
	require.Equal(t, "hello", got["text"])
}

func TestTelegramBridge_IncludesChatID(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	b := NewTelegram("telegram-alerts", server.URL)
	require.NoError(t, b.Send(context.Background(), "-100123", "hello"))
	require.Equal(t, "-100123", got["chat_id"])
	require.Equal(t, "hello", got["text"])
}

func TestBridge_ReturnsErrorOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	b := NewDiscord("discord-alerts", server.URL)
	err := b.Send(context.Background(), "", "hello")
	require.Error(t, err)
}
