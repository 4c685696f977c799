package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStream_PublishSendsMessageIDHeaderAndBody(t *testing.T) {
	var gotHeader string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(messageIDHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := New("webhook-out", server.URL)
	err := s.Publish(context.Background(), "tx123-0", "ignored-topic", []byte(`{"value":"1"}`))
	require.NoError(t, err)
	require.Equal(t, "tx123-0", gotHeader)
	require.JSONEq(t, `{"value":"1"}`, string(gotBody))
}

func TestStream_PublishReturnsErrorOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := New("webhook-out", server.URL)
	err := s.Publish(context.Background(), "tx123-0", "ignored-topic", []byte(`{}`))
	require.Error(t, err)
}

func TestStream_HealthCheckIsAlwaysNil(t *testing.T) {
	s := New("webhook-out", "http://example.invalid")
	require.NoError(t, s.HealthCheck(context.Background()))
}
