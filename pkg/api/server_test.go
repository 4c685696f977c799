package api

import (
	"context"
	"testing"
	"time"

	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestServer_Start_DisabledReturnsImmediately(t *testing.T) {
	cfg := &config.APIConfig{Enabled: false}

	srv := NewServer(cfg, &fakeRegistry{}, logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, srv.Start(ctx))
}

func TestServer_Start_ShutsDownOnContextCancel(t *testing.T) {
	cfg := &config.APIConfig{Enabled: true, ListenAddress: "127.0.0.1:0"}
	cfg.ApplyDefaults()

	srv := NewServer(cfg, &fakeRegistry{}, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
