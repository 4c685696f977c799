// Package api serves the engine's operational HTTP surface: process
// health and a per-pipeline status summary. It intentionally does not
// expose a query API over indexed data — sinks own that.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/pkg/config"
)

const shutdownCtxTimeout = 10 * time.Second

// Server is the health/status HTTP server.
type Server struct {
	config  *config.APIConfig
	handler *Handler
	server  *http.Server
	log     *logger.Logger
}

// NewServer builds a Server. It does not start listening until Start
// is called.
func NewServer(cfg *config.APIConfig, registry PipelineRegistry, log *logger.Logger) *Server {
	handler := NewHandler(registry, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)

	var h http.Handler = mux
	h = RecoveryMiddleware(log)(h)
	h = LoggingMiddleware(log)(h)
	if cfg.CORS.Enabled {
		h = CORSMiddleware(cfg.CORS.AllowedOrigins)(h)
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
		IdleTimeout:  cfg.IdleTimeout.Duration,
	}

	return &Server{config: cfg, handler: handler, server: httpServer, log: log}
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("api server disabled")
		return nil
	}

	s.log.Infow("starting api server", "address", s.config.ListenAddress)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownCtxTimeout)
	defer cancel()

	s.log.Info("shutting down api server")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
