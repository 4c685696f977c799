package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rindexer-go/rindexer/internal/logger"
)

// PipelineRegistry exposes the running state of every pipeline the
// engine has built from its manifest, for the health endpoint. The
// top-level orchestrator implements this.
type PipelineRegistry interface {
	Statuses() []PipelineStatus
}

// Handler serves the engine's narrow operational HTTP surface:
// a health endpoint with a per-pipeline summary. It deliberately does not
// expose a query API over indexed data — that's a sink's job.
type Handler struct {
	registry PipelineRegistry
	log      *logger.Logger
}

// NewHandler builds a Handler.
func NewHandler(registry PipelineRegistry, log *logger.Logger) *Handler {
	return &Handler{registry: registry, log: log}
}

// Health reports overall process health plus a per-pipeline summary.
// Status is "ok" when every pipeline is healthy, "degraded" otherwise
// (never refuses to respond — an unhealthy pipeline is surfaced, not
// hidden).
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	statuses := h.registry.Statuses()

	status := "ok"
	for _, p := range statuses {
		if !p.Healthy {
			status = "degraded"
			break
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Pipelines: statuses,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
