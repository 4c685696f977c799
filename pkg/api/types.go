package api

import "time"

// HealthResponse is the top-level payload for GET /health.
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Pipelines []PipelineStatus `json:"pipelines"`
}

// PipelineStatus summarizes one (network, contract, event) pipeline's
// liveness for the health endpoint.
type PipelineStatus struct {
	Network        string `json:"network"`
	Contract       string `json:"contract"`
	EventSignature string `json:"event_signature"`
	State          string `json:"state"`
	LastIndexed    uint64 `json:"last_indexed_block"`
	Healthy        bool   `json:"healthy"`
}

// ErrorResponse is the payload written on handler failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
