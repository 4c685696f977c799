package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	statuses []PipelineStatus
}

func (f *fakeRegistry) Statuses() []PipelineStatus { return f.statuses }

func TestHandler_Health_AllHealthy(t *testing.T) {
	reg := &fakeRegistry{statuses: []PipelineStatus{
		{Network: "mainnet", Contract: "Token", EventSignature: "Transfer(address,address,uint256)", State: "running", LastIndexed: 100, Healthy: true},
	}}
	h := NewHandler(reg, logger.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Pipelines, 1)
}

func TestHandler_Health_DegradedWhenAnyPipelineUnhealthy(t *testing.T) {
	reg := &fakeRegistry{statuses: []PipelineStatus{
		{Network: "mainnet", Contract: "Token", Healthy: true},
		{Network: "mainnet", Contract: "Vault", Healthy: false},
	}}
	h := NewHandler(reg, logger.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "degraded", resp.Status)
}

func TestHandler_Health_NoPipelines(t *testing.T) {
	h := NewHandler(&fakeRegistry{}, logger.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Empty(t, resp.Pipelines)
}
