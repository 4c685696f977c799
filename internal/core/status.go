package core

import (
	"context"

	"github.com/rindexer-go/rindexer/internal/hotreload"
	"github.com/rindexer-go/rindexer/pkg/api"
)

// Statuses implements pkg/api.PipelineRegistry, reporting each
// pipeline's last-committed block from the shared checkpoint store and
// whether its goroutine is still running.
func (e *Engine) Statuses() []api.PipelineStatus {
	e.mu.Lock()
	snapshot := make(map[hotreload.PipelineKey]*runningPipeline, len(e.pipelines))
	for k, rp := range e.pipelines {
		snapshot[k] = rp
	}
	e.mu.Unlock()

	out := make([]api.PipelineStatus, 0, len(snapshot))
	for key, rp := range snapshot {
		storeKey := toStoreKey(key)
		block, err := e.checkpoints.LastIndexedBlock(context.Background(), storeKey)
		if err != nil {
			e.log.Warnw("failed to read checkpoint for status report", "pipeline", key, "error", err)
		}

		rp.mu.Lock()
		finished, lastErr := rp.finished, rp.lastErr
		rp.mu.Unlock()

		out = append(out, api.PipelineStatus{
			Network:        key.Network,
			Contract:       key.Contract,
			EventSignature: key.Event,
			State:          stateLabel(finished, lastErr),
			LastIndexed:    block,
			Healthy:        !finished || lastErr == nil,
		})
	}
	return out
}

func stateLabel(finished bool, lastErr error) string {
	switch {
	case finished && lastErr != nil:
		return "failed"
	case finished:
		return "stopped"
	default:
		return "running"
	}
}
