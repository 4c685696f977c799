package hotreload

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/pkg/config"
	"github.com/stretchr/testify/require"
)

const manifestV1 = `
name: test
networks:
  - name: mainnet
    chain_id: 1
    rpc_url: https://rpc.example/mainnet
    finality: finalized
contracts:
  - name: token
    details:
      - network: mainnet
        address: "0xabc"
        start_block: 100
        chunk_size: 500
    events:
      - signature: "Transfer(address,address,uint256)"
        sinks: ["sqlite"]
`

const manifestV2AddsEvent = `
name: test
networks:
  - name: mainnet
    chain_id: 1
    rpc_url: https://rpc.example/mainnet
    finality: finalized
contracts:
  - name: token
    details:
      - network: mainnet
        address: "0xabc"
        start_block: 100
        chunk_size: 500
    events:
      - signature: "Transfer(address,address,uint256)"
        sinks: ["sqlite"]
      - signature: "Approval(address,address,uint256)"
        sinks: ["sqlite"]
`

const manifestV3Invalid = `
name: test
networks: []
`

type fakeManager struct {
	mu       sync.Mutex
	added    []PipelineKey
	restarted []PipelineKey
	removed  []PipelineKey
}

func (f *fakeManager) AddPipeline(ctx context.Context, key PipelineKey, contract config.ContractConfig, details config.ContractDetails, event config.EventConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, key)
	return nil
}

func (f *fakeManager) RestartPipeline(ctx context.Context, key PipelineKey, contract config.ContractConfig, details config.ContractDetails, event config.EventConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarted = append(f.restarted, key)
	return nil
}

func (f *fakeManager) RemovePipeline(ctx context.Context, key PipelineKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return nil
}

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestOrchestrator_AppliesAddPipelineOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, manifestV1)

	initial, err := config.LoadFromFile(path)
	require.NoError(t, err)

	mgr := &fakeManager{}
	orc := NewOrchestrator(path, initial, mgr, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = orc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond) // let the watcher attach
	require.NoError(t, os.WriteFile(path, []byte(manifestV2AddsEvent), 0o644))

	require.Eventually(t, func() bool {
		mgr.mu.Lock()
		defer mgr.mu.Unlock()
		return len(mgr.added) == 1
	}, 2*time.Second, 10*time.Millisecond)

	phase, _ := orc.State().Snapshot()
	require.Equal(t, PhaseRunning, phase)
}

func TestOrchestrator_InvalidManifestReportsFailureAndKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, manifestV1)

	initial, err := config.LoadFromFile(path)
	require.NoError(t, err)

	mgr := &fakeManager{}
	orc := NewOrchestrator(path, initial, mgr, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = orc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(manifestV3Invalid), 0o644))

	require.Eventually(t, func() bool {
		phase, _ := orc.State().Snapshot()
		return phase == PhaseReloadFailed
	}, 2*time.Second, 10*time.Millisecond)

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	require.Empty(t, mgr.added)
	require.Empty(t, mgr.removed)
}
