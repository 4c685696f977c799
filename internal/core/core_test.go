package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rindexer-go/rindexer/internal/hotreload"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/internal/store/sqlite"
	"github.com/rindexer-go/rindexer/pkg/config"
)

func TestKeyConversionsRoundTrip(t *testing.T) {
	hr := hotreload.PipelineKey{Network: "mainnet", Contract: "token", Event: "Transfer(address,address,uint256)"}
	store := toStoreKey(hr)
	require.Equal(t, sqlite.PipelineKey{NetworkID: "mainnet", ContractName: "token", EventSignature: hr.Event}, store)
	require.Equal(t, hr, toHotReloadKey(store))
}

func TestTableName(t *testing.T) {
	require.Equal(t, "token_transfer", tableName("Token", "Transfer(address indexed from, address indexed to, uint256 value)"))
	require.Equal(t, "my_contract_approval", tableName("My Contract", "Approval"))
}

func TestRegistries_ResolveTargetsErrorsOnUnknownName(t *testing.T) {
	reg := newRegistries()
	_, err := reg.resolveTargets("token", config.EventConfig{Signature: "Transfer", Sinks: []string{"missing"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown sink")
}

func TestRegistries_ResolveTargetsEmptyWhenNoneConfigured(t *testing.T) {
	reg := newRegistries()
	targets, err := reg.resolveTargets("token", config.EventConfig{Signature: "Transfer"})
	require.NoError(t, err)
	require.Empty(t, targets)
}

func TestEngine_StatusesReportsRunningAndFinished(t *testing.T) {
	e := &Engine{
		log:         logger.NewNopLogger(),
		checkpoints: nil,
		pipelines:   make(map[hotreload.PipelineKey]*runningPipeline),
	}

	// Statuses reads LastIndexedBlock from the checkpoint store, so
	// build a real one rather than faking the interface.
	dbPath := t.TempDir() + "/status-test.db"
	db, err := sqlite.Open(sqlite.Options{Path: dbPath})
	require.NoError(t, err)
	defer db.Close()
	e.checkpoints = sqlite.NewCheckpointStore(db)

	running := hotreload.PipelineKey{Network: "mainnet", Contract: "token", Event: "Transfer"}
	finished := hotreload.PipelineKey{Network: "mainnet", Contract: "token", Event: "Approval"}

	e.pipelines[running] = &runningPipeline{done: make(chan struct{})}
	e.pipelines[finished] = &runningPipeline{done: make(chan struct{}), finished: true}

	require.NoError(t, e.checkpoints.Advance(context.Background(), toStoreKey(running), 42))

	statuses := e.Statuses()
	require.Len(t, statuses, 2)

	byEvent := make(map[string]int)
	for i, s := range statuses {
		byEvent[s.EventSignature] = i
	}

	runningStatus := statuses[byEvent["Transfer"]]
	require.Equal(t, "running", runningStatus.State)
	require.True(t, runningStatus.Healthy)
	require.Equal(t, uint64(42), runningStatus.LastIndexed)

	finishedStatus := statuses[byEvent["Approval"]]
	require.Equal(t, "stopped", finishedStatus.State)
	require.True(t, finishedStatus.Healthy)
}

func TestEngine_RemovePipelineIsNoopForUnknownKey(t *testing.T) {
	e := &Engine{
		log:       logger.NewNopLogger(),
		pipelines: make(map[hotreload.PipelineKey]*runningPipeline),
	}
	err := e.RemovePipeline(context.Background(), hotreload.PipelineKey{Network: "n", Contract: "c", Event: "e"})
	require.NoError(t, err)
}

func TestEngine_RemovePipelineCancelsAndWaits(t *testing.T) {
	e := &Engine{
		log:       logger.NewNopLogger(),
		pipelines: make(map[hotreload.PipelineKey]*runningPipeline),
	}
	key := hotreload.PipelineKey{Network: "n", Contract: "c", Event: "e"}
	_, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	var once sync.Once
	rp := &runningPipeline{cancel: func() { once.Do(func() { close(done) }); cancel() }, done: done}
	e.pipelines[key] = rp

	require.NoError(t, e.RemovePipeline(context.Background(), key))
	_, stillPresent := e.pipelines[key]
	require.False(t, stillPresent)
}
