// Package core wires every other package into a running engine
// instance: it loads a manifest, builds one internal/pipeline.Pipeline
// per (ContractDetails, EventConfig) pair, groups shared
// network-scoped collaborators (chain.Provider, reorg.Handler) by
// network, and owns the task tracker and hot-reload orchestrator that
// add/restart/remove pipelines as the manifest changes underneath a
// running process.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rindexer-go/rindexer/internal/abi"
	rcommon "github.com/rindexer-go/rindexer/internal/common"
	"github.com/rindexer-go/rindexer/internal/decoder"
	"github.com/rindexer-go/rindexer/internal/filter"
	"github.com/rindexer-go/rindexer/internal/hotreload"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/internal/pipeline"
	"github.com/rindexer-go/rindexer/internal/reorg"
	"github.com/rindexer-go/rindexer/internal/scheduler"
	"github.com/rindexer-go/rindexer/internal/store/sqlite"
	"github.com/rindexer-go/rindexer/internal/task"
	"github.com/rindexer-go/rindexer/internal/types"
	"github.com/rindexer-go/rindexer/pkg/api"
	"github.com/rindexer-go/rindexer/pkg/chain"
	"github.com/rindexer-go/rindexer/pkg/config"
)

// StateDBPath is where the engine persists checkpoints and observed
// block hashes, independent of any manifest-configured storage sink —
// this is control-plane state, never user schema. A var, not a const,
// so integration tests can point each engine instance at its own
// temporary file instead of sharing one on-disk database.
var StateDBPath = "./data/rindexer-state.db"

// networkRuntime bundles the collaborators shared by every pipeline
// running against one network.
type networkRuntime struct {
	cfg      config.NetworkConfig
	provider chain.Provider
	reorg    *reorg.Handler
}

// runningPipeline tracks one live pipeline goroutine so it can be
// cancelled and its outcome observed for health reporting.
type runningPipeline struct {
	contract config.ContractConfig
	details  config.ContractDetails
	event    config.EventConfig

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	lastErr  error
	finished bool
}

// Engine owns every pipeline built from one manifest and implements
// both hotreload.PipelineManager and pkg/api.PipelineRegistry.
type Engine struct {
	log *logger.Logger

	manifestPath string
	manifest     *config.Manifest

	checkpoints *sqlite.CheckpointStore
	blockHashes *sqlite.BlockHashStore
	graph       *scheduler.Graph
	registries  *registries
	tracker     *task.Tracker

	mu        sync.Mutex
	networks  map[string]*networkRuntime
	pipelines map[hotreload.PipelineKey]*runningPipeline
}

var _ hotreload.PipelineManager = (*Engine)(nil)
var _ api.PipelineRegistry = (*Engine)(nil)

// New builds an Engine from an already-loaded, validated manifest: one
// chain.Provider and reorg.Handler per network, and one Pipeline per
// (ContractDetails, EventConfig) pair, wired but not yet started.
func New(ctx context.Context, manifestPath string, m *config.Manifest, log *logger.Logger) (*Engine, error) {
	db, err := sqlite.Open(sqlite.Options{Path: StateDBPath})
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	checkpoints := sqlite.NewCheckpointStore(db)
	blockHashes := sqlite.NewBlockHashStore(db)

	reg, err := buildRegistries(ctx, m, checkpoints)
	if err != nil {
		return nil, fmt.Errorf("build sink/stream/chat registries: %w", err)
	}

	e := &Engine{
		log:          log.WithComponent(rcommon.ComponentCore),
		manifestPath: manifestPath,
		manifest:     m,
		checkpoints:  checkpoints,
		blockHashes: blockHashes,
		graph:       scheduler.New(),
		registries:  reg,
		tracker:     task.New(),
		networks:    make(map[string]*networkRuntime),
		pipelines:   make(map[hotreload.PipelineKey]*runningPipeline),
	}

	for _, n := range m.Networks {
		provider, err := chain.NewEVMClient(ctx, n, log)
		if err != nil {
			return nil, fmt.Errorf("connect to network %q: %w", n.Name, err)
		}
		e.networks[n.Name] = &networkRuntime{
			cfg:      n,
			provider: provider,
			reorg:    reorg.New(n.Name, n.ChainID, blockHashes, log),
		}
	}

	for _, contract := range m.Contracts {
		for _, event := range contract.Events {
			for _, details := range contract.Details {
				key := hotreload.PipelineKey{Network: details.Network, Contract: contract.Name, Event: event.Signature}
				e.graph.AddEdge(parentGraphIDFor(details.Network, contract, event), pipeline.GraphID(toStoreKey(key)))
			}
		}
	}
	if err := e.graph.DetectCycle(); err != nil {
		return nil, fmt.Errorf("dependency graph: %w", err)
	}

	for _, contract := range m.Contracts {
		for _, details := range contract.Details {
			if details.Factory != nil {
				e.log.Warnw("skipping factory-sourced contract detail: dynamic address discovery is not implemented",
					"contract", contract.Name, "network", details.Network, "factory_pipeline", details.Factory.Pipeline)
				continue
			}
			for _, event := range contract.Events {
				if err := e.AddPipeline(ctx, hotreload.PipelineKey{Network: details.Network, Contract: contract.Name, Event: event.Signature},
					contract, details, event); err != nil {
					return nil, fmt.Errorf("build pipeline %s/%s/%s: %w", details.Network, contract.Name, event.Signature, err)
				}
			}
		}
	}

	return e, nil
}

// parentGraphIDFor resolves event's depends_on (if any) to the
// scheduler identity of its parent pipeline on the same network and
// contract. Returns an empty PipelineID when event has no dependency;
// AddEdge then records "" as a parent, which is harmless because a
// pipeline with no depends_on never calls Await.
func parentGraphIDFor(network string, contract config.ContractConfig, event config.EventConfig) scheduler.PipelineID {
	if event.DependsOn == "" {
		return ""
	}
	return pipeline.GraphID(sqlite.PipelineKey{NetworkID: network, ContractName: contract.Name, EventSignature: event.DependsOn})
}

// AddPipeline implements hotreload.PipelineManager: builds and starts
// one pipeline goroutine.
func (e *Engine) AddPipeline(ctx context.Context, key hotreload.PipelineKey, contract config.ContractConfig, details config.ContractDetails, event config.EventConfig) error {
	if details.Factory != nil {
		return fmt.Errorf("pipeline %v: factory-sourced addressing is not implemented", key)
	}

	net, ok := e.networks[details.Network]
	if !ok {
		return fmt.Errorf("pipeline %v: unknown network %q", key, details.Network)
	}

	defs, err := abi.LoadContractEvents(contract.ABIPath, []string{event.Signature})
	if err != nil {
		return fmt.Errorf("pipeline %v: load event definition: %w", key, err)
	}
	def := defs[0]

	finality, err := types.ParseBlockFinality(net.cfg.Finality)
	if err != nil {
		return fmt.Errorf("pipeline %v: %w", key, err)
	}

	dec := decoder.New(defs)

	targets, err := e.registries.resolveTargets(contract.Name, event)
	if err != nil {
		return fmt.Errorf("pipeline %v: %w", key, err)
	}

	var filterExpr *filter.Expr
	if event.Filter != "" {
		filterExpr, err = filter.Parse(event.Filter)
		if err != nil {
			return fmt.Errorf("pipeline %v: parse filter: %w", key, err)
		}
	}

	storeKey := toStoreKey(key)

	cfg := pipeline.Config{
		Key:         storeKey,
		ChainID:     net.cfg.ChainID,
		Address:     common.HexToAddress(details.Address),
		EventDef:    def,
		StartBlock:  details.StartBlock,
		EndBlock:    details.EndBlock,
		ChunkSize:   details.ChunkSize,
		Timestamp:   event.Timestamp,
		FilterExpr:  filterExpr,
		Finality:    finality,
		Buffer:      event.Buffer,
		Concurrency: event.Concurrency,
	}
	if event.DependsOn != "" {
		cfg.DependsOn = pipeline.GraphID(sqlite.PipelineKey{NetworkID: details.Network, ContractName: contract.Name, EventSignature: event.DependsOn})
	}

	pl := pipeline.New(cfg, pipeline.Deps{
		Provider:    net.provider,
		Decoder:     dec,
		Checkpoints: e.checkpoints,
		Graph:       e.graph,
		Reorg:       net.reorg,
		Targets:     targets,
		Log:         e.log,
	})

	runCtx, cancel := context.WithCancel(ctx)
	rp := &runningPipeline{contract: contract, details: details, event: event, cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.pipelines[key] = rp
	e.mu.Unlock()

	done, ok := e.tracker.Begin()
	if !ok {
		cancel()
		return fmt.Errorf("pipeline %v: engine is shutting down", key)
	}

	go func() {
		defer done()
		defer close(rp.done)
		err := pl.Run(runCtx)
		rp.mu.Lock()
		rp.lastErr = err
		rp.finished = true
		rp.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			e.log.Errorw("pipeline exited with error", "pipeline", key, "error", err)
		}
	}()

	return nil
}

// RestartPipeline implements hotreload.PipelineManager.
func (e *Engine) RestartPipeline(ctx context.Context, key hotreload.PipelineKey, contract config.ContractConfig, details config.ContractDetails, event config.EventConfig) error {
	if err := e.RemovePipeline(ctx, key); err != nil {
		return fmt.Errorf("restart pipeline %v: %w", key, err)
	}
	return e.AddPipeline(ctx, key, contract, details, event)
}

// RemovePipeline implements hotreload.PipelineManager: cancels the
// pipeline's context and waits for its goroutine to exit.
func (e *Engine) RemovePipeline(ctx context.Context, key hotreload.PipelineKey) error {
	e.mu.Lock()
	rp, ok := e.pipelines[key]
	if ok {
		delete(e.pipelines, key)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}

	rp.cancel()
	select {
	case <-rp.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Shutdown stops every running pipeline and releases every held
// connection (chain providers, sinks, streams, chat bridges).
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	keys := make([]hotreload.PipelineKey, 0, len(e.pipelines))
	for k := range e.pipelines {
		keys = append(keys, k)
	}
	e.mu.Unlock()

	for _, k := range keys {
		if err := e.RemovePipeline(ctx, k); err != nil {
			e.log.Warnw("pipeline did not stop cleanly during shutdown", "pipeline", k, "error", err)
		}
	}

	if err := e.tracker.Shutdown(ctx); err != nil {
		e.log.Warnw("tracker did not drain before shutdown deadline", "error", err)
	}

	for _, n := range e.networks {
		n.provider.Close()
	}
	e.registries.Close()
	return nil
}
