package hotreload

import (
	"context"
	"fmt"

	"github.com/rindexer-go/rindexer/internal/common"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/pkg/config"
)

// PipelineManager is the subset of the core orchestrator that
// hot-reload drives: add, restart, and remove individual pipelines by
// key, without knowing anything about how pipelines are built.
type PipelineManager interface {
	AddPipeline(ctx context.Context, key PipelineKey, contract config.ContractConfig, details config.ContractDetails, event config.EventConfig) error
	RestartPipeline(ctx context.Context, key PipelineKey, contract config.ContractConfig, details config.ContractDetails, event config.EventConfig) error
	RemovePipeline(ctx context.Context, key PipelineKey) error
}

// Orchestrator watches a manifest file, diffs each new revision
// against the last one it applied, and dispatches AddPipeline /
// RestartPipeline / RemovePipeline calls to a PipelineManager. Failed
// reloads leave the previously-applied manifest running.
type Orchestrator struct {
	path    string
	manager PipelineManager
	state   *ReloadState
	log     *logger.Logger

	current *config.Manifest
}

// NewOrchestrator builds an Orchestrator already holding the manifest
// generation the core started up with, so the first file change is
// diffed against that baseline rather than an empty one.
func NewOrchestrator(path string, initial *config.Manifest, manager PipelineManager, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		path:    path,
		manager: manager,
		state:   NewReloadState(),
		log:     log.WithComponent(common.ComponentHotReload),
		current: initial,
	}
}

// State returns the observable reload state for the health endpoint.
func (o *Orchestrator) State() *ReloadState {
	return o.state
}

// Run watches the manifest file and applies diffs until ctx is
// cancelled. It returns only on an unrecoverable watcher failure or
// context cancellation — a bad manifest revision is reported via
// ReloadState, not by returning an error.
func (o *Orchestrator) Run(ctx context.Context) error {
	watcher, err := NewWatcher(o.path, o.log)
	if err != nil {
		return fmt.Errorf("start manifest watcher: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-watcher.Changed():
			o.reload(ctx)
		}
	}
}

func (o *Orchestrator) reload(ctx context.Context) {
	o.state.set(PhaseReloading, "")

	next, err := config.LoadFromFile(o.path)
	if err != nil {
		msg := fmt.Sprintf("load manifest: %v", err)
		o.log.Warnw("hot reload failed, keeping previous configuration", "error", err)
		o.state.set(PhaseReloadFailed, msg)
		return
	}

	actions := Diff(o.current, next)
	if len(actions) == 0 {
		o.log.Infow("manifest changed but no pipeline-affecting diff found")
		o.current = next
		o.state.set(PhaseRunning, "")
		return
	}

	if err := o.apply(ctx, next, actions); err != nil {
		o.log.Warnw("hot reload failed applying action matrix, keeping previous configuration", "error", err)
		o.state.set(PhaseReloadFailed, err.Error())
		return
	}

	o.current = next
	o.state.set(PhaseRunning, "")
}

func (o *Orchestrator) apply(ctx context.Context, next *config.Manifest, actions []Action) error {
	nextIdx := pipelineIndex(next)

	for _, action := range actions {
		entry, present := nextIdx[action.Key]

		o.log.Infow("applying hot reload action",
			"network", action.Key.Network, "contract", action.Key.Contract, "event", action.Key.Event,
			"action", action.Kind.String(), "reason", action.Reason)

		switch action.Kind {
		case RemovePipeline:
			if err := o.manager.RemovePipeline(ctx, action.Key); err != nil {
				return fmt.Errorf("remove pipeline %s/%s/%s: %w", action.Key.Network, action.Key.Contract, action.Key.Event, err)
			}
		case AddPipeline:
			if !present {
				continue
			}
			contract := contractByName(next, action.Key.Contract)
			if contract == nil {
				continue
			}
			if err := o.manager.AddPipeline(ctx, action.Key, *contract, entry.details, entry.event); err != nil {
				return fmt.Errorf("add pipeline %s/%s/%s: %w", action.Key.Network, action.Key.Contract, action.Key.Event, err)
			}
		case Restart:
			if !present {
				continue
			}
			contract := contractByName(next, action.Key.Contract)
			if contract == nil {
				continue
			}
			if err := o.manager.RestartPipeline(ctx, action.Key, *contract, entry.details, entry.event); err != nil {
				return fmt.Errorf("restart pipeline %s/%s/%s: %w", action.Key.Network, action.Key.Contract, action.Key.Event, err)
			}
		}
	}
	return nil
}

func contractByName(m *config.Manifest, name string) *config.ContractConfig {
	for i := range m.Contracts {
		if m.Contracts[i].Name == name {
			return &m.Contracts[i]
		}
	}
	return nil
}
