// Package pipeline implements one (network, contract, event)
// indexing pipeline: the range-planner-driven fetch/decode/enrich
// loop, dependency-aware scheduling, reorg verification, and sink
// fan-out wired together into the state machine
//
//	Idle -> Fetching -> Decoding -> Awaiting-Dependency? -> Sinking -> Committing -> Idle
//
// A Pipeline owns exactly one FanOut and one Planner; everything else
// (chain.Provider, scheduler.Graph, reorg.Handler, CheckpointStore) is
// shared across every pipeline on the same network or engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/rindexer-go/rindexer/internal/abi"
	"github.com/rindexer-go/rindexer/internal/blocktime"
	rcommon "github.com/rindexer-go/rindexer/internal/common"
	"github.com/rindexer-go/rindexer/internal/decoder"
	"github.com/rindexer-go/rindexer/internal/fanout"
	"github.com/rindexer-go/rindexer/internal/fetchworker"
	"github.com/rindexer-go/rindexer/internal/filter"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/internal/metrics"
	"github.com/rindexer-go/rindexer/internal/planner"
	"github.com/rindexer-go/rindexer/internal/reorg"
	"github.com/rindexer-go/rindexer/internal/scheduler"
	"github.com/rindexer-go/rindexer/internal/store/sqlite"
	"github.com/rindexer-go/rindexer/internal/types"
	"github.com/rindexer-go/rindexer/pkg/chain"
	"github.com/rindexer-go/rindexer/pkg/config"
)

// idleBackoff is how long the loop sleeps once it has caught up to
// the chain head, before polling for a new head again.
const idleBackoff = 2 * time.Second

// Config is everything one Pipeline instance needs, derived by the
// caller from one (ContractDetails, EventConfig) pair.
type Config struct {
	Key         sqlite.PipelineKey
	ChainID     uint64
	Address     common.Address
	EventDef    abi.EventDef
	StartBlock  uint64
	EndBlock    *uint64
	ChunkSize   uint64
	Timestamp   config.TimestampConfig
	FilterExpr  *filter.Expr
	DependsOn   scheduler.PipelineID // empty if this pipeline has no dependency
	Finality    types.BlockFinality  // which head tag bounds the fetch window; defaults to finalized
	Buffer      int                  // FanOut queue depth; defaults to 1
	Concurrency int                  // requested per-sink in-flight batches; FanOut always clamps this to 1 (see fanout.New)
}

// Pipeline runs the fetch/decode/enrich/sink loop for one
// (network, contract, event) triple.
type Pipeline struct {
	cfg Config
	id  sqlite.PipelineKey

	provider    chain.Provider
	decoder     *decoder.Decoder
	enricher    *blocktime.Enricher
	planner     *planner.Planner
	worker      *fetchworker.Worker
	checkpoints *sqlite.CheckpointStore
	graph       *scheduler.Graph
	reorgH      *reorg.Handler
	fanOut      *fanout.FanOut

	log *logger.Logger
}

// Deps bundles the shared, network- or engine-scoped collaborators a
// Pipeline is built on top of.
type Deps struct {
	Provider    chain.Provider
	Decoder     *decoder.Decoder
	Checkpoints *sqlite.CheckpointStore
	Graph       *scheduler.Graph
	Reorg       *reorg.Handler
	Targets     []fanout.Target
	Log         *logger.Logger
}

// New builds a Pipeline. The returned value's Run method drives its
// FanOut internally; callers don't need to start FanOut.Run
// themselves.
func New(cfg Config, deps Deps) *Pipeline {
	log := deps.Log.WithComponent(rcommon.ComponentPipeline)

	if cfg.Finality == "" {
		cfg.Finality = types.FinalityFinalized
	}
	if cfg.Buffer == 0 {
		cfg.Buffer = 1
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}

	p := planner.New(cfg.ChunkSize)
	ceiling := cfg.ChunkSize
	if ceiling == 0 {
		ceiling = 5000
	}

	worker := fetchworker.New(deps.Provider, p, []common.Address{cfg.Address},
		[][]common.Hash{{cfg.EventDef.Event.ID}}, ceiling, log)

	pl := &Pipeline{
		cfg:         cfg,
		id:          cfg.Key,
		provider:    deps.Provider,
		decoder:     deps.Decoder,
		enricher:    blocktime.NewEnricher(deps.Provider, cfg.ChainID, cfg.Timestamp),
		planner:     p,
		worker:      worker,
		checkpoints: deps.Checkpoints,
		graph:       deps.Graph,
		reorgH:      deps.Reorg,
		log:         log,
	}

	pl.fanOut = fanout.New(deps.Targets, fanout.RetryPolicy{}, cfg.Buffer, cfg.Concurrency, pl.onCommit, log)
	return pl
}

// GraphID converts a checkpoint key into the scheduler's identity
// space. Callers wire up scheduler.Graph.AddEdge before Run using this
// so a child pipeline blocks on the right parent node.
func GraphID(key sqlite.PipelineKey) scheduler.PipelineID {
	return scheduler.PipelineID(fmt.Sprintf("%s/%s/%s", key.NetworkID, key.ContractName, key.EventSignature))
}

// Run drives the pipeline until ctx is cancelled or it hits a fatal
// error.
func (p *Pipeline) Run(ctx context.Context) error {
	cursor, err := p.checkpoints.LastIndexedBlock(ctx, p.id)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if cursor == 0 && p.cfg.StartBlock > 0 {
		cursor = p.cfg.StartBlock - 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.fanOut.Run(gctx) })
	g.Go(func() error { return p.loop(gctx, cursor) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Pipeline) loop(ctx context.Context, cursor uint64) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if p.cfg.EndBlock != nil && cursor >= *p.cfg.EndBlock {
			// historical backfill complete; nothing left to do.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleBackoff):
				continue
			}
		}

		head, err := p.fetchHead(ctx)
		if err != nil {
			p.log.Warnw("fetching chain head failed, backing off", "pipeline", p.id, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleBackoff):
				continue
			}
		}
		headNum := head.Number.Uint64()
		if p.cfg.EndBlock != nil && *p.cfg.EndBlock < headNum {
			headNum = *p.cfg.EndBlock
		}

		from, to, ok := p.planner.Next(cursor, headNum)
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleBackoff):
				continue
			}
		}

		if p.cfg.DependsOn != "" {
			if err := p.graph.Await(ctx, GraphID(p.id), to); err != nil {
				return fmt.Errorf("await dependency: %w", err)
			}
		}

		result, err := p.worker.Fetch(ctx, from, to)
		if err != nil {
			return fmt.Errorf("fetch window %d..%d: %w", from, to, err)
		}

		if verr := p.reorgH.VerifyAndRecord(ctx, result.Headers); verr != nil {
			if reorgErr, isReorg := reorg.IsReorgError(verr); isReorg {
				window, berr := p.reorgH.BeginRewind(ctx, p.id, p.cfg.StartBlock, cursor, reorgErr.FirstReorgBlock)
				if berr != nil {
					if fatal, isFatal := reorg.IsFatalReorg(berr); isFatal {
						p.log.Errorw("halting pipeline: reorg exceeds safe rewind window",
							"pipeline", p.id, "first_reorg_block", fatal.FirstReorgBlock, "rewind_from", fatal.RewindFrom)
						return fmt.Errorf("fatal reorg, pipeline halted: %w", fatal)
					}
					return fmt.Errorf("begin reorg rewind: %w", berr)
				}
				p.log.Warnw("reorg detected, rewinding",
					"pipeline", p.id, "first_bad_block", reorgErr.FirstReorgBlock,
					"replay_from", window.From, "replay_to", window.To)
				if err := p.checkpoints.Rewind(ctx, p.id, window.From-1); err != nil {
					return fmt.Errorf("rewind checkpoint: %w", err)
				}
				cursor = window.From - 1
				continue
			}
			return fmt.Errorf("verify block continuity: %w", verr)
		}

		batch, err := p.decodeAndEnrich(ctx, result)
		if err != nil {
			return fmt.Errorf("decode window %d..%d: %w", from, to, err)
		}

		if err := p.fanOut.Dispatch(ctx, batch); err != nil {
			return fmt.Errorf("dispatch batch: %w", err)
		}

		metrics.BlocksProcessed.WithLabelValues(p.id.NetworkID, p.id.ContractName, p.id.EventSignature).Add(float64(to - from + 1))
		cursor = to
	}
}

func (p *Pipeline) decodeAndEnrich(ctx context.Context, result *fetchworker.Result) (fanout.Batch, error) {
	headerTimestamps := make(map[uint64]time.Time, len(result.Headers))
	rewindWindow, replaying := p.reorgH.ActiveRewind(p.id)

	records := make([]any, 0, len(result.Logs))
	for _, lg := range result.Logs {
		if !p.decoder.Matches(lg) {
			continue
		}
		evt, err := p.decoder.Decode(lg)
		if err != nil {
			return fanout.Batch{}, fmt.Errorf("decode log at block %d index %d: %w", lg.BlockNumber, lg.Index, err)
		}

		if p.cfg.FilterExpr != nil {
			probe := &Record{Params: evt.Params}
			if !filter.Evaluate(p.cfg.FilterExpr, probe.asMap()) {
				continue
			}
		}

		ts, ok := headerTimestamps[evt.BlockNumber]
		if !ok {
			header := headerForBlock(result.Headers, evt.BlockNumber)
			if header == nil {
				return fanout.Batch{}, fmt.Errorf("no header fetched for block %d", evt.BlockNumber)
			}
			resolved, err := p.enricher.Timestamp(ctx, p.cfg.Timestamp.Policy, header)
			if err != nil {
				return fanout.Batch{}, fmt.Errorf("enrich timestamp: %w", err)
			}
			ts = resolved
			headerTimestamps[evt.BlockNumber] = ts
		}

		replay := replaying && evt.BlockNumber >= rewindWindow.From && evt.BlockNumber <= rewindWindow.To
		records = append(records, newRecord(p.id.NetworkID, p.id.ContractName, evt, ts, replay))
		metrics.EventsIndexed.WithLabelValues(p.id.NetworkID, p.id.ContractName, p.id.EventSignature).Inc()
	}

	return fanout.Batch{
		FromBlock: result.FromBlock,
		ToBlock:   result.ToBlock,
		Replay:    replaying,
		Records:   records,
	}, nil
}

// fetchHead resolves the chain head according to the pipeline's
// configured finality tag, so a backfill never outruns blocks that
// could still be reorged out from under it.
func (p *Pipeline) fetchHead(ctx context.Context) (*gethtypes.Header, error) {
	switch p.cfg.Finality {
	case types.FinalitySafe:
		return p.provider.GetSafeBlockHeader(ctx)
	case types.FinalityLatest:
		return p.provider.GetLatestBlockHeader(ctx)
	default:
		return p.provider.GetFinalizedBlockHeader(ctx)
	}
}

func headerForBlock(headers []*gethtypes.Header, blockNumber uint64) *gethtypes.Header {
	for _, h := range headers {
		if h.Number.Uint64() == blockNumber {
			return h
		}
	}
	return nil
}

func (p *Pipeline) onCommit(batch fanout.Batch) {
	ctx := context.Background()
	if err := p.checkpoints.Advance(ctx, p.id, batch.ToBlock); err != nil {
		p.log.Errorw("failed to advance checkpoint", "pipeline", p.id, "error", err)
		return
	}

	rewindWindow, replaying := p.reorgH.ActiveRewind(p.id)
	if replaying && batch.ToBlock >= rewindWindow.To {
		p.reorgH.CompleteRewind(p.id)
	}

	p.graph.Advance(GraphID(p.id), batch.ToBlock)
	metrics.LastIndexedBlock.WithLabelValues(p.id.NetworkID, p.id.ContractName, p.id.EventSignature).Set(float64(batch.ToBlock))
}
