// Package fanout implements the Sink Fan-Out: per pipeline, a bounded
// ordered queue of decoded batches delivered to every configured
// target (sink/stream/chat) in order, with per-target retry and a
// cursor-advance callback fired only once every target has acked.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/rindexer-go/rindexer/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Batch is one window's worth of decoded records, delivered as a unit
// to every target so a sink never sees a partial commit.
type Batch struct {
	FromBlock uint64
	ToBlock   uint64
	Replay    bool // set while a RewindWindow is active; sinks must upsert, not append
	Records   []any
}

// Target is anything a FanOut can deliver a batch to: a storage sink,
// a stream publisher, or a chat bridge, each already adapted to this
// single-method surface by the caller.
type Target interface {
	Name() string
	Deliver(ctx context.Context, batch Batch) error
}

// RetryPolicy configures per-target delivery retry.
type RetryPolicy struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// ApplyDefaults fills in zero-valued fields.
func (p *RetryPolicy) ApplyDefaults() {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 5
	}
	if p.InitialBackoff == 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff == 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.BackoffMultiple == 0 {
		p.BackoffMultiple = 2
	}
}

// HaltError is returned by Run when a target exhausts its retries.
// The pipeline must halt and report this via health, per the Sink
// errors taxonomy — it is not retried at the fan-out level again.
type HaltError struct {
	Target string
	Err    error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("sink %q exhausted retries: %v", e.Target, e.Err)
}

func (e *HaltError) Unwrap() error { return e.Err }

// FanOut delivers batches for one pipeline to every configured target,
// in order, advancing the pipeline's commit only once every target has
// acked the batch.
type FanOut struct {
	targets []Target
	policy  RetryPolicy
	queue   chan Batch
	log     *logger.Logger

	// onCommit is invoked once a batch has been acked by every target,
	// in the order batches were submitted.
	onCommit func(Batch)
}

// New builds a FanOut with the given buffer depth (batches held in
// memory before Dispatch blocks, backpressuring the fetch loop) and a
// requested per-sink concurrency (in-flight batches per target).
//
// concurrency is accepted but never changes behavior: this FanOut's
// contract is that batches are delivered to each sink in strictly
// increasing (from_block, log_index) order, which Run already
// guarantees by processing one batch at a time — delivering more than
// one batch concurrently to the same target would need the target to
// reorder acks itself, and nothing in this tree does that. The
// parameter exists so the manifest's `concurrency` tuning option has
// somewhere to land and a caller can't silently request a mode this
// FanOut doesn't support.
func New(targets []Target, policy RetryPolicy, buffer, concurrency int, onCommit func(Batch), log *logger.Logger) *FanOut {
	policy.ApplyDefaults()
	if buffer <= 0 {
		buffer = 1
	}
	_ = concurrency // always forced to 1; see doc comment above
	return &FanOut{
		targets:  targets,
		policy:   policy,
		queue:    make(chan Batch, buffer),
		onCommit: onCommit,
		log:      log.WithComponent("fanout"),
	}
}

// Dispatch enqueues a batch, blocking if the buffer is full — this is
// the fetch loop's natural backpressure point.
func (f *FanOut) Dispatch(ctx context.Context, batch Batch) error {
	select {
	case f.queue <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled or a target halts
// (exhausts its retries), delivering each batch to every target in
// parallel and waiting for all acks before committing — batches are
// processed one at a time, from the queue in submission order, which
// is what gives the strictly-increasing per-sink delivery guarantee.
func (f *FanOut) Run(ctx context.Context) error {
	for {
		select {
		case batch, ok := <-f.queue:
			if !ok {
				return nil
			}
			if err := f.deliverToAll(ctx, batch); err != nil {
				return err
			}
			if f.onCommit != nil {
				f.onCommit(batch)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *FanOut) deliverToAll(ctx context.Context, batch Batch) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, target := range f.targets {
		target := target
		g.Go(func() error {
			return f.deliverWithRetry(gctx, target, batch)
		})
	}
	return g.Wait()
}

func (f *FanOut) deliverWithRetry(ctx context.Context, target Target, batch Batch) error {
	backoff := f.policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if err := target.Deliver(ctx, batch); err != nil {
			lastErr = err
			f.log.Warnw("sink delivery failed, retrying",
				"sink", target.Name(), "attempt", attempt, "from", batch.FromBlock, "to", batch.ToBlock, "error", err)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			backoff = time.Duration(float64(backoff) * f.policy.BackoffMultiple)
			if backoff > f.policy.MaxBackoff {
				backoff = f.policy.MaxBackoff
			}
			continue
		}
		return nil
	}

	return &HaltError{Target: target.Name(), Err: lastErr}
}
