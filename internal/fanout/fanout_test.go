package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/stretchr/testify/require"
)

type recordingTarget struct {
	name     string
	mu       sync.Mutex
	received []Batch
	failN    int32 // fail the first failN deliveries, then succeed
	calls    int32
}

func (t *recordingTarget) Name() string { return t.name }

func (t *recordingTarget) Deliver(ctx context.Context, batch Batch) error {
	n := atomic.AddInt32(&t.calls, 1)
	if n <= t.failN {
		return errors.New("sink unavailable")
	}
	t.mu.Lock()
	t.received = append(t.received, batch)
	t.mu.Unlock()
	return nil
}

func TestNew_ClampsNonPositiveBufferAndConcurrency(t *testing.T) {
	target := &recordingTarget{name: "solo"}

	fo := New([]Target{target}, RetryPolicy{}, 0, 0, nil, logger.NewNopLogger())
	require.Equal(t, 1, cap(fo.queue))

	// A requested concurrency > 1 is still accepted without error; the
	// ordering guarantee forces delivery to stay sequential regardless.
	fo2 := New([]Target{target}, RetryPolicy{}, 2, 8, nil, logger.NewNopLogger())
	require.Equal(t, 2, cap(fo2.queue))
}

func TestFanOut_DeliversInOrderToAllTargets(t *testing.T) {
	a := &recordingTarget{name: "a"}
	b := &recordingTarget{name: "b"}

	var committed []Batch
	var mu sync.Mutex
	fo := New([]Target{a, b}, RetryPolicy{}, 4, 1, func(batch Batch) {
		mu.Lock()
		committed = append(committed, batch)
		mu.Unlock()
	}, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = fo.Run(ctx) }()

	require.NoError(t, fo.Dispatch(ctx, Batch{FromBlock: 1, ToBlock: 10}))
	require.NoError(t, fo.Dispatch(ctx, Batch{FromBlock: 11, ToBlock: 20}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(committed) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()

	require.Len(t, a.received, 2)
	require.Equal(t, uint64(1), a.received[0].FromBlock)
	require.Equal(t, uint64(11), a.received[1].FromBlock)
	require.Len(t, b.received, 2)
}

func TestFanOut_RetriesOnTransientFailure(t *testing.T) {
	target := &recordingTarget{name: "flaky", failN: 2}

	committed := make(chan Batch, 1)
	fo := New([]Target{target}, RetryPolicy{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, 1, 1,
		func(batch Batch) { committed <- batch }, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fo.Run(ctx) }()

	require.NoError(t, fo.Dispatch(ctx, Batch{FromBlock: 1, ToBlock: 10}))

	select {
	case b := <-committed:
		require.Equal(t, uint64(1), b.FromBlock)
	case <-time.After(time.Second):
		t.Fatal("batch never committed")
	}
	require.Equal(t, int32(3), target.calls)
}

func TestFanOut_HaltsAfterExhaustingRetries(t *testing.T) {
	target := &recordingTarget{name: "dead", failN: 1000}

	fo := New([]Target{target}, RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, 1, 1,
		nil, logger.NewNopLogger())

	ctx := context.Background()
	require.NoError(t, fo.Dispatch(ctx, Batch{FromBlock: 1, ToBlock: 10}))

	err := fo.Run(ctx)
	require.Error(t, err)

	var haltErr *HaltError
	require.ErrorAs(t, err, &haltErr)
	require.Equal(t, "dead", haltErr.Target)
}
