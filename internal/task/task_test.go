package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTracker_BeginRejectedAfterShutdown(t *testing.T) {
	tr := New()
	require.True(t, tr.Running())

	done, ok := tr.Begin()
	require.True(t, ok)
	done()

	require.NoError(t, tr.Shutdown(context.Background()))
	require.False(t, tr.Running())

	_, ok = tr.Begin()
	require.False(t, ok)
}

func TestTracker_ShutdownWaitsForInFlightDrain(t *testing.T) {
	tr := New()
	done, ok := tr.Begin()
	require.True(t, ok)
	require.Equal(t, int64(1), tr.InFlight())

	go func() {
		time.Sleep(150 * time.Millisecond)
		done()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Shutdown(ctx))
	require.Equal(t, int64(0), tr.InFlight())
}

func TestTracker_ShutdownRespectsContextDeadline(t *testing.T) {
	tr := New()
	_, ok := tr.Begin()
	require.True(t, ok)
	// never call done()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tr.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTracker_DoneIsIdempotent(t *testing.T) {
	tr := New()
	done, ok := tr.Begin()
	require.True(t, ok)
	done()
	done()
	require.Equal(t, int64(0), tr.InFlight())
}
