package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGraph_AwaitReturnsImmediatelyWithNoParents(t *testing.T) {
	g := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Await(ctx, "child", 100))
}

func TestGraph_AwaitBlocksUntilParentAdvances(t *testing.T) {
	g := New()
	g.AddEdge("parent", "child")

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- g.Await(ctx, "child", 100)
	}()

	select {
	case <-done:
		t.Fatal("Await returned before parent advanced")
	case <-time.After(50 * time.Millisecond):
	}

	g.Advance("parent", 100)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Await did not unblock after parent advanced")
	}
}

func TestGraph_AwaitRequiresAllParents(t *testing.T) {
	g := New()
	g.AddEdge("parentA", "child")
	g.AddEdge("parentB", "child")

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- g.Await(ctx, "child", 50)
	}()

	g.Advance("parentA", 50)

	select {
	case <-done:
		t.Fatal("Await returned before all parents advanced")
	case <-time.After(50 * time.Millisecond):
	}

	g.Advance("parentB", 50)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Await did not unblock once all parents advanced")
	}
}

func TestGraph_AwaitRespectsContextCancellation(t *testing.T) {
	g := New()
	g.AddEdge("parent", "child")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Await(ctx, "child", 100)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGraph_DetectCycle(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	require.Error(t, g.DetectCycle())
}

func TestGraph_DetectCycle_Acyclic(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")

	require.NoError(t, g.DetectCycle())
}

func TestGraph_AdvanceIsMonotonic(t *testing.T) {
	g := New()
	g.Advance("p", 100)
	g.Advance("p", 50)
	require.Equal(t, uint64(100), g.Confirmed("p"))
}
