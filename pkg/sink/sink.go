// Package sink declares the uniform operation surface every storage
// sink family (postgres/sqlite/csv/...) implements — a tagged variant
// with no open-ended inheritance, per the design notes.
package sink

import "context"

// Row is one decoded event's column values, keyed by column name.
type Row map[string]any

// Sink is a durable storage destination for decoded event batches.
type Sink interface {
	// Name identifies this sink instance within a pipeline's manifest
	// (used for per-sink checkpoint confirmation and metrics labels).
	Name() string

	// InsertBulk writes rows to table. Implementations must make this
	// safe to call concurrently with HealthCheck but not with itself on
	// the same (sink, table) pair — the fan-out serializes per-sink
	// writes.
	InsertBulk(ctx context.Context, table string, columns []string, rows []Row) error

	// HealthCheck reports whether the sink can currently accept writes.
	HealthCheck(ctx context.Context) error

	// Close releases any held connections/file handles.
	Close() error
}
