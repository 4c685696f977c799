// Package postgres is the Postgres storage sink. Like the SQLite
// sink, the decoded event schema varies per (contract, event), so
// tables are created on first write and rows are bound dynamically;
// unlike the SQLite sink it batches inserts through pgx.Batch the way
// the polymarket indexer's consumer batches its event writes.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rindexer-go/rindexer/pkg/sink"
)

// Sink writes InsertBulk batches into a Postgres database through a
// connection pool, one table per call-site table name.
type Sink struct {
	name string
	pool *pgxpool.Pool

	mu      sync.Mutex
	created map[string]bool
}

var _ sink.Sink = (*Sink)(nil)

// New connects a pgx pool to dsn and wraps it as a storage sink.
func New(ctx context.Context, name, dsn string) (*Sink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Sink{name: name, pool: pool, created: make(map[string]bool)}, nil
}

// Name returns the sink's configured name.
func (s *Sink) Name() string { return s.name }

// InsertBulk upserts rows into table via a batched pipeline of
// parameterized inserts, creating the table (with a unique index over
// all columns) the first time it is seen.
func (s *Sink) InsertBulk(ctx context.Context, table string, columns []string, rows []sink.Row) error {
	if len(rows) == 0 {
		return nil
	}

	sorted := make([]string, len(columns))
	copy(sorted, columns)
	sort.Strings(sorted)

	if err := s.ensureTable(ctx, table, sorted); err != nil {
		return err
	}

	placeholders := make([]string, len(sorted))
	for i := range sorted {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		quoteIdent(table), strings.Join(quoteAll(sorted), ","), strings.Join(placeholders, ","),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for table %s: %w", table, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, row := range rows {
		args := make([]any, len(sorted))
		for i, col := range sorted {
			args[i] = row[col]
		}
		batch.Queue(stmt, args...)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert row into table %s: %w", table, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch for table %s: %w", table, err)
	}

	return tx.Commit(ctx)
}

func (s *Sink) ensureTable(ctx context.Context, table string, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created[table] {
		return nil
	}

	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = fmt.Sprintf("%s TEXT", quoteIdent(c))
	}

	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s, UNIQUE(%s))",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(quoteAll(columns), ","),
	)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	s.created[table] = true
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}

// HealthCheck pings the connection pool.
func (s *Sink) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}
