// Package sqlite is the embedded-SQLite storage sink for decoded
// event rows. Unlike internal/store/sqlite's fixed-schema checkpoint
// and block-hash tables, a pipeline's decoded columns vary per event
// signature, so this sink creates one table per (contract, event) on
// first write and binds placeholders dynamically rather than going
// through meddler's struct-tag mapping.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rindexer-go/rindexer/pkg/sink"
)

// Sink writes InsertBulk batches into a SQLite database, one table
// per call-site table name.
type Sink struct {
	name string
	db   *sql.DB

	mu      sync.Mutex
	created map[string]bool
}

var _ sink.Sink = (*Sink)(nil)

// New wraps an already-open SQLite connection (built by
// internal/store/sqlite.Open) as a storage sink.
func New(name string, db *sql.DB) *Sink {
	return &Sink{name: name, db: db, created: make(map[string]bool)}
}

// Name returns the sink's configured name.
func (s *Sink) Name() string { return s.name }

// InsertBulk upserts rows into table, creating the table with a TEXT
// column per key (plus an auto-increment rowid) the first time it is
// seen. Conflicts on the full row (via a unique index over all
// columns) are ignored, so a pipeline re-indexing the same block range
// after a reorg rewind doesn't fail on duplicate rows.
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for table %s: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sorted)), ",")
	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(quoteAll(sorted), ","), placeholders)

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("prepare insert for table %s: %w", table, err)
	}
	defer prepared.Close()

	for _, row := range rows {
		args := make([]any, len(sorted))
		for i, col := range sorted {
			args[i] = row[col]
		}
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row into table %s: %w", table, err)
		}
	}

	return tx.Commit()
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
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
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

// HealthCheck pings the underlying database connection.
func (s *Sink) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op: the *sql.DB is owned and closed by whoever opened
// it, since the Checkpoint Store and Reorg Handler may share it.
func (s *Sink) Close() error { return nil }
