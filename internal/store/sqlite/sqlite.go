// Package sqlite is the embedded SQLite backend for the Checkpoint
// Store and the Reorg Handler's block-hash table: one row per
// (network, contract, event) pipeline rather than a single global
// sync-state row, since many pipelines share this database.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const dbFolderPerm = 0o755

// Options configures the SQLite connection pool and PRAGMAs.
type Options struct {
	Path               string
	JournalMode        string
	Synchronous        string
	BusyTimeoutMS      int
	CacheSizePages     int
	MaxOpenConnections int
	MaxIdleConnections int
	EnableForeignKeys  bool
}

// ApplyDefaults fills in unset optional fields.
func (o *Options) ApplyDefaults() {
	if o.JournalMode == "" {
		o.JournalMode = "WAL"
	}
	if o.Synchronous == "" {
		o.Synchronous = "NORMAL"
	}
	if o.BusyTimeoutMS == 0 {
		o.BusyTimeoutMS = 5000
	}
	if o.CacheSizePages == 0 {
		o.CacheSizePages = 10000
	}
	if o.MaxOpenConnections == 0 {
		o.MaxOpenConnections = 25
	}
	if o.MaxIdleConnections == 0 {
		o.MaxIdleConnections = 5
	}
}

// Open opens (creating if needed) a SQLite database at opts.Path and
// runs the embedded migrations against it.
func Open(opts Options) (*sql.DB, error) {
	opts.ApplyDefaults()

	if err := os.MkdirAll(filepath.Dir(opts.Path), dbFolderPerm); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	foreignKeys := "off"
	if opts.EnableForeignKeys {
		foreignKeys = "on"
	}

	connStr := fmt.Sprintf(
		"file:%s?_txlock=immediate&_foreign_keys=%s&_journal_mode=%s&_busy_timeout=%d",
		opts.Path, foreignKeys, opts.JournalMode, opts.BusyTimeoutMS,
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConnections)
	db.SetMaxIdleConns(opts.MaxIdleConnections)

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA synchronous = %s", opts.Synchronous),
		fmt.Sprintf("PRAGMA cache_size = %d", opts.CacheSizePages),
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}
