package sqlite

import (
	"database/sql"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "001_checkpoints",
			Up: []string{`
CREATE TABLE IF NOT EXISTS checkpoints (
	network_id       TEXT NOT NULL,
	contract_name    TEXT NOT NULL,
	event_signature  TEXT NOT NULL,
	last_indexed_block INTEGER NOT NULL DEFAULT 0,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (network_id, contract_name, event_signature)
);
`},
			Down: []string{`DROP TABLE IF EXISTS checkpoints;`},
		},
		{
			Id: "002_block_hashes",
			Up: []string{`
CREATE TABLE IF NOT EXISTS block_hashes (
	network_id   TEXT NOT NULL,
	block_number INTEGER NOT NULL,
	block_hash   TEXT NOT NULL,
	parent_hash  TEXT NOT NULL,
	PRIMARY KEY (network_id, block_number)
);
`},
			Down: []string{`DROP TABLE IF EXISTS block_hashes;`},
		},
		{
			Id: "003_sink_confirmations",
			Up: []string{`
CREATE TABLE IF NOT EXISTS sink_confirmations (
	network_id       TEXT NOT NULL,
	contract_name    TEXT NOT NULL,
	event_signature  TEXT NOT NULL,
	sink_name        TEXT NOT NULL,
	confirmed_block  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (network_id, contract_name, event_signature, sink_name)
);
`},
			Down: []string{`DROP TABLE IF EXISTS sink_confirmations;`},
		},
	},
}

// RunMigrations applies all pending migrations to db.
func RunMigrations(db *sql.DB) error {
	n, err := migrate.Exec(db, "sqlite3", migrations, migrate.Up)
	if err != nil {
		return fmt.Errorf("exec migrations: %w", err)
	}
	_ = n
	return nil
}
