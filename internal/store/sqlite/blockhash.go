package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BlockRecord is one observed (number, hash, parent hash) tuple on a
// network, used by the Reorg Handler to verify chain continuity.
type BlockRecord struct {
	BlockNumber uint64
	BlockHash   string
	ParentHash  string
}

// BlockHashStore persists recently-seen block hashes per network so
// the Reorg Handler can detect a changed hash at an already-indexed
// height.
type BlockHashStore struct {
	db *sql.DB
}

// NewBlockHashStore wraps an already-migrated *sql.DB.
func NewBlockHashStore(db *sql.DB) *BlockHashStore {
	return &BlockHashStore{db: db}
}

// RecordBlocks upserts a batch of observed blocks for networkID.
func (s *BlockHashStore) RecordBlocks(ctx context.Context, networkID string, records []BlockRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO block_hashes (network_id, block_number, block_hash, parent_hash)
VALUES (?, ?, ?, ?)
ON CONFLICT (network_id, block_number)
DO UPDATE SET block_hash = excluded.block_hash, parent_hash = excluded.parent_hash`)
	if err != nil {
		return fmt.Errorf("prepare record blocks: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, networkID, r.BlockNumber, r.BlockHash, r.ParentHash); err != nil {
			return fmt.Errorf("record block %d: %w", r.BlockNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record blocks: %w", err)
	}
	return nil
}

// StoredBlock returns the recorded hash for a given height, or
// (BlockRecord{}, false, nil) if nothing has been recorded yet.
func (s *BlockHashStore) StoredBlock(ctx context.Context, networkID string, blockNumber uint64) (BlockRecord, bool, error) {
	var rec BlockRecord
	rec.BlockNumber = blockNumber
	err := s.db.QueryRowContext(ctx,
		`SELECT block_hash, parent_hash FROM block_hashes WHERE network_id=? AND block_number=?`,
		networkID, blockNumber,
	).Scan(&rec.BlockHash, &rec.ParentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return BlockRecord{}, false, nil
	}
	if err != nil {
		return BlockRecord{}, false, fmt.Errorf("query stored block: %w", err)
	}
	return rec, true, nil
}

// StoredBlocksAfter returns every recorded block above fromBlock for a
// network, ordered ascending, so the Reorg Handler can walk forward
// re-verifying continuity.
func (s *BlockHashStore) StoredBlocksAfter(ctx context.Context, networkID string, fromBlock uint64) ([]BlockRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_number, block_hash, parent_hash FROM block_hashes WHERE network_id=? AND block_number > ? ORDER BY block_number ASC`,
		networkID, fromBlock,
	)
	if err != nil {
		return nil, fmt.Errorf("query stored blocks after %d: %w", fromBlock, err)
	}
	defer rows.Close()

	var out []BlockRecord
	for rows.Next() {
		var r BlockRecord
		if err := rows.Scan(&r.BlockNumber, &r.BlockHash, &r.ParentHash); err != nil {
			return nil, fmt.Errorf("scan stored block: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneOlderThan deletes recorded blocks below keepFrom for a network,
// bounding the table's growth to roughly the safe-distance window.
func (s *BlockHashStore) PruneOlderThan(ctx context.Context, networkID string, keepFrom uint64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM block_hashes WHERE network_id=? AND block_number < ?`,
		networkID, keepFrom,
	)
	if err != nil {
		return fmt.Errorf("prune block hashes: %w", err)
	}
	return nil
}

// DeleteFrom removes every recorded block at or above fromBlock for a
// network — used after a confirmed reorg to drop the now-invalid tail
// before RecordBlocks re-populates it with the canonical chain.
func (s *BlockHashStore) DeleteFrom(ctx context.Context, networkID string, fromBlock uint64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM block_hashes WHERE network_id=? AND block_number >= ?`,
		networkID, fromBlock,
	)
	if err != nil {
		return fmt.Errorf("delete block hashes from %d: %w", fromBlock, err)
	}
	return nil
}
