package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PipelineKey identifies one (network, contract, event) pipeline.
type PipelineKey struct {
	NetworkID      string
	ContractName   string
	EventSignature string
}

// CheckpointStore persists the last-indexed block per pipeline and the
// last-confirmed block per (pipeline, sink), with atomic
// upsert-if-greater writes and a rewind operation for reorg replay.
type CheckpointStore struct {
	db *sql.DB
}

// NewCheckpointStore wraps an already-migrated *sql.DB.
func NewCheckpointStore(db *sql.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// LastIndexedBlock returns the pipeline's checkpoint, or 0 if none exists.
func (s *CheckpointStore) LastIndexedBlock(ctx context.Context, key PipelineKey) (uint64, error) {
	var block uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_indexed_block FROM checkpoints WHERE network_id=? AND contract_name=? AND event_signature=?`,
		key.NetworkID, key.ContractName, key.EventSignature,
	).Scan(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query checkpoint: %w", err)
	}
	return block, nil
}

// Advance records block as the pipeline's new checkpoint, but only if
// block is greater than what's already stored — commits are
// monotonic-only, so an out-of-order or retried commit can never move
// a checkpoint backwards (see DESIGN.md).
func (s *CheckpointStore) Advance(ctx context.Context, key PipelineKey, block uint64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO checkpoints (network_id, contract_name, event_signature, last_indexed_block, updated_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (network_id, contract_name, event_signature)
DO UPDATE SET last_indexed_block = excluded.last_indexed_block, updated_at = CURRENT_TIMESTAMP
WHERE excluded.last_indexed_block > checkpoints.last_indexed_block`,
		key.NetworkID, key.ContractName, key.EventSignature, block,
	)
	if err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	return nil
}

// Rewind forcibly sets the pipeline's checkpoint backward to block,
// used by the Reorg Handler to replay the RewindWindow.
func (s *CheckpointStore) Rewind(ctx context.Context, key PipelineKey, block uint64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO checkpoints (network_id, contract_name, event_signature, last_indexed_block, updated_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (network_id, contract_name, event_signature)
DO UPDATE SET last_indexed_block = excluded.last_indexed_block, updated_at = CURRENT_TIMESTAMP`,
		key.NetworkID, key.ContractName, key.EventSignature, block,
	)
	if err != nil {
		return fmt.Errorf("rewind checkpoint: %w", err)
	}
	return nil
}

// SinkConfirmedBlock returns the last block a given sink has acked for
// a pipeline.
func (s *CheckpointStore) SinkConfirmedBlock(ctx context.Context, key PipelineKey, sinkName string) (uint64, error) {
	var block uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT confirmed_block FROM sink_confirmations WHERE network_id=? AND contract_name=? AND event_signature=? AND sink_name=?`,
		key.NetworkID, key.ContractName, key.EventSignature, sinkName,
	).Scan(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query sink confirmation: %w", err)
	}
	return block, nil
}

// ConfirmSink records that sinkName has successfully acked up to
// block for a pipeline.
func (s *CheckpointStore) ConfirmSink(ctx context.Context, key PipelineKey, sinkName string, block uint64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sink_confirmations (network_id, contract_name, event_signature, sink_name, confirmed_block)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (network_id, contract_name, event_signature, sink_name)
DO UPDATE SET confirmed_block = excluded.confirmed_block
WHERE excluded.confirmed_block > sink_confirmations.confirmed_block`,
		key.NetworkID, key.ContractName, key.EventSignature, sinkName, block,
	)
	if err != nil {
		return fmt.Errorf("confirm sink: %w", err)
	}
	return nil
}
