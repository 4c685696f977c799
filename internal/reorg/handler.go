// Package reorg implements the Reorg Handler: verifies block-hash
// continuity on every fetched window, detects chain reorganizations
// from a changed stored hash or a parent-hash break among the fetched
// headers, and computes the reorg-safe rewind window a pipeline must
// replay. It does not consume the Chain Provider's live head
// notifications; a reorg is only seen when a window is fetched.
package reorg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/internal/store/sqlite"
)

// SafeDistance returns the reorg-safe distance for a chain id: 12
// blocks for Ethereum mainnet, 64 for everything else, matching the
// probabilistic-finality assumption most EVM chains share.
func SafeDistance(chainID uint64) uint64 {
	if chainID == 1 {
		return 12
	}
	return 64
}

// RewindWindow marks a pipeline as replaying a range after a reorg.
// While non-nil, newly emitted records for that pipeline must be
// flagged as replays so sinks can treat them as upserts rather than
// fresh appends.
type RewindWindow struct {
	From uint64
	To   uint64
}

// Handler verifies fetched block ranges against previously recorded
// hashes for one network, detects reorgs, and tracks each pipeline's
// in-flight RewindWindow.
type Handler struct {
	networkID string
	chainID   uint64
	hashes    *sqlite.BlockHashStore
	log       *logger.Logger

	mu      sync.Mutex
	rewinds map[sqlite.PipelineKey]RewindWindow
}

// New builds a Handler for one network.
func New(networkID string, chainID uint64, hashes *sqlite.BlockHashStore, log *logger.Logger) *Handler {
	return &Handler{
		networkID: networkID,
		chainID:   chainID,
		hashes:    hashes,
		log:       log.WithComponent("reorg-handler"),
		rewinds:   make(map[sqlite.PipelineKey]RewindWindow),
	}
}

// VerifyAndRecord checks newly fetched headers for internal
// continuity (parent-hash chaining) and against whatever this network
// has previously recorded at those heights, then persists them.
//
// A mismatch against a stored hash at a given height means a reorg
// replaced the chain at or below that height; a parent-hash
// discontinuity within headers means a reorg happened between the
// logs fetch and the headers fetch. Both return ErrReorgDetected with
// the first affected block number.
func (h *Handler) VerifyAndRecord(ctx context.Context, headers []*types.Header) error {
	if len(headers) == 0 {
		return nil
	}

	for i, hdr := range headers {
		num := hdr.Number.Uint64()

		stored, ok, err := h.hashes.StoredBlock(ctx, h.networkID, num)
		if err != nil {
			return fmt.Errorf("load stored block %d: %w", num, err)
		}
		if ok && stored.BlockHash != hdr.Hash().Hex() {
			depth := uint64(len(headers) - i)
			recordReorg(h.networkID, depth, time.Now())
			h.log.Warnw("reorg detected against stored hash",
				"network", h.networkID, "block", num,
				"stored_hash", stored.BlockHash, "current_hash", hdr.Hash().Hex())
			return NewReorgError(num, fmt.Sprintf("stored_hash=%s current_hash=%s", stored.BlockHash, hdr.Hash().Hex()))
		}

		if i > 0 {
			prev := headers[i-1]
			if hdr.ParentHash != prev.Hash() {
				depth := uint64(len(headers) - i)
				recordReorg(h.networkID, depth, time.Now())
				h.log.Warnw("chain discontinuity within fetched headers",
					"network", h.networkID, "block", num, "prev_block", prev.Number.Uint64())
				return NewReorgError(num, fmt.Sprintf("discontinuity between blocks %d and %d", prev.Number.Uint64(), num))
			}
		}
	}

	records := make([]sqlite.BlockRecord, 0, len(headers))
	for _, hdr := range headers {
		records = append(records, sqlite.BlockRecord{
			BlockNumber: hdr.Number.Uint64(),
			BlockHash:   hdr.Hash().Hex(),
			ParentHash:  hdr.ParentHash.Hex(),
		})
	}
	if err := h.hashes.RecordBlocks(ctx, h.networkID, records); err != nil {
		return fmt.Errorf("record blocks: %w", err)
	}
	return nil
}

// PruneFinalized drops recorded hashes at or below a finalized height,
// since they can no longer be reorged and don't need re-verification.
func (h *Handler) PruneFinalized(ctx context.Context, finalizedBlock uint64) error {
	return h.hashes.PruneOlderThan(ctx, h.networkID, finalizedBlock+1)
}

// BeginRewind computes rewind_to = max(startBlock, lastIndexed -
// safe_distance), marks the pipeline as replaying [rewind_to+1,
// lastIndexed], drops the now-suspect tail of recorded hashes, and
// returns the window the caller must re-fetch.
//
// firstReorgBlock is the divergence point VerifyAndRecord detected. If
// it falls before the computed replay window, safe_distance wasn't
// enough to reach a canonical block — BeginRewind returns
// *ErrFatalReorg instead of a window, and the caller must halt the
// pipeline rather than replay an insufficient range.
func (h *Handler) BeginRewind(ctx context.Context, key sqlite.PipelineKey, startBlock, lastIndexed, firstReorgBlock uint64) (RewindWindow, error) {
	safe := SafeDistance(h.chainID)

	var rewindTo uint64
	if lastIndexed > safe {
		rewindTo = lastIndexed - safe
	}
	if rewindTo < startBlock {
		rewindTo = startBlock
	}

	window := RewindWindow{From: rewindTo + 1, To: lastIndexed}

	if firstReorgBlock < window.From {
		recordFatalReorg(h.networkID, fmt.Sprintf("%s/%s", key.ContractName, key.EventSignature))
		h.log.Errorw("fatal reorg: divergence exceeds safe rewind window, halting pipeline",
			"network", h.networkID, "pipeline", key,
			"first_reorg_block", firstReorgBlock, "rewind_from", window.From, "safe_distance", safe)
		return RewindWindow{}, &ErrFatalReorg{
			FirstReorgBlock: firstReorgBlock,
			RewindFrom:      window.From,
			Details:         fmt.Sprintf("safe_distance=%d only covers replay from block %d, but chain diverged at block %d", safe, window.From, firstReorgBlock),
		}
	}

	if err := h.hashes.DeleteFrom(ctx, h.networkID, window.From); err != nil {
		return RewindWindow{}, fmt.Errorf("delete suspect block hashes: %w", err)
	}

	h.mu.Lock()
	h.rewinds[key] = window
	h.mu.Unlock()

	h.log.Infow("beginning reorg rewind",
		"network", h.networkID, "pipeline", key, "rewind_to", rewindTo, "replay_from", window.From, "replay_to", window.To)

	return window, nil
}

// ActiveRewind reports the in-flight RewindWindow for a pipeline, if
// any. Callers must mark every record emitted while one is active as
// a replay.
func (h *Handler) ActiveRewind(key sqlite.PipelineKey) (RewindWindow, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.rewinds[key]
	return w, ok
}

// CompleteRewind clears a pipeline's RewindWindow once its replay
// range has been fully re-fetched and re-emitted.
func (h *Handler) CompleteRewind(key sqlite.PipelineKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rewinds, key)
}

// IsReorgError reports whether err is (or wraps) an ErrReorgDetected,
// letting pipeline code branch on it without importing this package's
// concrete type.
func IsReorgError(err error) (*ErrReorgDetected, bool) {
	var re *ErrReorgDetected
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsFatalReorg reports whether err is (or wraps) an ErrFatalReorg.
func IsFatalReorg(err error) (*ErrFatalReorg, bool) {
	var fe *ErrFatalReorg
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
