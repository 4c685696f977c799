// Package chain defines the Chain Provider abstraction: a JSON-RPC
// client plus a live block-notification stream, with retryable-error
// classification and exponential backoff baked in.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// Provider is the interface the rest of the engine depends on to talk
// to a single EVM network.
type Provider interface {
	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error)
	GetLatestBlockHeader(ctx context.Context) (*types.Header, error)
	GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error)
	GetSafeBlockHeader(ctx context.Context) (*types.Header, error)

	// Subscribe opens a live notification stream of chain-head events.
	// The returned channel is closed when ctx is cancelled or the
	// underlying subscription dies.
	Subscribe(ctx context.Context) (<-chan HeadEvent, error)

	Close()
}

// HeadKind distinguishes the three live notifications a Provider can
// emit for a new or superseded block.
type HeadKind int

const (
	// HeadCommitted reports a new block appended to the head.
	HeadCommitted HeadKind = iota
	// HeadReorged reports that a previously-seen block was replaced.
	HeadReorged
	// HeadReverted reports that a previously-committed block was
	// dropped with no replacement observed yet.
	HeadReverted
)

// HeadEvent is one notification from a Provider's live stream.
type HeadEvent struct {
	Kind   HeadKind
	Header *types.Header
	Err    error
}
