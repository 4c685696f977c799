// Package fetchworker executes one planned block window against a
// chain.Provider, transparently shrinking the window on a
// RangeTooLargeError and surfacing every other error to the caller
// wrapped with %w, so the pipeline can still classify it with errors.As.
package fetchworker

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/internal/planner"
	"github.com/rindexer-go/rindexer/pkg/chain"
)

// Result is the outcome of fetching one window. ToBlock may be less
// than the window originally requested if a shrink occurred.
type Result struct {
	Logs      []types.Log
	Headers   []*types.Header
	FromBlock uint64
	ToBlock   uint64
}

// Worker fetches logs and headers for a contract/event's address and
// topic filter.
type Worker struct {
	provider  chain.Provider
	planner   *planner.Planner
	addresses []common.Address
	topics    [][]common.Hash
	ceiling   uint64
	log       *logger.Logger
}

// New builds a Worker over one pipeline's filter and planner.
func New(provider chain.Provider, p *planner.Planner, addresses []common.Address, topics [][]common.Hash, ceiling uint64, log *logger.Logger) *Worker {
	return &Worker{
		provider:  provider,
		planner:   p,
		addresses: addresses,
		topics:    topics,
		ceiling:   ceiling,
		log:       log.WithComponent("fetch-worker"),
	}
}

// Fetch executes fromBlock..toBlock, shrinking and retrying internally
// on RangeTooLarge until it gets a result or hits a fatal error.
func (w *Worker) Fetch(ctx context.Context, fromBlock, toBlock uint64) (*Result, error) {
	for {
		blockNums := make([]uint64, 0, toBlock-fromBlock+1)
		for n := fromBlock; n <= toBlock; n++ {
			blockNums = append(blockNums, n)
		}

		headers, err := w.provider.BatchGetBlockHeaders(ctx, blockNums)
		if err != nil {
			return nil, fmt.Errorf("fetch headers %d..%d: %w", fromBlock, toBlock, err)
		}

		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: w.addresses,
			Topics:    w.topics,
		}

		logs, err := w.provider.GetLogs(ctx, query)
		if err != nil {
			var rte *chain.RangeTooLargeError
			if errors.As(err, &rte) {
				if fromBlock == toBlock {
					return nil, fmt.Errorf("fetch logs %d..%d: range too large at a single block: %w", fromBlock, toBlock, err)
				}
				var suggested *uint64
				if rte.Suggested {
					suggested = &rte.ToBlock
				}
				newFrom, newTo := w.planner.Shrink(fromBlock, toBlock, suggested)
				w.log.Infow("range too large, shrinking window",
					"from", fromBlock, "to", toBlock, "new_to", newTo)
				fromBlock, toBlock = newFrom, newTo
				continue
			}
			return nil, fmt.Errorf("fetch logs %d..%d: %w", fromBlock, toBlock, err)
		}

		w.planner.Grow(w.ceiling)

		return &Result{Logs: logs, Headers: headers, FromBlock: fromBlock, ToBlock: toBlock}, nil
	}
}
