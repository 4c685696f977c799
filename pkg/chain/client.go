package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/pkg/config"
	"golang.org/x/time/rate"
)

const pollInterval = 4 * time.Second

var _ Provider = (*EVMClient)(nil)

// EVMClient is the go-ethereum-backed Provider implementation.
type EVMClient struct {
	eth     *ethclient.Client
	rpc     *gethrpc.Client
	cfg     config.NetworkConfig
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewEVMClient dials the network's RPC endpoint.
func NewEVMClient(ctx context.Context, cfg config.NetworkConfig, log *logger.Logger) (*EVMClient, error) {
	endpoint := cfg.RPCURL
	if cfg.WSURL != "" {
		endpoint = cfg.WSURL
	}

	rpcClient, err := gethrpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	return &EVMClient{
		eth:     ethclient.NewClient(rpcClient),
		rpc:     rpcClient,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), 1),
		log:     log.WithComponent("chain." + cfg.Name),
	}, nil
}

func (c *EVMClient) Close() { c.eth.Close() }

func (c *EVMClient) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

func (c *EVMClient) call(ctx context.Context, method string, fn func() error) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	RPCMethodInc(method)
	err := retryWithBackoff(ctx, c.cfg.Retry, method, fn)
	RPCMethodDuration(method, time.Since(start))
	if err != nil {
		RPCMethodError(method)
	}
	return err
}

// GetLogs fetches logs for query, classifying a node's "too many
// results" rejection into a typed RangeTooLargeError for the fetch
// worker to act on.
func (c *EVMClient) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func() error {
		var fetchErr error
		logs, fetchErr = c.eth.FilterLogs(ctx, query)
		return classifyLogsError(fetchErr)
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// BatchGetBlockHeaders fetches many headers in batched RPC calls.
func (c *EVMClient) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	const maxBatch = 100
	results := make([]*types.Header, 0, len(blockNums))

	for i := 0; i < len(blockNums); i += maxBatch {
		end := i + maxBatch
		if end > len(blockNums) {
			end = len(blockNums)
		}
		chunk := blockNums[i:end]

		var chunkResults []*types.Header
		err := c.call(ctx, "eth_getBlockByNumber_batch", func() error {
			batch := make([]gethrpc.BatchElem, len(chunk))
			chunkResults = make([]*types.Header, len(chunk))
			for j, num := range chunk {
				batch[j] = gethrpc.BatchElem{
					Method: "eth_getBlockByNumber",
					Args:   []any{fmt.Sprintf("0x%x", num), false},
					Result: &chunkResults[j],
				}
			}
			if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
				return err
			}
			for _, elem := range batch {
				if elem.Error != nil {
					return elem.Error
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		results = append(results, chunkResults...)
	}

	return results, nil
}

func (c *EVMClient) headerByNumber(ctx context.Context, method string, num *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.call(ctx, method, func() error {
		var fetchErr error
		header, fetchErr = c.eth.HeaderByNumber(ctx, num)
		return fetchErr
	})
	return header, err
}

func (c *EVMClient) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headerByNumber(ctx, "eth_getBlockByNumber", nil)
}

func (c *EVMClient) GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headerByNumber(ctx, "eth_getBlockByNumber", big.NewInt(int64(gethrpc.FinalizedBlockNumber)))
}

func (c *EVMClient) GetSafeBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headerByNumber(ctx, "eth_getBlockByNumber", big.NewInt(int64(gethrpc.SafeBlockNumber)))
}

// Subscribe opens a live head-notification stream. When the network
// has a ws:// endpoint it uses the node's native eth_subscribe
// ("newHeads"); otherwise it falls back to polling the latest header
// on pollInterval and diffing against the previously seen head,
// following ethmonitor's subscribe-or-poll design.
func (c *EVMClient) Subscribe(ctx context.Context) (<-chan HeadEvent, error) {
	out := make(chan HeadEvent, 16)

	if c.cfg.WSURL != "" {
		headers := make(chan *types.Header, 16)
		sub, err := c.eth.SubscribeNewHead(ctx, headers)
		if err != nil {
			return nil, fmt.Errorf("subscribe newHeads: %w", err)
		}
		go func() {
			defer close(out)
			defer sub.Unsubscribe()
			var prev *types.Header
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-sub.Err():
					out <- HeadEvent{Kind: HeadReverted, Err: err}
					return
				case h := <-headers:
					out <- c.classifyHead(prev, h)
					prev = h
				}
			}
		}()
		return out, nil
	}

	go func() {
		defer close(out)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		var prev *types.Header
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h, err := c.GetLatestBlockHeader(ctx)
				if err != nil {
					c.log.Warnw("poll for new head failed", "error", err)
					continue
				}
				if prev != nil && h.Hash() == prev.Hash() {
					continue
				}
				out <- c.classifyHead(prev, h)
				prev = h
			}
		}
	}()
	return out, nil
}

func (c *EVMClient) classifyHead(prev, cur *types.Header) HeadEvent {
	if prev != nil && cur.ParentHash != prev.Hash() && cur.Number.Uint64() <= prev.Number.Uint64() {
		return HeadEvent{Kind: HeadReorged, Header: cur}
	}
	return HeadEvent{Kind: HeadCommitted, Header: cur}
}
