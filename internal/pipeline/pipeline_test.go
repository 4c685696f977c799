package pipeline

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/rindexer-go/rindexer/internal/abi"
	rindexercsv "github.com/rindexer-go/rindexer/internal/sink/csv"
	"github.com/rindexer-go/rindexer/internal/decoder"
	"github.com/rindexer-go/rindexer/internal/fanout"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/internal/reorg"
	"github.com/rindexer-go/rindexer/internal/scheduler"
	"github.com/rindexer-go/rindexer/internal/store/sqlite"
	"github.com/rindexer-go/rindexer/pkg/chain"
	"github.com/rindexer-go/rindexer/pkg/config"
)

// fakeProvider serves a fixed in-memory chain for one test run: a
// contiguous header range and a single Transfer log at a known block.
type fakeProvider struct {
	headers map[uint64]*types.Header
	logs    []types.Log
	head    uint64
}

func newFakeProvider(headCount uint64) *fakeProvider {
	p := &fakeProvider{headers: make(map[uint64]*types.Header), head: headCount}
	var parent common.Hash
	for n := uint64(1); n <= headCount; n++ {
		h := &types.Header{
			Number:     new(big.Int).SetUint64(n),
			ParentHash: parent,
			Time:       1_700_000_000 + n*12,
		}
		p.headers[n] = h
		parent = h.Hash()
	}
	return p
}

func (p *fakeProvider) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	from := query.FromBlock.Uint64()
	to := query.ToBlock.Uint64()
	var out []types.Log
	for _, lg := range p.logs {
		if lg.BlockNumber >= from && lg.BlockNumber <= to {
			out = append(out, lg)
		}
	}
	return out, nil
}

func (p *fakeProvider) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	out := make([]*types.Header, 0, len(blockNums))
	for _, n := range blockNums {
		out = append(out, p.headers[n])
	}
	return out, nil
}

func (p *fakeProvider) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	return p.headers[p.head], nil
}

func (p *fakeProvider) GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error) {
	return p.headers[p.head], nil
}

func (p *fakeProvider) GetSafeBlockHeader(ctx context.Context) (*types.Header, error) {
	return p.headers[p.head], nil
}

func (p *fakeProvider) Subscribe(ctx context.Context) (<-chan chain.HeadEvent, error) {
	ch := make(chan chain.HeadEvent)
	close(ch)
	return ch, nil
}

func (p *fakeProvider) Close() {}

func TestPipeline_RunIndexesOneWindowThenHaltsAtEndBlock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.Open(sqlite.Options{Path: dbPath})
	require.NoError(t, err)
	defer db.Close()

	checkpoints := sqlite.NewCheckpointStore(db)
	hashes := sqlite.NewBlockHashStore(db)

	log := logger.NewNopLogger()
	reorgHandler := reorg.New("testnet", 1337, hashes, log)
	graph := scheduler.New()

	defs, err := abi.LoadContractEvents("", []string{"Transfer(address indexed from, address indexed to, uint256 value)"})
	require.NoError(t, err)
	def := defs[0]

	from := common.HexToAddress("0x0000000000000000000000000000000000000001")
	to := common.HexToAddress("0x0000000000000000000000000000000000000002")
	value := big.NewInt(1000)

	dataPacked, err := gethabi.Arguments{def.Event.Inputs[2]}.Pack(value)
	require.NoError(t, err)

	contractAddr := common.HexToAddress("0x00000000000000000000000000000000000009")

	provider := newFakeProvider(20)
	provider.logs = []types.Log{
		{
			Address: contractAddr,
			Topics: []common.Hash{
				def.Event.ID,
				common.BytesToHash(common.LeftPadBytes(from.Bytes(), 32)),
				common.BytesToHash(common.LeftPadBytes(to.Bytes(), 32)),
			},
			Data:        dataPacked,
			BlockNumber: 5,
			Index:       0,
			TxHash:      common.HexToHash("0xabc"),
			BlockHash:   provider.headers[5].Hash(),
		},
	}

	dec := decoder.New([]abi.EventDef{def})

	outDir := t.TempDir()
	csvSink, err := rindexercsv.New("csv-out", outDir)
	require.NoError(t, err)
	defer csvSink.Close()

	target := NewSinkTarget(csvSink, "transfer_events")

	endBlock := uint64(10)
	cfg := Config{
		Key:        sqlite.PipelineKey{NetworkID: "testnet", ContractName: "token", EventSignature: def.Signature},
		ChainID:    1337,
		Address:    contractAddr,
		EventDef:   def,
		StartBlock: 1,
		EndBlock:   &endBlock,
		ChunkSize:  50,
		Timestamp:  config.TimestampConfig{Policy: "off"},
	}

	deps := Deps{
		Provider:    provider,
		Decoder:     dec,
		Checkpoints: checkpoints,
		Graph:       graph,
		Reorg:       reorgHandler,
		Targets:     []fanout.Target{target},
		Log:         log,
	}

	pl := New(cfg, deps)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- pl.Run(ctx) }()

	require.Eventually(t, func() bool {
		block, err := checkpoints.LastIndexedBlock(context.Background(), cfg.Key)
		require.NoError(t, err)
		return block == endBlock
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	written, err := os.ReadFile(filepath.Join(outDir, "transfer_events.csv"))
	require.NoError(t, err)
	require.Contains(t, string(written), "1000")
}

func TestGraphID_IsStableAcrossCalls(t *testing.T) {
	key := sqlite.PipelineKey{NetworkID: "n", ContractName: "c", EventSignature: "e"}
	require.Equal(t, GraphID(key), GraphID(key))
}
