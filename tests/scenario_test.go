// Package tests runs the engine end-to-end against a local Anvil node:
// StartAnvil/CreateSnapshot/RevertToForkPoint drive a real chain while
// a full core.Engine backfills, reorgs, and restarts against it.
package tests

import (
	"context"
	"encoding/csv"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rindexer-go/rindexer/internal/core"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/pkg/config"
	"github.com/rindexer-go/rindexer/tests/helpers"
	"github.com/rindexer-go/rindexer/tests/testdata"
)

// eventSignature is the legacy shorthand for TestEmitter's only event,
// parsed by internal/abi without needing an ABI JSON file on disk.
const eventSignature = "TestEvent(uint256 indexed id, address indexed sender, string data)"

// buildManifest wires one network (pointed at anvil) and one contract
// (the deployed TestEmitter) into a manifest that writes decoded
// records to a CSV sink, the way a user's own manifest.yaml would.
func buildManifest(t *testing.T, rpcURL string, chainID uint64, contractAddr, csvDir string, startBlock uint64, endBlock *uint64) *config.Manifest {
	t.Helper()

	m := &config.Manifest{
		Networks: []config.NetworkConfig{
			{Name: "local", ChainID: chainID, RPCURL: rpcURL, Finality: "latest"},
		},
		Contracts: []config.ContractConfig{
			{
				Name: "Emitter",
				Details: []config.ContractDetails{
					{Network: "local", Address: contractAddr, StartBlock: startBlock, EndBlock: endBlock, ChunkSize: 1000},
				},
				Events: []config.EventConfig{
					{Signature: eventSignature, Sinks: []string{"csv"}, Timestamp: config.TimestampConfig{Policy: "off"}},
				},
			},
		},
		Storage: &config.StorageConfig{CSV: &config.CSVSinkConfig{Name: "csv", Dir: csvDir}},
	}
	m.ApplyDefaults()
	require.NoError(t, m.Validate())
	return m
}

// readCSVRows waits up to timeout for path to exist and returns its
// decoded data rows (header excluded), polling since the pipeline
// writes asynchronously off the fetch/decode loop.
func readCSVRows(t *testing.T, path string, timeout time.Duration) [][]string {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if f, err := os.Open(path); err == nil {
			rows, err := csv.NewReader(f).ReadAll()
			f.Close()
			require.NoError(t, err)
			if len(rows) > 1 {
				return rows[1:]
			}
		}
		if time.Now().After(deadline) {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func waitForRowCount(t *testing.T, path string, want int, timeout time.Duration) [][]string {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		rows := readCSVRows(t, path, 0)
		if len(rows) >= want {
			return rows
		}
		if time.Now().After(deadline) {
			require.Len(t, rows, want, "timed out waiting for rows in %s", path)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// runEngine starts an engine from m in the background and returns a
// stop func that shuts it down and waits for its goroutines to exit.
func runEngine(t *testing.T, m *config.Manifest) (*core.Engine, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	log := logger.NewNopLogger()

	core.StateDBPath = filepath.Join(t.TempDir(), "state.db")

	engine, err := core.New(ctx, "manifest.yaml", m, log)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = engine.Run(ctx)
	}()

	return engine, func() {
		cancel()
		<-done
		_ = engine.Shutdown(context.Background())
	}
}

// TestBasicBackfill covers S1: a single historical window containing
// one emitted event decodes to exactly one CSV row.
func TestBasicBackfill(t *testing.T) {
	helpers.SkipIfAnvilNotAvailable(t)

	anvil := helpers.StartAnvil(t)
	address, _, contract, err := testdata.DeployTestEmitter(anvil.Signer, anvil.Client)
	require.NoError(t, err)
	time.Sleep(2 * time.Second)

	_, err = contract.EmitEvent(anvil.Signer, big.NewInt(1), "hello")
	require.NoError(t, err)
	time.Sleep(1 * time.Second)

	end := anvil.GetBlockNumber(t)
	csvDir := t.TempDir()
	m := buildManifest(t, anvil.URL, anvil.ChainID.Uint64(), address.Hex(), csvDir, 0, &end)

	_, stop := runEngine(t, m)
	defer stop()

	rows := waitForRowCount(t, filepath.Join(csvDir, "emitter_testevent.csv"), 1, 15*time.Second)
	require.Len(t, rows, 1)
}

// TestHistoricToLiveHandoff covers S2: with no end_block the pipeline
// backfills past three in-chain events and keeps running at head.
func TestHistoricToLiveHandoff(t *testing.T) {
	helpers.SkipIfAnvilNotAvailable(t)

	anvil := helpers.StartAnvil(t)
	address, _, contract, err := testdata.DeployTestEmitter(anvil.Signer, anvil.Client)
	require.NoError(t, err)
	time.Sleep(2 * time.Second)

	for i := 1; i <= 3; i++ {
		_, err := contract.EmitEvent(anvil.Signer, big.NewInt(int64(i)), "live")
		require.NoError(t, err)
		time.Sleep(1 * time.Second)
	}

	csvDir := t.TempDir()
	m := buildManifest(t, anvil.URL, anvil.ChainID.Uint64(), address.Hex(), csvDir, 0, nil)

	_, stop := runEngine(t, m)
	defer stop()

	rows := waitForRowCount(t, filepath.Join(csvDir, "emitter_testevent.csv"), 3, 20*time.Second)
	require.Len(t, rows, 3)
}

// TestReorgRewind covers S3: a reorg on the replay window re-emits the
// events from the new canonical chain rather than duplicating or
// dropping rows.
func TestReorgRewind(t *testing.T) {
	helpers.SkipIfAnvilNotAvailable(t)

	anvil := helpers.StartAnvil(t)
	address, _, contract, err := testdata.DeployTestEmitter(anvil.Signer, anvil.Client)
	require.NoError(t, err)
	time.Sleep(2 * time.Second)

	anvil.Mine(t, 3)
	forkPoint := anvil.GetBlockNumber(t)
	snapshot := anvil.CreateSnapshot(t)

	_, err = contract.EmitEvent(anvil.Signer, big.NewInt(1), "original")
	require.NoError(t, err)
	time.Sleep(1 * time.Second)

	csvDir := t.TempDir()
	m := buildManifest(t, anvil.URL, anvil.ChainID.Uint64(), address.Hex(), csvDir, 0, nil)
	_, stop := runEngine(t, m)
	defer stop()

	waitForRowCount(t, filepath.Join(csvDir, "emitter_testevent.csv"), 1, 15*time.Second)

	// Fork the chain back to before the original event and emit a
	// different one at the same height.
	anvil.RevertToForkPoint(t, snapshot)
	require.Equal(t, forkPoint, anvil.GetBlockNumber(t))

	_, err = contract.EmitEvent(anvil.Signer, big.NewInt(2), "replacement")
	require.NoError(t, err)
	time.Sleep(1 * time.Second)

	// The handler must detect the reorg, rewind, and re-emit exactly
	// one row for the replacement event rather than accumulating both.
	rows := waitForRowCount(t, filepath.Join(csvDir, "emitter_testevent.csv"), 1, 20*time.Second)
	require.Len(t, rows, 1)
}

// TestRestartIdempotency covers S5: stopping mid-backfill and
// restarting against the same checkpoint database resumes from the
// last committed block rather than re-emitting already-indexed rows.
func TestRestartIdempotency(t *testing.T) {
	helpers.SkipIfAnvilNotAvailable(t)

	anvil := helpers.StartAnvil(t)
	address, _, contract, err := testdata.DeployTestEmitter(anvil.Signer, anvil.Client)
	require.NoError(t, err)
	time.Sleep(2 * time.Second)

	for i := 1; i <= 2; i++ {
		_, err := contract.EmitEvent(anvil.Signer, big.NewInt(int64(i)), "first-run")
		require.NoError(t, err)
		time.Sleep(1 * time.Second)
	}
	midpoint := anvil.GetBlockNumber(t)

	csvDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.db")

	m := buildManifest(t, anvil.URL, anvil.ChainID.Uint64(), address.Hex(), csvDir, 0, &midpoint)
	core.StateDBPath = statePath
	ctx1, cancel1 := context.WithCancel(context.Background())
	engine1, err := core.New(ctx1, "manifest.yaml", m, logger.NewNopLogger())
	require.NoError(t, err)
	go func() { _ = engine1.Run(ctx1) }()

	waitForRowCount(t, filepath.Join(csvDir, "emitter_testevent.csv"), 2, 15*time.Second)
	cancel1()
	_ = engine1.Shutdown(context.Background())

	_, err = contract.EmitEvent(anvil.Signer, big.NewInt(3), "second-run")
	require.NoError(t, err)
	time.Sleep(1 * time.Second)
	end2 := anvil.GetBlockNumber(t)

	m2 := buildManifest(t, anvil.URL, anvil.ChainID.Uint64(), address.Hex(), csvDir, 0, &end2)
	core.StateDBPath = statePath
	ctx2, cancel2 := context.WithCancel(context.Background())
	engine2, err := core.New(ctx2, "manifest.yaml", m2, logger.NewNopLogger())
	require.NoError(t, err)
	go func() { _ = engine2.Run(ctx2) }()
	defer func() { cancel2(); _ = engine2.Shutdown(context.Background()) }()

	// Total rows after the restart equal the rows from a single
	// uninterrupted run (3), not 2 (first run) + 3 (replayed).
	rows := waitForRowCount(t, filepath.Join(csvDir, "emitter_testevent.csv"), 3, 20*time.Second)
	require.Len(t, rows, 3)
}

// TestInvalidManifestFailsFast covers S6: a manifest that fails
// validation is rejected before any pipeline is built, with an error
// naming the offending field.
func TestInvalidManifestFailsFast(t *testing.T) {
	m := &config.Manifest{}
	m.ApplyDefaults()
	err := m.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "network")
}
