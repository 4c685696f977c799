package hotreload

import (
	"testing"

	"github.com/rindexer-go/rindexer/pkg/config"
	"github.com/stretchr/testify/require"
)

func baseManifest() *config.Manifest {
	return &config.Manifest{
		Networks: []config.NetworkConfig{
			{Name: "mainnet", ChainID: 1, RPCURL: "https://rpc.example/mainnet"},
		},
		Contracts: []config.ContractConfig{
			{
				Name: "token",
				Details: []config.ContractDetails{
					{Network: "mainnet", Address: "0xabc", StartBlock: 100, ChunkSize: 500},
				},
				Events: []config.EventConfig{
					{Signature: "Transfer(address,address,uint256)", Sinks: []string{"sqlite"}},
				},
			},
		},
	}
}

func TestDiff_NoChangeIsNoOp(t *testing.T) {
	prev := baseManifest()
	next := baseManifest()
	require.Empty(t, Diff(prev, next))
}

func TestDiff_NewPipelineIsAdd(t *testing.T) {
	prev := baseManifest()
	next := baseManifest()
	next.Contracts[0].Events = append(next.Contracts[0].Events, config.EventConfig{
		Signature: "Approval(address,address,uint256)",
		Sinks:     []string{"sqlite"},
	})

	actions := Diff(prev, next)
	require.Len(t, actions, 1)
	require.Equal(t, AddPipeline, actions[0].Kind)
	require.Equal(t, "Approval(address,address,uint256)", actions[0].Key.Event)
}

func TestDiff_RemovedPipelineIsRemove(t *testing.T) {
	prev := baseManifest()
	next := baseManifest()
	next.Contracts[0].Events = nil

	actions := Diff(prev, next)
	require.Len(t, actions, 1)
	require.Equal(t, RemovePipeline, actions[0].Kind)
}

func TestDiff_ChangedStartBlockIsRestart(t *testing.T) {
	prev := baseManifest()
	next := baseManifest()
	next.Contracts[0].Details[0].StartBlock = 200

	actions := Diff(prev, next)
	require.Len(t, actions, 1)
	require.Equal(t, Restart, actions[0].Kind)
}

func TestDiff_ChangedEndBlockIsRestart(t *testing.T) {
	prev := baseManifest()
	next := baseManifest()
	end := uint64(9000)
	next.Contracts[0].Details[0].EndBlock = &end

	actions := Diff(prev, next)
	require.Len(t, actions, 1)
	require.Equal(t, Restart, actions[0].Kind)
}

func TestDiff_ChangedRPCURLRestartsAffectedNetworkOnly(t *testing.T) {
	prev := baseManifest()
	next := baseManifest()
	next.Networks[0].RPCURL = "https://rpc.example/mainnet-v2"

	actions := Diff(prev, next)
	require.Len(t, actions, 1)
	require.Equal(t, Restart, actions[0].Kind)
	require.Equal(t, "rpc provider options changed", actions[0].Reason)
}

func TestDiff_ChangedSinkSelectionIsRestart(t *testing.T) {
	prev := baseManifest()
	next := baseManifest()
	next.Contracts[0].Events[0].Sinks = []string{"sqlite", "postgres"}

	actions := Diff(prev, next)
	require.Len(t, actions, 1)
	require.Equal(t, Restart, actions[0].Kind)
}

func TestDiff_MultiNetworkFanOutProducesOnePipelinePerNetwork(t *testing.T) {
	prev := baseManifest()
	prev.Networks = append(prev.Networks, config.NetworkConfig{Name: "base", ChainID: 8453, RPCURL: "https://rpc.example/base"})
	prev.Contracts[0].Details = append(prev.Contracts[0].Details, config.ContractDetails{
		Network: "base", Address: "0xabc", StartBlock: 1, ChunkSize: 500,
	})

	idx := pipelineIndex(prev)
	require.Len(t, idx, 2)
	require.Contains(t, idx, PipelineKey{Network: "mainnet", Contract: "token", Event: "Transfer(address,address,uint256)"})
	require.Contains(t, idx, PipelineKey{Network: "base", Contract: "token", Event: "Transfer(address,address,uint256)"})
}

func TestDiff_CosmeticChangeIsNoOp(t *testing.T) {
	prev := baseManifest()
	next := baseManifest()
	next.Name = "renamed-but-same-pipelines"

	require.Empty(t, Diff(prev, next))
}
