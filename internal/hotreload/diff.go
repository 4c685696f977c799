// Package hotreload watches the manifest file, diffs the new config
// against the running one, and issues the action matrix the
// orchestrator names: Restart | AddPipeline | RemovePipeline | NoOp.
package hotreload

import (
	"reflect"

	"github.com/rindexer-go/rindexer/pkg/config"
)

// ActionKind is one of the four reactions a manifest change can
// trigger for a pipeline.
type ActionKind int

const (
	NoOp ActionKind = iota
	AddPipeline
	RemovePipeline
	Restart
)

func (k ActionKind) String() string {
	switch k {
	case AddPipeline:
		return "add_pipeline"
	case RemovePipeline:
		return "remove_pipeline"
	case Restart:
		return "restart"
	default:
		return "no_op"
	}
}

// PipelineKey identifies a (network, contract, event) pipeline across
// manifest generations. One ContractConfig can run on several networks
// at once (one ContractDetails entry per network), so a pipeline is
// the cross product of a contract's per-network details and its
// events.
type PipelineKey struct {
	Network  string
	Contract string
	Event    string
}

// Action is one pipeline's reaction to a manifest change.
type Action struct {
	Key    PipelineKey
	Kind   ActionKind
	Reason string
}

type pipelineEntry struct {
	details config.ContractDetails
	event   config.EventConfig
}

// Diff computes the action matrix between a previously-running
// manifest and a newly-loaded one.
func Diff(previous, next *config.Manifest) []Action {
	prevPipelines := pipelineIndex(previous)
	nextPipelines := pipelineIndex(next)

	var actions []Action

	for key, prevEntry := range prevPipelines {
		nextEntry, stillPresent := nextPipelines[key]
		if !stillPresent {
			actions = append(actions, Action{Key: key, Kind: RemovePipeline, Reason: "pipeline removed from manifest"})
			continue
		}
		if kind, reason := classifyChange(previous, next, key, prevEntry, nextEntry); kind != NoOp {
			actions = append(actions, Action{Key: key, Kind: kind, Reason: reason})
		}
	}

	for key := range nextPipelines {
		if _, existed := prevPipelines[key]; !existed {
			actions = append(actions, Action{Key: key, Kind: AddPipeline, Reason: "new pipeline added to manifest"})
		}
	}

	return actions
}

func pipelineIndex(m *config.Manifest) map[PipelineKey]pipelineEntry {
	idx := make(map[PipelineKey]pipelineEntry)
	if m == nil {
		return idx
	}
	for _, contract := range m.Contracts {
		for _, details := range contract.Details {
			for _, evt := range contract.Events {
				key := PipelineKey{Network: details.Network, Contract: contract.Name, Event: evt.Signature}
				idx[key] = pipelineEntry{details: details, event: evt}
			}
		}
	}
	return idx
}

func classifyChange(previous, next *config.Manifest, key PipelineKey, prevEntry, nextEntry pipelineEntry) (ActionKind, string) {
	prevDetails, nextDetails := prevEntry.details, nextEntry.details
	prevEvent, nextEvent := prevEntry.event, nextEntry.event

	if prevDetails.StartBlock != nextDetails.StartBlock || !sameEndBlock(prevDetails.EndBlock, nextDetails.EndBlock) {
		return Restart, "start/end block changed"
	}

	prevNet := networkByName(previous, key.Network)
	nextNet := networkByName(next, key.Network)
	if prevNet != nil && nextNet != nil && (prevNet.RPCURL != nextNet.RPCURL || prevNet.WSURL != nextNet.WSURL) {
		return Restart, "rpc provider options changed"
	}

	if !reflect.DeepEqual(prevEvent.Sinks, nextEvent.Sinks) ||
		!reflect.DeepEqual(prevEvent.Streams, nextEvent.Streams) ||
		!reflect.DeepEqual(prevEvent.Chat, nextEvent.Chat) {
		return Restart, "sink/stream/chat selection changed"
	}

	return NoOp, ""
}

func sameEndBlock(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func networkByName(m *config.Manifest, name string) *config.NetworkConfig {
	if m == nil {
		return nil
	}
	for i := range m.Networks {
		if m.Networks[i].Name == name {
			return &m.Networks[i]
		}
	}
	return nil
}
