// Package decoder turns raw EVM logs into typed, named parameter maps
// using a contract's ABI event definition. Integer values are whatever
// go-ethereum's abi package produces: 8, 16, 32 and 64-bit types decode
// to the matching native Go integer, every other width (up to 256
// bits) to *big.Int. No bit-width metadata is attached to the values.
package decoder

import (
	"fmt"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rindexer-go/rindexer/internal/abi"
)

// DecodedEvent is one decoded log, ready for enrichment and fan-out.
type DecodedEvent struct {
	Name            string
	Signature       string
	Params          map[string]any
	Log             types.Log
	BlockNumber     uint64
	BlockHash       [32]byte
	TxHash          [32]byte
	LogIndex        uint
	Removed         bool
}

// Decoder matches a log's topic0 against a set of known events and
// decodes it.
type Decoder struct {
	byTopic map[[32]byte]abi.EventDef
}

// New builds a Decoder over the given event definitions.
func New(defs []abi.EventDef) *Decoder {
	byTopic := make(map[[32]byte]abi.EventDef, len(defs))
	for _, d := range defs {
		byTopic[d.Event.ID] = d
	}
	return &Decoder{byTopic: byTopic}
}

// Matches reports whether log's topic0 corresponds to a known event.
func (d *Decoder) Matches(log types.Log) bool {
	if len(log.Topics) == 0 {
		return false
	}
	_, ok := d.byTopic[log.Topics[0]]
	return ok
}

// Decode decodes log against the event its topic0 identifies.
func (d *Decoder) Decode(log types.Log) (*DecodedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics, cannot identify event")
	}
	def, ok := d.byTopic[log.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("no known event for topic0 %s", log.Topics[0].Hex())
	}

	params := make(map[string]any)

	indexedArgs := make(gethabi.Arguments, 0)
	for _, a := range def.Event.Inputs {
		if a.Indexed {
			indexedArgs = append(indexedArgs, a)
		}
	}
	if len(indexedArgs) > 0 {
		if err := gethabi.ParseTopicsIntoMap(params, indexedArgs, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("decode indexed params for %s: %w", def.Name, err)
		}
	}

	if len(log.Data) > 0 {
		if err := def.Event.Inputs.UnpackIntoMap(params, log.Data); err != nil {
			return nil, fmt.Errorf("decode data params for %s: %w", def.Name, err)
		}
	}

	return &DecodedEvent{
		Name:        def.Name,
		Signature:   def.Signature,
		Params:      params,
		Log:         log,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
		Removed:     log.Removed,
	}, nil
}
