package pipeline

import (
	"time"

	"github.com/rindexer-go/rindexer/internal/decoder"
)

// Record is one decoded, enriched event ready for fan-out. It carries
// enough pipeline identity alongside the decoded params for a Target
// to label rows/messages without reaching back into the Pipeline.
type Record struct {
	Network     string
	Contract    string
	Event       string
	BlockNumber uint64
	BlockHash   string
	TxHash      string
	LogIndex    uint
	Timestamp   time.Time
	Params      map[string]any
	Replay      bool
}

func newRecord(network, contract string, evt *decoder.DecodedEvent, ts time.Time, replay bool) *Record {
	return &Record{
		Network:     network,
		Contract:    contract,
		Event:       evt.Signature,
		BlockNumber: evt.BlockNumber,
		BlockHash:   evt.BlockHash.Hex(),
		TxHash:      evt.TxHash.Hex(),
		LogIndex:    evt.LogIndex,
		Timestamp:   ts,
		Params:      evt.Params,
		Replay:      replay,
	}
}

// asMap flattens a Record into the dot-path-addressable shape that
// internal/filter and internal/chat's template renderer expect: event
// params at the top level alongside a nested "meta" object for the
// envelope fields, so a filter like "value>100" still reads straight
// off the decoded field without a prefix.
func (r *Record) asMap() map[string]any {
	out := make(map[string]any, len(r.Params)+1)
	for k, v := range r.Params {
		out[k] = v
	}
	out["meta"] = map[string]any{
		"network":      r.Network,
		"contract":     r.Contract,
		"event":        r.Event,
		"block_number": r.BlockNumber,
		"block_hash":   r.BlockHash,
		"tx_hash":      r.TxHash,
		"log_index":    r.LogIndex,
		"timestamp":    r.Timestamp.UTC().Format(time.RFC3339),
		"replay":       r.Replay,
	}
	return out
}
