package core

import (
	"strings"

	"github.com/rindexer-go/rindexer/internal/hotreload"
	"github.com/rindexer-go/rindexer/internal/store/sqlite"
)

// toStoreKey converts a hot-reload pipeline key into the checkpoint
// store's identity space. The two packages define identically-shaped
// but independently-named key types on purpose: hotreload only knows
// about manifest diffing and must not import the storage layer.
func toStoreKey(key hotreload.PipelineKey) sqlite.PipelineKey {
	return sqlite.PipelineKey{
		NetworkID:      key.Network,
		ContractName:   key.Contract,
		EventSignature: key.Event,
	}
}

func toHotReloadKey(key sqlite.PipelineKey) hotreload.PipelineKey {
	return hotreload.PipelineKey{
		Network:  key.NetworkID,
		Contract: key.ContractName,
		Event:    key.EventSignature,
	}
}

// tableName derives a storage-safe table/stream-subject identifier
// from a contract and event name, since event signatures contain
// characters ("(", ",", " ") no SQL table name or NATS subject allows.
func tableName(contract, eventSignature string) string {
	name := eventSignature
	if idx := strings.Index(name, "("); idx != -1 {
		name = name[:idx]
	}
	return sanitize(contract) + "_" + sanitize(name)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
