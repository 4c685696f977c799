package abi

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
)

// EventDef is one event this engine knows how to decode, resolved
// from either a contract ABI file or a legacy signature string.
type EventDef struct {
	Name      string
	Signature string // canonical "Name(type,type,...)"
	Event     gethabi.Event
}

// LoadContractEvents resolves every EventConfig.Signature for a
// contract into an EventDef. When abiPath is non-empty, signatures are
// looked up by name in the loaded ABI JSON; otherwise each signature
// is parsed with the legacy shorthand parser and turned into a
// synthetic single-event ABI fragment.
func LoadContractEvents(abiPath string, signatures []string) ([]EventDef, error) {
	if abiPath != "" {
		return loadFromABIFile(abiPath, signatures)
	}
	return loadFromLegacySignatures(signatures)
}

func loadFromABIFile(path string, signatures []string) ([]EventDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abi file %s: %w", path, err)
	}

	parsed, err := gethabi.JSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse abi file %s: %w", path, err)
	}

	defs := make([]EventDef, 0, len(signatures))
	for _, sig := range signatures {
		name := sig
		if idx := strings.Index(sig, "("); idx != -1 {
			name = sig[:idx]
		}
		ev, ok := parsed.Events[name]
		if !ok {
			return nil, fmt.Errorf("event %q not found in abi file %s", name, path)
		}
		defs = append(defs, EventDef{Name: ev.Name, Signature: ev.Sig, Event: ev})
	}
	return defs, nil
}

func loadFromLegacySignatures(signatures []string) ([]EventDef, error) {
	defs := make([]EventDef, 0, len(signatures))
	for _, sig := range signatures {
		parsed, err := ParseEventSignature(sig)
		if err != nil {
			return nil, fmt.Errorf("parse event signature %q: %w", sig, err)
		}

		args := make(gethabi.Arguments, 0, len(parsed.Params))
		for _, p := range parsed.Params {
			typ, err := gethabi.NewType(p.Type, "", nil)
			if err != nil {
				return nil, fmt.Errorf("event %q: unsupported type %q: %w", parsed.Name, p.Type, err)
			}
			args = append(args, gethabi.Argument{Name: p.Name, Type: typ, Indexed: p.Indexed})
		}

		ev := gethabi.NewEvent(parsed.Name, parsed.Name, false, args)
		defs = append(defs, EventDef{Name: parsed.Name, Signature: parsed.CanonicalSignature(), Event: ev})
	}
	return defs, nil
}

// MarshalEventDefs is a debugging/inspection helper that renders
// resolved event signatures and their topic0 hashes as indented JSON.
func MarshalEventDefs(defs []EventDef) (string, error) {
	type out struct {
		Name      string `json:"name"`
		Signature string `json:"signature"`
		Topic0    string `json:"topic0"`
	}
	items := make([]out, len(defs))
	for i, d := range defs {
		items[i] = out{Name: d.Name, Signature: d.Signature, Topic0: d.Event.ID.Hex()}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
