// Package abi loads event definitions — either a full contract ABI or
// the legacy "EventName(type1,type2,...)" shorthand — and exposes them
// as go-ethereum abi.Event values the decoder can unpack logs against.
package abi

import (
	"fmt"
	"regexp"
	"strings"
)

// EventParam is one parameter parsed out of a legacy signature string.
type EventParam struct {
	Name    string
	Type    string
	Indexed bool
}

// EventSignature is a legacy "EventName(type1,type2,...)" signature
// parsed into structured form.
type EventSignature struct {
	Raw    string
	Name   string
	Params []EventParam
}

var eventNameRe = regexp.MustCompile(`^[A-Z][a-zA-Z0-9_]*$`)
var paramNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseEventSignature parses the legacy shorthand signature forms:
//   - "Transfer(address,address,uint256)"
//   - "Transfer(address indexed from, address indexed to, uint256 value)"
//   - "Transfer(address from, address to, uint256 value)"
func ParseEventSignature(sig string) (*EventSignature, error) {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return nil, fmt.Errorf("empty signature")
	}

	openParen := strings.Index(sig, "(")
	if openParen == -1 {
		return nil, fmt.Errorf("invalid signature: missing opening parenthesis")
	}
	name := strings.TrimSpace(sig[:openParen])
	if name == "" {
		return nil, fmt.Errorf("invalid signature: empty event name")
	}
	if !eventNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid event name %q: must start with an uppercase letter", name)
	}

	closeParen := strings.LastIndex(sig, ")")
	if closeParen == -1 || closeParen <= openParen {
		return nil, fmt.Errorf("invalid signature: malformed parentheses")
	}

	params, err := parseParameters(sig[openParen+1 : closeParen])
	if err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}

	return &EventSignature{Raw: sig, Name: name, Params: params}, nil
}

func parseParameters(paramsStr string) ([]EventParam, error) {
	paramsStr = strings.TrimSpace(paramsStr)
	if paramsStr == "" {
		return []EventParam{}, nil
	}

	parts := splitParameters(paramsStr)
	params := make([]EventParam, 0, len(parts))
	seen := make(map[string]bool)

	for i, raw := range parts {
		p, err := parseParameter(strings.TrimSpace(raw), i)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter %q: %w", raw, err)
		}
		if p.Name != "" {
			if seen[p.Name] {
				return nil, fmt.Errorf("duplicate parameter name: %s", p.Name)
			}
			seen[p.Name] = true
		}
		params = append(params, p)
	}

	return params, nil
}

func splitParameters(paramsStr string) []string {
	var params []string
	var cur strings.Builder
	depth := 0

	for _, ch := range paramsStr {
		switch ch {
		case '(':
			depth++
			cur.WriteRune(ch)
		case ')':
			depth--
			cur.WriteRune(ch)
		case ',':
			if depth == 0 {
				params = append(params, cur.String())
				cur.Reset()
			} else {
				cur.WriteRune(ch)
			}
		default:
			cur.WriteRune(ch)
		}
	}
	if cur.Len() > 0 {
		params = append(params, cur.String())
	}
	return params
}

func parseParameter(s string, index int) (EventParam, error) {
	if s == "" {
		return EventParam{}, fmt.Errorf("empty parameter")
	}
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return EventParam{}, fmt.Errorf("empty parameter")
	}

	p := EventParam{Type: parts[0]}
	if !isValidSolidityType(p.Type) {
		return EventParam{}, fmt.Errorf("invalid solidity type: %s", p.Type)
	}

	switch len(parts) {
	case 1:
		p.Name = fmt.Sprintf("param%d", index)
	case 2:
		if parts[1] == "indexed" {
			p.Indexed = true
			p.Name = fmt.Sprintf("param%d", index)
		} else {
			p.Name = parts[1]
		}
	case 3:
		if parts[1] != "indexed" {
			return EventParam{}, fmt.Errorf("expected 'indexed' keyword, got %q", parts[1])
		}
		p.Indexed = true
		p.Name = parts[2]
	default:
		return EventParam{}, fmt.Errorf("too many parts in parameter definition")
	}

	if p.Name != "" && !paramNameRe.MatchString(p.Name) {
		return EventParam{}, fmt.Errorf("invalid parameter name: %s", p.Name)
	}
	return p, nil
}

func isValidSolidityType(typ string) bool {
	switch typ {
	case "address", "bool", "string", "bytes":
		return true
	}
	if m, _ := regexp.MatchString(`^bytes([1-9]|[12][0-9]|3[0-2])$`, typ); m {
		return true
	}
	if m, _ := regexp.MatchString(`^u?int(8|16|24|32|40|48|56|64|72|80|88|96|104|112|120|128|136|144|152|160|168|176|184|192|200|208|216|224|232|240|248|256)?$`, typ); m {
		return true
	}
	if strings.HasSuffix(typ, "[]") {
		return isValidSolidityType(strings.TrimSuffix(typ, "[]"))
	}
	if m, _ := regexp.MatchString(`^[a-zA-Z_][a-zA-Z0-9_]*\[\d+\]$`, typ); m {
		base := regexp.MustCompile(`\[\d+\]$`).ReplaceAllString(typ, "")
		return isValidSolidityType(base)
	}
	return false
}

// CanonicalSignature renders the signature without parameter names,
// e.g. "Transfer(address,address,uint256)".
func (e *EventSignature) CanonicalSignature() string {
	if len(e.Params) == 0 {
		return e.Name + "()"
	}
	types := make([]string, len(e.Params))
	for i, p := range e.Params {
		types[i] = p.Type
	}
	return e.Name + "(" + strings.Join(types, ",") + ")"
}
