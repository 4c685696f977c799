// Package filter evaluates an event's `filter` expression against its
// decoded field values, grounded on the rindexer original's
// conditions module: an OR of AND-groups of per-field comparisons.
//
// Expression grammar (a single string, the manifest's legacy shorthand
// generalized to one expression instead of a list-of-maps):
//
//	expr       := andGroup ("||" andGroup)*
//	andGroup   := comparison ("&&" comparison)*
//	comparison := path op? value
//	op         := ">=" | "<=" | ">" | "<" | "="    (absent op: the clause is a bare path that matches when present)
//	path       := dotted field path into the decoded event, e.g. "value" or "transfer.amount"
//
// Numeric comparisons use arbitrary-precision integers rather than the
// original's u64 arithmetic, since decoded uint256 event fields
// routinely exceed 64 bits.
package filter

import (
	"fmt"
	"math/big"
	"strings"
)

// Comparison is one `path op value` clause.
type Comparison struct {
	Path  string
	Op    string // ">=" | "<=" | ">" | "<" | "=" | ""
	Value string
}

// Expr is an OR of AND-groups of comparisons.
type Expr struct {
	Groups [][]Comparison
}

// Parse compiles a filter expression string. An empty string parses to
// a nil Expr, which Evaluate treats as "always matches".
func Parse(raw string) (*Expr, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var groups [][]Comparison
	for _, orPart := range strings.Split(raw, "||") {
		var group []Comparison
		for _, andPart := range strings.Split(orPart, "&&") {
			c, err := parseComparison(andPart)
			if err != nil {
				return nil, err
			}
			group = append(group, c)
		}
		groups = append(groups, group)
	}
	return &Expr{Groups: groups}, nil
}

func parseComparison(raw string) (Comparison, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Comparison{}, fmt.Errorf("empty filter clause")
	}

	for _, op := range []string{">=", "<=", ">", "<", "="} {
		if idx := strings.Index(raw, op); idx > 0 {
			return Comparison{
				Path:  strings.TrimSpace(raw[:idx]),
				Op:    op,
				Value: strings.TrimSpace(raw[idx+len(op):]),
			}, nil
		}
	}

	// No operator: bare "path value" equality shorthand is not
	// supported without a delimiter, so treat the whole clause as a
	// path whose presence (any value, including zero or false)
	// satisfies the filter.
	return Comparison{Path: raw, Op: "", Value: ""}, nil
}

// Evaluate reports whether data satisfies expr. A nil expr always
// matches.
func Evaluate(expr *Expr, data map[string]any) bool {
	if expr == nil {
		return true
	}
	for _, group := range expr.Groups {
		if evaluateGroup(group, data) {
			return true
		}
	}
	return false
}

func evaluateGroup(group []Comparison, data map[string]any) bool {
	for _, c := range group {
		if !evaluateComparison(c, data) {
			return false
		}
	}
	return true
}

func evaluateComparison(c Comparison, data map[string]any) bool {
	value, ok := lookupPath(data, c.Path)
	if !ok {
		return false
	}

	str := fmt.Sprint(value)

	if c.Op == "" {
		return true
	}
	if c.Op == "=" {
		return str == c.Value
	}

	actual, actualOK := new(big.Int).SetString(str, 10)
	want, wantOK := new(big.Int).SetString(c.Value, 10)
	if !actualOK || !wantOK {
		return false
	}

	cmp := actual.Cmp(want)
	switch c.Op {
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	default:
		return false
	}
}

func lookupPath(data map[string]any, path string) (any, bool) {
	keys := strings.Split(path, ".")
	var current any = data
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[key]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
