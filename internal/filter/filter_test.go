package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_EmptyStringMatchesEverything(t *testing.T) {
	expr, err := Parse("")
	require.NoError(t, err)
	require.Nil(t, expr)
	require.True(t, Evaluate(expr, map[string]any{}))
}

func TestEvaluate_SimpleGreaterThan(t *testing.T) {
	expr, err := Parse("value>1000")
	require.NoError(t, err)

	require.True(t, Evaluate(expr, map[string]any{"value": "1001"}))
	require.False(t, Evaluate(expr, map[string]any{"value": "999"}))
}

func TestEvaluate_AndGroup(t *testing.T) {
	expr, err := Parse("value>=100 && value<=200")
	require.NoError(t, err)

	require.True(t, Evaluate(expr, map[string]any{"value": "150"}))
	require.False(t, Evaluate(expr, map[string]any{"value": "250"}))
}

func TestEvaluate_OrOfAndGroups(t *testing.T) {
	expr, err := Parse("value<10 || value>1000")
	require.NoError(t, err)

	require.True(t, Evaluate(expr, map[string]any{"value": "5"}))
	require.True(t, Evaluate(expr, map[string]any{"value": "5000"}))
	require.False(t, Evaluate(expr, map[string]any{"value": "500"}))
}

func TestEvaluate_EqualityOnAddress(t *testing.T) {
	expr, err := Parse("from=0xabc")
	require.NoError(t, err)

	require.True(t, Evaluate(expr, map[string]any{"from": "0xabc"}))
	require.False(t, Evaluate(expr, map[string]any{"from": "0xdef"}))
}

func TestEvaluate_NestedPath(t *testing.T) {
	expr, err := Parse("transfer.amount>100")
	require.NoError(t, err)

	data := map[string]any{"transfer": map[string]any{"amount": "200"}}
	require.True(t, Evaluate(expr, data))
}

func TestEvaluate_MissingPathFailsComparison(t *testing.T) {
	expr, err := Parse("value>100")
	require.NoError(t, err)
	require.False(t, Evaluate(expr, map[string]any{"other": "200"}))
}

func TestEvaluate_HandlesUint256MagnitudeValues(t *testing.T) {
	expr, err := Parse("value>1000000000000000000000000")
	require.NoError(t, err)
	require.True(t, Evaluate(expr, map[string]any{"value": "2000000000000000000000000"}))
}
