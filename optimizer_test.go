package coclust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clusteredSchema() Schema {
	return Schema{Attributes: []AttributeDef{
		{Name: "n", Kind: Numeric},
		{Name: "c", Kind: Categorical},
	}}
}

// clusteredRows builds a dataset where n and c are strongly associated: low
// n values pair with "lo", high n values pair with "hi", so the optimizer
// has an obvious joint structure to find.
func clusteredRows() [][]any {
	var rows [][]any

	for i := 0; i < 30; i++ {
		rows = append(rows, []any{float64(i), "lo"})
	}

	for i := 100; i < 130; i++ {
		rows = append(rows, []any{float64(i), "hi"})
	}

	return rows
}

func TestOptimizeFindsInformativeGrid(t *testing.T) {
	src := &sliceRowSource{fields: []string{"n", "c"}, rows: clusteredRows()}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, clusteredSchema())
	require.NoError(t, err)

	cost := NewCostModel(ts)

	result, err := Optimize(e, ts, cost, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Best)

	assert.LessOrEqual(t, result.BestCost, result.NullCost+1e-9)
	require.NoError(t, result.Best.checkCellConservation())
}

// TestDeterminism checks P6: running Optimize twice on the same input with
// the same engine configuration produces the same part counts and cost.
func TestDeterminism(t *testing.T) {
	run := func() *OptimizeResult {
		src := &sliceRowSource{fields: []string{"n", "c"}, rows: clusteredRows()}
		e := NewEngine()
		ts, err := NewTupleStore(e, src, clusteredSchema())
		require.NoError(t, err)

		cost := NewCostModel(ts)
		result, err := Optimize(e, ts, cost, nil)
		require.NoError(t, err)

		return result
	}

	r1 := run()
	r2 := run()

	assert.Equal(t, r1.BestCost, r2.BestCost)
	assert.Equal(t, r1.Best.PartCounts(), r2.Best.PartCounts())
}

func TestOptimizeAnytimeCallbackOnlyOnImprovement(t *testing.T) {
	src := &sliceRowSource{fields: []string{"n", "c"}, rows: clusteredRows()}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, clusteredSchema())
	require.NoError(t, err)

	cost := NewCostModel(ts)

	var costs []float64

	_, err = Optimize(e, ts, cost, func(level int, snapshot, granularized *DataGrid) {
		costs = append(costs, cost.Total(snapshot))
	})
	require.NoError(t, err)

	for i := 1; i < len(costs); i++ {
		assert.Less(t, costs[i], costs[i-1], "each callback invocation must be a strict improvement")
	}
}

func TestOptimizeCancellation(t *testing.T) {
	src := &sliceRowSource{fields: []string{"n", "c"}, rows: clusteredRows()}

	tok := NewCancellationToken()
	tok.Cancel()

	e := NewEngine(WithCancellationToken(tok))
	ts, err := NewTupleStore(e, src, clusteredSchema())
	require.NoError(t, err)

	cost := NewCostModel(ts)

	result, err := Optimize(e, ts, cost, nil)
	require.NoError(t, err)
	assert.NotNil(t, result.Best, "a cancelled run still returns the finest-grained grid as a fallback")
}

func TestValueFreqByOtherKeyScopesToMatches(t *testing.T) {
	src := &sliceRowSource{fields: []string{"n", "c"}, rows: clusteredRows()}
	e := NewEngine()
	ts, err := NewTupleStore(e, src, clusteredSchema())
	require.NoError(t, err)

	g, err := BuildInitialGrid(ts)
	require.NoError(t, err)

	breakdown, total := valueFreqByOtherKey(g, ts, 1, func(v any) bool { return v.(string) == "lo" })
	assert.EqualValues(t, 30, total)
	assert.NotEmpty(t, breakdown)
}
