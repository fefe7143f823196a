package coclust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ivSchema describes a row-identifier attribute plus two inner variables,
// the shape spec.md §2/§3 describes for Instances×Variables coclustering.
func ivSchema() Schema {
	return Schema{Attributes: []AttributeDef{
		{Name: "row", Kind: Categorical},
		{Name: "v1", Kind: Categorical},
		{Name: "v2", Kind: Categorical},
	}}
}

func TestBuildIVInitialGrid(t *testing.T) {
	src := &sliceRowSource{
		fields: []string{"row", "v1", "v2"},
		rows: [][]any{
			{"r1", "a", "x"},
			{"r2", "a", "y"},
			{"r3", "b", "x"},
		},
	}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, ivSchema())
	require.NoError(t, err)

	grid, err := BuildIVInitialGrid(ts, "row", []string{"v1", "v2"})
	require.NoError(t, err)

	require.Len(t, grid.Attributes, 2)
	assert.Equal(t, "row", grid.Attributes[0].Name)
	assert.Equal(t, VariablePartAttrName, grid.Attributes[1].Name)

	// 3 rows, each contributing one v1-atom and one v2-atom cell: 6 cells.
	assert.Len(t, grid.Cells, 6)
	assert.Equal(t, int64(6), grid.N)

	// Every inner part belongs to exactly one variable-part cluster
	// (spec.md §3): the synthetic attribute starts with one atom per
	// distinct value across both inner variables, each its own part.
	assert.Equal(t, 4, grid.Attributes[1].PartCount()) // a, b, x, y

	require.NoError(t, grid.checkCellConservation())
}

func TestBuildIVInitialGrid_UnknownIdentifier(t *testing.T) {
	src := &sliceRowSource{fields: []string{"row", "v1"}, rows: [][]any{{"r1", "a"}}}
	ts, err := NewTupleStore(NewEngine(), src, Schema{Attributes: []AttributeDef{
		{Name: "row", Kind: Categorical},
		{Name: "v1", Kind: Categorical},
	}})
	require.NoError(t, err)

	_, err = BuildIVInitialGrid(ts, "missing", []string{"v1"})
	require.Error(t, err)
}

func TestOptimizeIVGreedyMerge(t *testing.T) {
	src := &sliceRowSource{
		fields: []string{"row", "v1"},
		rows: [][]any{
			{"r1", "a"},
			{"r2", "a"},
			{"r3", "b"},
			{"r4", "b"},
		},
	}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, Schema{Attributes: []AttributeDef{
		{Name: "row", Kind: Categorical},
		{Name: "v1", Kind: Categorical},
	}})
	require.NoError(t, err)

	grid, err := BuildIVInitialGrid(ts, "row", []string{"v1"})
	require.NoError(t, err)

	cost := NewIVCostModel(ts, VariablePartAttrName, grid.Attributes[1].PartCount())

	best, bestCost, err := OptimizeIVGreedyMerge(e, grid, cost, nil)
	require.NoError(t, err)
	assert.NotNil(t, best)
	assert.False(t, bestCost < 0)
	require.NoError(t, best.checkCellConservation())
}
