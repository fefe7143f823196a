package coclust

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceRowSource is an in-memory RowSource for tests, avoiding a dependency
// on any chutils reader.
type sliceRowSource struct {
	fields []string
	rows   [][]any
	pos    int
}

func (s *sliceRowSource) Read(n int) ([][]any, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}

	end := s.pos + n
	if n <= 0 || end > len(s.rows) {
		end = len(s.rows)
	}

	out := s.rows[s.pos:end]
	s.pos = end

	return out, nil
}

func (s *sliceRowSource) Reset() error {
	s.pos = 0
	return nil
}

func (s *sliceRowSource) Fields() []string { return s.fields }

func numCatSchema() Schema {
	return Schema{Attributes: []AttributeDef{
		{Name: "n", Kind: Numeric},
		{Name: "c", Kind: Categorical},
	}}
}

func TestBuildInitialGridBasic(t *testing.T) {
	src := &sliceRowSource{
		fields: []string{"n", "c"},
		rows: [][]any{
			{1.0, "a"},
			{2.0, "b"},
			{2.0, "b"},
			{3.0, "a"},
		},
	}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, numCatSchema())
	require.NoError(t, err)

	g, err := BuildInitialGrid(ts)
	require.NoError(t, err)

	assert.Equal(t, 3, g.Attributes[0].PartCount(), "3 distinct numeric values")
	assert.Equal(t, 2, g.Attributes[1].PartCount(), "2 distinct categorical values")
	assert.EqualValues(t, 4, g.N)
	require.NoError(t, g.checkCellConservation())
}

// TestZeroRows checks that an empty row source produces a grid with no
// cells and N=0, without error.
func TestZeroRows(t *testing.T) {
	src := &sliceRowSource{fields: []string{"n", "c"}}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, numCatSchema())
	require.NoError(t, err)
	assert.EqualValues(t, 0, ts.N)

	g, err := BuildInitialGrid(ts)
	require.NoError(t, err)
	assert.Empty(t, g.Cells)
	assert.Equal(t, 0, g.Attributes[0].PartCount())
}

// TestAllRowsIdentical checks that deduplication collapses every identical
// row into a single tuple with the summed frequency.
func TestAllRowsIdentical(t *testing.T) {
	src := &sliceRowSource{
		fields: []string{"n", "c"},
		rows: [][]any{
			{1.0, "a"},
			{1.0, "a"},
			{1.0, "a"},
		},
	}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, numCatSchema())
	require.NoError(t, err)

	require.Len(t, ts.Tuples, 1)
	assert.EqualValues(t, 3, ts.Tuples[0].Frequency)

	g, err := BuildInitialGrid(ts)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Attributes[0].PartCount())
	assert.Equal(t, 1, g.Attributes[1].PartCount())
}

// TestSingleValueAttribute checks that an attribute with exactly one
// distinct value still builds a valid, mergeable grid.
func TestSingleValueAttribute(t *testing.T) {
	src := &sliceRowSource{
		fields: []string{"n", "c"},
		rows: [][]any{
			{1.0, "only"},
			{2.0, "only"},
		},
	}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, numCatSchema())
	require.NoError(t, err)

	g, err := BuildInitialGrid(ts)
	require.NoError(t, err)

	assert.Equal(t, 1, g.Attributes[1].PartCount())
	assert.True(t, g.Attributes[1].Parts[0].Content.ValueSet.Contains("only"))
}

func TestGranularizeCapsPartCount(t *testing.T) {
	rows := make([][]any, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, []any{float64(i), "v"})
	}

	src := &sliceRowSource{fields: []string{"n", "c"}, rows: rows}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, numCatSchema())
	require.NoError(t, err)

	g, err := Granularize(ts, 2) // cap = ceil(2^2) = 4
	require.NoError(t, err)

	assert.LessOrEqual(t, g.Attributes[0].PartCount(), 4)
	require.NoError(t, g.checkCellConservation())
}

func TestRebuildCellsMatchesBuildInitialGrid(t *testing.T) {
	src := &sliceRowSource{
		fields: []string{"n", "c"},
		rows: [][]any{
			{1.0, "a"},
			{2.0, "b"},
		},
	}

	e := NewEngine()
	ts, err := NewTupleStore(e, src, numCatSchema())
	require.NoError(t, err)

	g, err := BuildInitialGrid(ts)
	require.NoError(t, err)

	cellsBefore := len(g.Cells)

	require.NoError(t, RebuildCells(g, ts))
	assert.Equal(t, cellsBefore, len(g.Cells))
	require.NoError(t, g.checkCellConservation())
}
