package coclust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoLevelCatGrid builds a grid with one categorical attribute of three
// singleton parts, each observed 10 times with the single value of a second
// categorical attribute, so every pair has a clear identity merging benefit
// (mirroring Mergers of parts sharing a cross-tab profile).
func twoLevelCatGrid() (*DataGrid, CostModel) {
	ax := NewAttribute("x", Categorical)
	pa := NewValueSetPart(ax.allocPartID(), "a", []string{"a"}, false)
	pb := NewValueSetPart(ax.allocPartID(), "b", []string{"b"}, false)
	pc := NewValueSetPart(ax.allocPartID(), "c", []string{"c"}, false)
	ax.AddPart(pa)
	ax.AddPart(pb)
	ax.AddPart(pc)
	ax.Values = []string{"a", "b", "c"}

	ay := NewAttribute("y", Categorical)
	py := NewValueSetPart(ay.allocPartID(), "y", []string{"y"}, false)
	ay.AddPart(py)
	ay.Values = []string{"y"}

	g := NewDataGrid([]*Attribute{ax, ay})
	g.AddObservation([]*Part{pa, py}, 10)
	g.AddObservation([]*Part{pb, py}, 10)
	g.AddObservation([]*Part{pc, py}, 10)

	ts := &TupleStore{
		Schema: Schema{Attributes: []AttributeDef{{Name: "x", Kind: Categorical}, {Name: "y", Kind: Categorical}}},
		N:      30,
	}
	ts.categorical = map[string]*categoricalSummary{
		"x": {Values: []string{"a", "b", "c"}},
		"y": {Values: []string{"y"}},
	}

	return g, NewCostModel(ts)
}

func TestMergerSeedsAllPairs(t *testing.T) {
	g, cm := twoLevelCatGrid()

	m := NewMerger(g, cm)

	// 3 categorical parts => 3 candidate pairs, one attribute only (y has
	// just 1 part, no candidates).
	assert.Equal(t, 3, m.Len())
}

func TestMergerSearchBestMergeReducesPartCount(t *testing.T) {
	g, cm := twoLevelCatGrid()
	m := NewMerger(g, cm)

	before := g.Attributes[0].PartCount()

	_, ok := m.SearchBestMerge()
	if ok {
		assert.Equal(t, before-1, g.Attributes[0].PartCount())
	}
}

func TestMergerForceBestMergeToOnePart(t *testing.T) {
	g, cm := twoLevelCatGrid()
	m := NewMerger(g, cm)

	for g.Attributes[0].PartCount() > 1 {
		fused, a, b, _, ok := m.ForceBestMerge()
		require.True(t, ok)
		require.NotNil(t, fused)
		require.NotNil(t, a)
		require.NotNil(t, b)
	}

	assert.Equal(t, 1, g.Attributes[0].PartCount())
	require.NoError(t, g.checkCellConservation())
}

func TestMergerForceBestMergeEmptyQueue(t *testing.T) {
	g, cm := twoLevelCatGrid()
	m := NewMerger(g, cm)

	for {
		_, _, _, _, ok := m.ForceBestMerge()
		if !ok {
			break
		}
	}

	_, _, _, _, ok := m.ForceBestMerge()
	assert.False(t, ok)
}

func TestMergerCheckAllPartMerges(t *testing.T) {
	g, cm := twoLevelCatGrid()
	m := NewMerger(g, cm)

	assert.NoError(t, m.checkAllPartMerges())
}

func TestMergerNumericOnlyAdjacentPairs(t *testing.T) {
	a := NewAttribute("n", Numeric)
	p1 := NewIntervalPart(a.allocPartID(), "p1", 0, 1)
	p2 := NewIntervalPart(a.allocPartID(), "p2", 1, 2)
	p3 := NewIntervalPart(a.allocPartID(), "p3", 2, 3)
	a.AddPart(p1)
	a.AddPart(p2)
	a.AddPart(p3)

	ay := NewAttribute("y", Categorical)
	py := NewValueSetPart(ay.allocPartID(), "y", []string{"y"}, false)
	ay.AddPart(py)

	g := NewDataGrid([]*Attribute{a, ay})
	g.AddObservation([]*Part{p1, py}, 1)
	g.AddObservation([]*Part{p2, py}, 1)
	g.AddObservation([]*Part{p3, py}, 1)

	ts := &TupleStore{Schema: Schema{Attributes: []AttributeDef{{Name: "n", Kind: Numeric}, {Name: "y", Kind: Categorical}}}, N: 3}
	ts.categorical = map[string]*categoricalSummary{"y": {Values: []string{"y"}}}

	m := NewMerger(g, NewCostModel(ts))

	// Numeric attribute: only adjacent pairs (p1,p2) and (p2,p3) are seeded,
	// never the non-adjacent (p1,p3).
	assert.Equal(t, 2, m.Len())
}
