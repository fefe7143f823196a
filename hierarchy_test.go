package coclust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourPartCatGrid() (*DataGrid, CostModel) {
	ax := NewAttribute("x", Categorical)
	var parts []*Part
	for _, name := range []string{"a", "b", "c", "d"} {
		p := NewValueSetPart(ax.allocPartID(), name, []string{name}, false)
		ax.AddPart(p)
		parts = append(parts, p)
	}
	ax.Values = []string{"a", "b", "c", "d"}

	ay := NewAttribute("y", Categorical)
	py := NewValueSetPart(ay.allocPartID(), "y", []string{"y"}, false)
	ay.AddPart(py)
	ay.Values = []string{"y"}

	g := NewDataGrid([]*Attribute{ax, ay})
	for i, p := range parts {
		g.AddObservation([]*Part{p, py}, int64(10*(i+1)))
	}

	ts := &TupleStore{
		Schema: Schema{Attributes: []AttributeDef{{Name: "x", Kind: Categorical}, {Name: "y", Kind: Categorical}}},
		N:      100,
	}
	ts.categorical = map[string]*categoricalSummary{
		"x": {Values: []string{"a", "b", "c", "d"}},
		"y": {Values: []string{"y"}},
	}

	return g, NewCostModel(ts)
}

// TestHierarchyConservation checks that every internal node's frequency
// equals the sum of its children's frequencies, all the way to the root.
func TestHierarchyConservation(t *testing.T) {
	g, cost := fourPartCatGrid()

	nullCost := cost.NullCost(g)
	bestCost := cost.Total(g)

	require.NoError(t, BuildHierarchy(&TupleStore{Schema: Schema{Attributes: []AttributeDef{{Name: "x", Kind: Categorical}, {Name: "y", Kind: Categorical}}}}, g, cost, nullCost, bestCost))

	h := g.Attributes[0].Hierarchy()
	require.NotNil(t, h)

	root := h.RootNode()
	require.NotNil(t, root)
	assert.EqualValues(t, 100, root.Frequency)

	var check func(idx int)
	check = func(idx int) {
		n := h.Nodes[idx]
		if n.IsLeaf() {
			return
		}

		left, right := h.Nodes[n.Left], h.Nodes[n.Right]
		assert.Equal(t, n.Frequency, left.Frequency+right.Frequency)

		check(n.Left)
		check(n.Right)
	}

	check(h.Root)
}

// TestRankUniqueness checks that every node in the dendrogram receives a
// distinct Rank after infix renumbering.
func TestRankUniqueness(t *testing.T) {
	g, cost := fourPartCatGrid()

	nullCost := cost.NullCost(g)
	bestCost := cost.Total(g)

	ts := &TupleStore{Schema: Schema{Attributes: []AttributeDef{{Name: "x", Kind: Categorical}, {Name: "y", Kind: Categorical}}}}
	require.NoError(t, BuildHierarchy(ts, g, cost, nullCost, bestCost))

	h := g.Attributes[0].Hierarchy()
	seen := map[int]bool{}

	for _, n := range h.Nodes {
		assert.False(t, seen[n.Rank], "rank %d assigned more than once", n.Rank)
		seen[n.Rank] = true
	}
}

// TestLevelMonotone checks that, ordered by ascending HierarchicalRank (the
// root, built last, has rank 1), internal nodes have non-decreasing
// hierarchical_level: a later merge in the dendrogram build never has a
// higher level than an earlier one.
func TestLevelMonotone(t *testing.T) {
	g, cost := fourPartCatGrid()

	nullCost := cost.NullCost(g)
	bestCost := cost.Total(g)

	ts := &TupleStore{Schema: Schema{Attributes: []AttributeDef{{Name: "x", Kind: Categorical}, {Name: "y", Kind: Categorical}}}}
	require.NoError(t, BuildHierarchy(ts, g, cost, nullCost, bestCost))

	h := g.Attributes[0].Hierarchy()

	var internals []*HDGPart
	for _, n := range h.Nodes {
		if !n.IsLeaf() {
			internals = append(internals, n)
		}
	}

	sort := func(nodes []*HDGPart) {
		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				if nodes[j].HierarchicalRank < nodes[i].HierarchicalRank {
					nodes[i], nodes[j] = nodes[j], nodes[i]
				}
			}
		}
	}
	sort(internals)

	for i := 1; i < len(internals); i++ {
		assert.LessOrEqual(t, internals[i-1].HierarchicalLevel, internals[i].HierarchicalLevel+1e-9)
	}
}

func TestClipLevel(t *testing.T) {
	assert.Equal(t, 1.0, clipLevel(1.5))
	assert.Equal(t, -1.5, clipLevel(-1.5), "large negatives are a legitimate signal and are not floored")
	assert.Equal(t, 0.0, clipLevel(1e-12))
	assert.InDelta(t, 0.5, clipLevel(0.5), 1e-9)
}

func TestWeightedInterest(t *testing.T) {
	a := &HDGPart{Interest: 1, Frequency: 1}
	b := &HDGPart{Interest: 0, Frequency: 3}

	assert.InDelta(t, 0.25, weightedInterest(a, b), 1e-9)
}

func TestCollapseSingleLeaf(t *testing.T) {
	g, cost := fourPartCatGrid()
	nullCost := cost.NullCost(g)
	bestCost := cost.Total(g)

	ts := &TupleStore{Schema: Schema{Attributes: []AttributeDef{{Name: "x", Kind: Categorical}, {Name: "y", Kind: Categorical}}}}
	require.NoError(t, BuildHierarchy(ts, g, cost, nullCost, bestCost))

	h := g.Attributes[0].Hierarchy()

	view, err := h.Collapse(1)
	require.NoError(t, err)
	assert.Len(t, view.Nodes, 1, "depth 1 collapses to the root alone")

	_, err = h.Collapse(0)
	assert.Error(t, err)
}

func TestSortPartsByRank(t *testing.T) {
	g, cost := fourPartCatGrid()
	nullCost := cost.NullCost(g)
	bestCost := cost.Total(g)

	ts := &TupleStore{Schema: Schema{Attributes: []AttributeDef{{Name: "x", Kind: Categorical}, {Name: "y", Kind: Categorical}}}}
	require.NoError(t, BuildHierarchy(ts, g, cost, nullCost, bestCost))

	h := g.Attributes[0].Hierarchy()
	leaves := h.SortPartsByRank()

	require.Len(t, leaves, 4)
	for i := 1; i < len(leaves); i++ {
		assert.Less(t, leaves[i-1].Rank, leaves[i].Rank)
	}
}
