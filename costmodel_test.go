package coclust

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogChooseTrivialCases(t *testing.T) {
	assert.Equal(t, 0.0, logChoose(10, 0))
	assert.Equal(t, 0.0, logChoose(10, 10))
	assert.Greater(t, logChoose(10, 3), 0.0)
}

func TestLogChooseSymmetry(t *testing.T) {
	a := logChoose(20, 6)
	b := logChoose(20, 14)
	assert.InDelta(t, a, b, 1e-9)
}

// TestNullModelFloor checks spec.md invariant 2: the null grid's cost is
// exactly the fixed overhead, since a single-part attribute's partition cost
// and a single-cell grid's cell cost are both zero.
func TestNullModelFloor(t *testing.T) {
	ax := NewAttribute("x", Numeric)
	ax.AddPart(NewIntervalPart(0, "all", math.Inf(-1), math.Inf(1)))

	ay := NewAttribute("y", Numeric)
	ay.AddPart(NewIntervalPart(0, "all", math.Inf(-1), math.Inf(1)))

	g := NewDataGrid([]*Attribute{ax, ay})
	g.AddObservation([]*Part{ax.Parts[0], ay.Parts[0]}, 100)

	ts := &TupleStore{Schema: Schema{Attributes: []AttributeDef{{Name: "x", Kind: Numeric}, {Name: "y", Kind: Numeric}}}, N: 100}
	cm := NewCostModel(ts)

	assert.Equal(t, nullModelOverhead, cm.NullCost(g))
	assert.InDelta(t, nullModelOverhead, cm.Total(g), 1e-9)
}

func TestLevelClipping(t *testing.T) {
	assert.Equal(t, 1.0, Level(-1, 10), "cost cannot exceed null cost in a sane model, but Level must clip to 1 regardless")
	assert.Equal(t, 0.0, Level(10, 10))
	assert.InDelta(t, 0.5, Level(5, 10), 1e-9)
	assert.Equal(t, 0.0, Level(1, 0))
}

// TestMergePartsDeltaMatchesFromScratch verifies that MergePartsDelta equals
// the difference in Total cost computed by actually merging the two parts.
func TestMergePartsDeltaMatchesFromScratch(t *testing.T) {
	ax := NewAttribute("x", Categorical)
	pa := NewValueSetPart(ax.allocPartID(), "a", []string{"a"}, false)
	pb := NewValueSetPart(ax.allocPartID(), "b", []string{"b"}, false)
	pc := NewValueSetPart(ax.allocPartID(), "c", []string{"c"}, false)
	ax.AddPart(pa)
	ax.AddPart(pb)
	ax.AddPart(pc)

	ay := NewAttribute("y", Categorical)
	py := NewValueSetPart(ay.allocPartID(), "y", []string{"y"}, false)
	ay.AddPart(py)

	g := NewDataGrid([]*Attribute{ax, ay})
	g.AddObservation([]*Part{pa, py}, 3)
	g.AddObservation([]*Part{pb, py}, 5)
	g.AddObservation([]*Part{pc, py}, 2)

	ts := &TupleStore{
		Schema: Schema{Attributes: []AttributeDef{{Name: "x", Kind: Categorical}, {Name: "y", Kind: Categorical}}},
		N:      10,
	}
	ts.categorical = map[string]*categoricalSummary{
		"x": {Values: []string{"a", "b", "c"}},
		"y": {Values: []string{"y"}},
	}
	cm := NewCostModel(ts).(*baseCostModel)

	before := cm.Total(g)
	delta := cm.MergePartsDelta(g, 0, pa, pb)

	merger := NewMerger(g, cm)
	merger.commitMerge(&mergeCandidate{attrIdx: 0, a: pa, b: pb, delta: delta})

	after := cm.Total(g)
	assert.InDelta(t, delta, after-before, 1e-6)
}

// TestGarbageGroupAffectsPartitionCost verifies spec.md §4.1's garbage-group
// term is actually exercised: a categorical attribute with one part marked
// HasCatchAll must cost more than the same attribute without one, via the
// extra log(k) index-selection term and the modality-count universal code
// length (attributeGarbageInfo, wired into partitionCostCategorical).
func TestGarbageGroupAffectsPartitionCost(t *testing.T) {
	plain := partitionCostCategorical(10, 3, garbageInfo{})
	withGarbage := partitionCostCategorical(10, 3, garbageInfo{Present: true, Modalities: 4})

	assert.Greater(t, withGarbage, plain)
}

// TestAttributeGarbageInfo checks attributeGarbageInfo reads the live
// HasCatchAll flag off an attribute's parts rather than a stale snapshot.
func TestAttributeGarbageInfo(t *testing.T) {
	a := NewAttribute("x", Categorical)
	p1 := NewValueSetPart(a.allocPartID(), "g1", []string{"v1", "v2"}, false)
	p2 := NewValueSetPart(a.allocPartID(), "g2", []string{"v3"}, true)
	a.AddPart(p1)
	a.AddPart(p2)

	got := attributeGarbageInfo(a)
	assert.True(t, got.Present)
	assert.Equal(t, 1, got.Modalities)

	// Once the catch-all part gains more values (as a merge would union
	// them in), the modality count tracks the live state, not a cached one.
	p2.Content.ValueSet.Values = append(p2.Content.ValueSet.Values, "v4")
	got = attributeGarbageInfo(a)
	assert.Equal(t, 2, got.Modalities)

	numeric := NewAttribute("n", Numeric)
	assert.False(t, attributeGarbageInfo(numeric).Present)
}
