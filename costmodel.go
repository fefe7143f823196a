package coclust

// costmodel.go implements the pure function from a data grid to its MDL
// description length (spec.md §4.1), plus the incremental delta-cost
// helpers the optimizer uses so a local edit's cost is evaluated in time
// proportional to the touched region rather than over the whole grid.
//
// Grounded on invertedv-seafan's use of gonum/stat and gonum/floats for
// numeric reductions (data.go's Desc, parser.go's evaluator), generalized
// here to the log-binomial / multinomial terms of the MDL criterion.

import (
	"math"

	flt "gonum.org/v1/gonum/floats"
)

// nullModelOverhead is the fixed prior cost of choosing between "this grid
// is structured" and "this grid is the null model" (spec.md §4.1 invariant
// 2: the null grid's cost is this overhead plus the single-cell cost, which
// is always 0). Kept strictly positive so Level = 1 - cost/C0 is defined.
const nullModelOverhead = math.Ln2

// CostModel is the interface shared by the base (variable coclustering) and
// IV-specific cost models (spec.md §9's "dynamic dispatch over cost
// functions" design note): total cost plus the three delta helpers the
// optimizer needs.
type CostModel interface {
	Total(g *DataGrid) float64
	NullCost(g *DataGrid) float64
	MergePartsDelta(g *DataGrid, attrIdx int, a, b *Part) float64
	MoveValueDelta(g *DataGrid, attrIdx int, value string, freqByOtherKey map[string]int64, from, to *Part) float64
	SplitPartDelta(g *DataGrid, attrIdx int, p *Part, left, right PartContent, cellsLeft, cellsRight map[string]int64) float64
}

// baseCostModel implements CostModel for ordinary variable coclustering
// (spec.md §4.1). The IV-specific model (ivgrid.go) embeds it and overrides
// only the partition-cost term for the variable-part dimension.
type baseCostModel struct {
	// distinctValues caches the number of distinct observed values per
	// categorical attribute, which doesn't change as the grid coarsens.
	distinctValues map[string]int
}

// garbageInfo describes a categorical attribute's designated garbage group
// (spec.md §4.1, GLOSSARY "Garbage group"): present or not, and how many
// modalities it currently holds. This is derived live from an Attribute's
// Parts (attributeGarbageInfo) rather than cached at cost-model
// construction, since which part (if any) is the designated garbage group
// changes as the grid coarsens across granularity levels and merges
// (coarsenCategoricalByHash in gridbuild.go); a construction-time snapshot
// would go stale the moment the grid changed.
type garbageInfo struct {
	Present    bool
	Modalities int
}

// attributeGarbageInfo inspects a's current parts for the one marked
// HasCatchAll (spec.md GLOSSARY "Garbage group") and reports its modality
// count, i.e. how many distinct raw values it currently groups.
func attributeGarbageInfo(a *Attribute) garbageInfo {
	if a.Kind != Categorical {
		return garbageInfo{}
	}

	for _, p := range a.Parts {
		if p.Content.ValueSet.HasCatchAll {
			return garbageInfo{Present: true, Modalities: len(p.Content.ValueSet.Values)}
		}
	}

	return garbageInfo{}
}

// NewCostModel builds a CostModel from the tuple store's descriptive
// stats: distinct-value counts per categorical attribute, needed by the
// categorical partition-cost term.
func NewCostModel(ts *TupleStore) CostModel {
	cm := &baseCostModel{
		distinctValues: make(map[string]int),
	}

	for _, a := range ts.Schema.Attributes {
		if a.Kind == Categorical {
			if s := ts.CategoricalSummary(a.Name); s != nil {
				cm.distinctValues[a.Name] = len(s.Values)
			}
		}
	}

	return cm
}

// logChoose returns log(C(n,k)) via the log-gamma function, 0 when the
// choice is trivial (k<=0 or k>=n).
func logChoose(n, k int64) float64 {
	if k <= 0 || k >= n {
		return 0
	}

	lg1, _ := math.Lgamma(float64(n) + 1)
	lg2, _ := math.Lgamma(float64(k) + 1)
	lg3, _ := math.Lgamma(float64(n-k) + 1)

	return lg1 - lg2 - lg3
}

// universalCodeLength approximates Rissanen's universal code length for a
// positive integer n, used for the garbage group's modality count
// (spec.md §4.1: "its modality count enters the formula").
func universalCodeLength(n int) float64 {
	if n <= 0 {
		return 0
	}

	const c0 = 2.865064

	x := float64(n)
	length := math.Log2(x)

	for {
		x = math.Log2(x)
		if x <= 0 {
			break
		}

		length += x
	}

	return (length + math.Log2(c0)) * math.Ln2
}

// partitionCostNumeric is log(N+k-1 choose k-1), the cost of choosing k-1
// interval boundaries among N+k-1 slots (spec.md §4.1).
func partitionCostNumeric(n int64, k int) float64 {
	return logChoose(n+int64(k)-1, int64(k)-1)
}

// partitionCostCategorical is the Stirling-like grouping cost plus, when a
// garbage group is present, an extra log(k) index-selection term and the
// universal code length of the garbage group's modality count
// (spec.md §4.1).
func partitionCostCategorical(distinctValues, k int, garbage garbageInfo) float64 {
	cost := logChoose(int64(distinctValues+k-1), int64(k-1))

	if garbage.Present && k > 0 {
		cost += math.Log(float64(k))
		cost += universalCodeLength(garbage.Modalities)
	}

	return cost
}

// partitionCost dispatches to the numeric or categorical term for attribute
// a, whose current part count is k.
func (cm *baseCostModel) partitionCost(g *DataGrid, a *Attribute) float64 {
	k := a.PartCount()

	switch a.Kind {
	case Numeric:
		return partitionCostNumeric(g.N, k)
	case Categorical:
		return partitionCostCategorical(cm.distinctValues[a.Name], k, attributeGarbageInfo(a))
	default:
		return 0
	}
}

// cellCost is the log(N_part choose f_c) contribution of cell c, one term
// per attribute it touches (spec.md §4.1: "a multinomial term plus
// log(N_part choose f_c) contributions").
func cellCost(c *Cell) float64 {
	var total float64
	for _, p := range c.Parts {
		total += logChoose(p.Frequency, c.Frequency)
	}

	return total
}

// Total implements spec.md §4.1's cost formula.
func (cm *baseCostModel) Total(g *DataGrid) float64 {
	total := nullModelOverhead

	terms := make([]float64, 0, len(g.Attributes)+len(g.Cells))
	for _, a := range g.Attributes {
		terms = append(terms, cm.partitionCost(g, a))
	}

	for _, c := range g.Cells {
		terms = append(terms, cellCost(c))
	}

	total += flt.Sum(terms)

	return total
}

// NullCost is the cost of the grid with every attribute collapsed to one
// part: by construction this is exactly nullModelOverhead, since partition
// costs at k=1 are 0 and the single cell's frequency equals each part's
// frequency (spec.md §4.1 invariant 2).
func (cm *baseCostModel) NullCost(g *DataGrid) float64 {
	return nullModelOverhead
}

// otherKey returns a cellKey-equivalent string built from every part of c
// except the one at attrIdx, used to detect which cells collide when two
// parts of the same attribute merge.
func otherKey(parts []*Part, attrIdx int) string {
	reduced := make([]*Part, 0, len(parts)-1)
	for i, p := range parts {
		if i != attrIdx {
			reduced = append(reduced, p)
		}
	}

	return cellKey(reduced)
}

// MergePartsDelta computes the cost change of fusing a and b (both parts of
// attribute attrIdx), touching only a's and b's cells and that one
// attribute's partition-cost term (spec.md §4.1 invariant 1).
func (cm *baseCostModel) MergePartsDelta(g *DataGrid, attrIdx int, a, b *Part) float64 {
	attr := g.Attributes[attrIdx]
	kBefore := attr.PartCount()
	kAfter := kBefore - 1

	var partitionBefore, partitionAfter float64

	switch attr.Kind {
	case Numeric:
		partitionBefore = partitionCostNumeric(g.N, kBefore)
		partitionAfter = partitionCostNumeric(g.N, kAfter)
	case Categorical:
		// Same pre-edit garbage snapshot for both terms, consistent with
		// distinctValues' own frozen-at-construction precision: a merge
		// touching the garbage group itself shifts its modality count by
		// at most the other part's, a second-order effect this delta
		// doesn't chase.
		garbage := attributeGarbageInfo(attr)
		partitionBefore = partitionCostCategorical(cm.distinctValues[attr.Name], kBefore, garbage)
		partitionAfter = partitionCostCategorical(cm.distinctValues[attr.Name], kAfter, garbage)
	}

	var before float64
	merged := make(map[string]int64, len(a.Cells)+len(b.Cells))
	others := make(map[string][]*Part, len(a.Cells)+len(b.Cells))

	for _, c := range a.Cells {
		before += cellCost(c)
		k := otherKey(c.Parts, attrIdx)
		merged[k] += c.Frequency
		others[k] = c.Parts
	}

	for _, c := range b.Cells {
		before += cellCost(c)
		k := otherKey(c.Parts, attrIdx)
		merged[k] += c.Frequency
		others[k] = c.Parts
	}

	fused := a.Frequency + b.Frequency

	var after float64
	for k, freq := range merged {
		after += logChoose(fused, freq)
		for i, q := range others[k] {
			if i != attrIdx {
				after += logChoose(q.Frequency, freq)
			}
		}
	}

	return (partitionAfter - partitionBefore) + (after - before)
}

// MoveValueDelta computes the cost change of moving a single categorical
// value (whose per-other-attribute-combination frequency breakdown is
// freqByOtherKey, summing to the value's total frequency) from "from" to
// "to" (spec.md §4.3.2.b "Value move").
func (cm *baseCostModel) MoveValueDelta(g *DataGrid, attrIdx int, value string, freqByOtherKey map[string]int64, from, to *Part) float64 {
	attr := g.Attributes[attrIdx]

	var moved int64
	for _, f := range freqByOtherKey {
		moved += f
	}

	// Partition cost is unchanged: moving a value doesn't change k.
	_ = attr

	var before, after float64

	fromBefore := make(map[string]int64, len(from.Cells))
	for _, c := range from.Cells {
		fromBefore[otherKey(c.Parts, attrIdx)] = c.Frequency
	}

	toBefore := make(map[string]int64, len(to.Cells))
	for _, c := range to.Cells {
		toBefore[otherKey(c.Parts, attrIdx)] = c.Frequency
	}

	for k, f := range fromBefore {
		before += logChoose(from.Frequency, f)
		after += logChoose(from.Frequency-moved, f-freqByOtherKey[k])
	}

	for k, f := range toBefore {
		before += logChoose(to.Frequency, f)
		after += logChoose(to.Frequency+moved, f+freqByOtherKey[k])
	}

	// Keys present in freqByOtherKey but absent from "to" become new cells.
	for k, f := range freqByOtherKey {
		if _, ok := toBefore[k]; !ok {
			after += logChoose(to.Frequency+moved, f)
		}

		if _, ok := fromBefore[k]; !ok {
			// value's breakdown always derives from from's existing cells
			// in normal operation; defensively included for completeness.
			before += logChoose(from.Frequency, 0)
		}
	}

	return after - before
}

// SplitPartDelta computes the cost change of replacing part p (of attribute
// attrIdx) with two parts "left" and "right", whose cells (by other-key)
// will hold cellsLeft/cellsRight frequencies respectively (spec.md §4.3.2.b
// "Split").
func (cm *baseCostModel) SplitPartDelta(g *DataGrid, attrIdx int, p *Part, left, right PartContent, cellsLeft, cellsRight map[string]int64) float64 {
	attr := g.Attributes[attrIdx]
	kBefore := attr.PartCount()
	kAfter := kBefore + 1

	var partitionBefore, partitionAfter float64

	switch attr.Kind {
	case Numeric:
		partitionBefore = partitionCostNumeric(g.N, kBefore)
		partitionAfter = partitionCostNumeric(g.N, kAfter)
	case Categorical:
		// Same pre-edit garbage snapshot for both terms; see the identical
		// note in MergePartsDelta.
		garbage := attributeGarbageInfo(attr)
		partitionBefore = partitionCostCategorical(cm.distinctValues[attr.Name], kBefore, garbage)
		partitionAfter = partitionCostCategorical(cm.distinctValues[attr.Name], kAfter, garbage)
	}

	var before float64
	for _, c := range p.Cells {
		before += logChoose(p.Frequency, c.Frequency)
	}

	var leftFreq, rightFreq int64
	for _, f := range cellsLeft {
		leftFreq += f
	}

	for _, f := range cellsRight {
		rightFreq += f
	}

	var after float64
	for _, f := range cellsLeft {
		after += logChoose(leftFreq, f)
	}

	for _, f := range cellsRight {
		after += logChoose(rightFreq, f)
	}

	return (partitionAfter - partitionBefore) + (after - before)
}

// Level is the headline figure of merit: 1 - cost/null_cost (spec.md
// GLOSSARY). Clipped to 1 and snapped to 0 within epsilon, per spec.md §4.4.
func Level(cost, nullCost float64) float64 {
	const epsilon = 1e-9

	if nullCost == 0 {
		return 0
	}

	level := 1 - cost/nullCost
	if level > 1 {
		level = 1
	}

	if math.Abs(level) < epsilon {
		level = 0
	}

	return level
}
