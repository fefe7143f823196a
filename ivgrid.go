package coclust

// ivgrid.go implements Instances×Variables (IV) coclustering (spec.md §2,
// §3's "Inner variable / variable-part" glossary entries): one grid
// dimension enumerates row-identifier clusters, the other groups
// "variable-part" atoms drawn from a set of inner variables' parts, so rows
// are clustered jointly with the parts of the other variables rather than
// with the other variables' raw values.
//
// The variable-part dimension is represented as an ordinary Categorical
// Attribute whose ValueSet atoms are composite keys "attrName#partID"
// (variablePartAtomKey) rather than raw observed values. The greedy merger
// applies to it unchanged, with the cost model's partition-cost term given
// a dedicated formula, since this dimension's atom count is the sum of
// inner parts rather than a single attribute's distinct-value count. The
// tuple-store-driven passes (split, value move, boundary slide) are not
// applied to IV grids; see OptimizeIVGreedyMerge.

import (
	"fmt"
	"math"
)

// VariablePartAttrName is the conventional name of the synthetic attribute
// representing the variable-part dimension in an IV grid.
const VariablePartAttrName = "__variable_part__"

// variablePartAtomKey builds the composite atom identifying inner part p of
// inner attribute innerAttr.
func variablePartAtomKey(innerAttr string, p *Part) string {
	return fmt.Sprintf("%s#%d", innerAttr, p.ID)
}

// BuildVariablePartAttribute builds the variable-part dimension's initial
// attribute: one atom per part of every inner attribute, each atom in its
// own singleton cluster (spec.md §3: "every inner part belongs to exactly
// one variable-part cluster").
func BuildVariablePartAttribute(innerAttrs []*Attribute) *Attribute {
	a := NewAttribute(VariablePartAttrName, Categorical)

	for _, inner := range innerAttrs {
		for _, p := range inner.Parts {
			atom := variablePartAtomKey(inner.Name, p)
			np := NewValueSetPart(a.allocPartID(), atom, []string{atom}, false)
			np.Frequency = p.Frequency
			a.AddPart(np)
			a.Values = append(a.Values, atom)
		}
	}

	a.InitialPartNumber = a.PartCount()

	return a
}

// ivCostModel overrides the variable-part dimension's partition-cost term:
// a stars-and-bars count over total atoms (summed inner parts) rather than
// one attribute's distinct-value count, since the dimension has no single
// underlying attribute's domain size (spec.md §4.1's additive decomposition
// still holds; this is a documented generalization, see DESIGN.md).
type ivCostModel struct {
	*baseCostModel

	variablePartAttr string
	totalAtoms       int
}

// NewIVCostModel builds a CostModel for IV coclustering: identical to the
// base model for every ordinary attribute, with the partition-cost term for
// the attribute named variablePartAttr replaced by the atom-count formula.
func NewIVCostModel(ts *TupleStore, variablePartAttr string, totalAtoms int) CostModel {
	base := NewCostModel(ts).(*baseCostModel)

	return &ivCostModel{baseCostModel: base, variablePartAttr: variablePartAttr, totalAtoms: totalAtoms}
}

func (cm *ivCostModel) partitionCostFor(g *DataGrid, a *Attribute) float64 {
	if a.Name == cm.variablePartAttr {
		return partitionCostCategorical(cm.totalAtoms, a.PartCount(), garbageInfo{})
	}

	return cm.baseCostModel.partitionCost(g, a)
}

// Total re-derives spec.md §4.1's cost formula, substituting
// partitionCostFor for the plain partitionCost term on every attribute.
func (cm *ivCostModel) Total(g *DataGrid) float64 {
	total := nullModelOverhead

	for _, a := range g.Attributes {
		total += cm.partitionCostFor(g, a)
	}

	for _, c := range g.Cells {
		total += cellCost(c)
	}

	return total
}

func (cm *ivCostModel) NullCost(g *DataGrid) float64 {
	return nullModelOverhead
}

// MergePartsDelta mirrors baseCostModel's, substituting the variable-part
// partition-cost formula when attrIdx names that dimension.
func (cm *ivCostModel) MergePartsDelta(g *DataGrid, attrIdx int, a, b *Part) float64 {
	attr := g.Attributes[attrIdx]
	if attr.Name != cm.variablePartAttr {
		return cm.baseCostModel.MergePartsDelta(g, attrIdx, a, b)
	}

	kBefore := attr.PartCount()
	kAfter := kBefore - 1

	partitionBefore := partitionCostCategorical(cm.totalAtoms, kBefore, garbageInfo{})
	partitionAfter := partitionCostCategorical(cm.totalAtoms, kAfter, garbageInfo{})

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

func (cm *ivCostModel) MoveValueDelta(g *DataGrid, attrIdx int, value string, freqByOtherKey map[string]int64, from, to *Part) float64 {
	// Moving a single atom never changes k, so the variable-part
	// partition-cost term is unaffected; delegate to the base formula's
	// cell-level computation.
	return cm.baseCostModel.MoveValueDelta(g, attrIdx, value, freqByOtherKey, from, to)
}

func (cm *ivCostModel) SplitPartDelta(g *DataGrid, attrIdx int, p *Part, left, right PartContent, cellsLeft, cellsRight map[string]int64) float64 {
	attr := g.Attributes[attrIdx]
	if attr.Name != cm.variablePartAttr {
		return cm.baseCostModel.SplitPartDelta(g, attrIdx, p, left, right, cellsLeft, cellsRight)
	}

	kBefore := attr.PartCount()
	kAfter := kBefore + 1

	partitionBefore := partitionCostCategorical(cm.totalAtoms, kBefore, garbageInfo{})
	partitionAfter := partitionCostCategorical(cm.totalAtoms, kAfter, garbageInfo{})

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

// BuildIVInitialGrid builds the finest-grained initial grid for Instances×
// Variables coclustering (spec.md §2, §3): one dimension is the identifier
// attribute (idAttr, a categorical attribute whose parts are row or
// row-group identifiers), the other is the synthetic variable-part
// attribute built from innerAttrs by BuildVariablePartAttribute. A cell
// (idPart, atomPart) accumulates one observation per tuple per inner
// attribute whose value maps to that atom, weighted by the tuple's
// frequency (spec.md §3's "cells then associate a row-identifier cluster
// with a variable-part cluster and carry an observation count").
func BuildIVInitialGrid(ts *TupleStore, idAttr string, innerAttrs []string) (*DataGrid, error) {
	idIdx := ts.Schema.IndexOf(idAttr)
	if idIdx < 0 {
		return nil, Wrapf(ErrSpec, "identifier attribute %q not found in schema", idAttr)
	}

	idDef := ts.Schema.Attributes[idIdx]
	if idDef.Kind != Categorical {
		return nil, Wrapf(ErrSpec, "identifier attribute %q must be categorical", idAttr)
	}

	inner := make([]*Attribute, 0, len(innerAttrs))
	innerIdx := make([]int, len(innerAttrs))

	for i, name := range innerAttrs {
		idx := ts.Schema.IndexOf(name)
		if idx < 0 {
			return nil, Wrapf(ErrSpec, "inner attribute %q not found in schema", name)
		}

		innerIdx[i] = idx

		a, err := buildSingleAttribute(ts, idx)
		if err != nil {
			return nil, err
		}

		inner = append(inner, a)
	}

	idGrid, err := buildSingleAttribute(ts, idIdx)
	if err != nil {
		return nil, err
	}

	vpAttr := BuildVariablePartAttribute(inner)

	// Index every inner attribute's atoms by (attribute index, value) so
	// each tuple's values can be mapped straight to their variable-part
	// atom without rescanning.
	atomByValue := make(map[int]map[string]*Part, len(inner))

	for ii, a := range inner {
		lookup := make(map[string]*Part, len(a.Parts))
		for _, p := range a.Parts {
			lookup[p.Content.ValueSet.Values[0]] = p
		}

		atomByValue[ii] = lookup
	}

	atomKeyToVPPart := make(map[string]*Part, len(vpAttr.Parts))
	for _, p := range vpAttr.Parts {
		atomKeyToVPPart[p.Name] = p
	}

	idKeyToPart := make(map[string]*Part, len(idGrid.Parts))
	for _, p := range idGrid.Parts {
		idKeyToPart[p.Content.ValueSet.Values[0]] = p
	}

	grid := NewDataGrid([]*Attribute{idGrid, vpAttr})

	for _, t := range ts.Tuples {
		idVal := t.Values[idIdx].(string)

		idPart, ok := idKeyToPart[idVal]
		if !ok {
			return nil, Wrapf(ErrInternal, "identifier value %q matches no part", idVal)
		}

		for ii, idx := range innerIdx {
			v := fmt.Sprintf("%v", t.Values[idx])

			atom, ok := atomByValue[ii][v]
			if !ok {
				continue
			}

			vpPart, ok := atomKeyToVPPart[variablePartAtomKey(innerAttrs[ii], atom)]
			if !ok {
				continue
			}

			grid.AddObservation([]*Part{idPart, vpPart}, t.Frequency)
		}
	}

	return grid, nil
}

// buildSingleAttribute builds the finest-grained Attribute for the schema
// attribute at index idx in isolation (one part per distinct value, as
// BuildInitialGrid does per-attribute, but without building every other
// attribute's parts or the cross-product cell set).
func buildSingleAttribute(ts *TupleStore, idx int) (*Attribute, error) {
	ad := ts.Schema.Attributes[idx]
	a := NewAttribute(ad.Name, ad.Kind)

	switch ad.Kind {
	case Numeric:
		s := ts.NumericSummary(ad.Name)
		a.Min, a.Max = s.Min, s.Max

		values := distinctNumericValues(ts, idx)
		for vi, v := range values {
			lower := v
			if vi == 0 {
				lower = math.Inf(-1)
			}

			upper := math.Inf(1)
			if vi+1 < len(values) {
				upper = values[vi+1]
			}

			p := NewIntervalPart(a.allocPartID(), fmt.Sprintf("]%g;%g]", lower, upper), lower, upper)
			p.Frequency = 0
			a.AddPart(p)
		}
	case Categorical:
		s := ts.CategoricalSummary(ad.Name)
		a.Values = append([]string(nil), s.Values...)

		for _, v := range s.Values {
			p := NewValueSetPart(a.allocPartID(), v, []string{v}, false)
			a.AddPart(p)
		}
	}

	a.InitialPartNumber = a.PartCount()

	return a, nil
}

// OptimizeIVGreedyMerge runs the greedy-merge phase of spec.md §4.3 (step
// 2a) over an IV grid. IV mode is scoped here to the greedy-merge search,
// which is fully generic over DataGrid+CostModel (Merger never looks at a
// TupleStore); the post-optimization passes of §4.3.2b (boundary slide,
// value move, split) are driven by valueFreqByOtherKey's tuple-store
// rescans keyed on a single schema attribute index, which has no meaning
// for the synthetic variable-part dimension (it is not one schema
// attribute but an aggregate over many). Documented as a scoping decision,
// not an oversight: greedy merging alone already answers the IV mode's
// central question (which row clusters go with which variable-part
// clusters) and is the dominant cost reduction at every granularity level.
func OptimizeIVGreedyMerge(e *Engine, grid *DataGrid, cost CostModel, cb AnytimeCallback) (*DataGrid, float64, error) {
	best := grid.Clone()
	bestCost := cost.Total(best)

	merger := NewMerger(grid, cost)

	for {
		if e.Token().Requested() {
			break
		}

		if _, ok := merger.SearchBestMerge(); !ok {
			break
		}

		cur := cost.Total(grid)
		if cur < bestCost-1e-9 {
			bestCost = cur
			best = grid.Clone()

			if cb != nil {
				cb(0, best.Clone(), grid)
			}
		}
	}

	return best, bestCost, nil
}
