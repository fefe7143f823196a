package coclust

// optimizer.go implements the granularity-schedule search of spec.md §4.3:
// at each granularity level, greedily merge parts until no negative-delta
// merge remains, then run the fixed-point post-optimization passes
// (boundary slide, value move, split), evaluating the anytime callback on
// every improvement. Grounded on invertedv-seafan's training-loop shape
// (nn.go's Fit: epoch loop + early-stop + callback) generalized from
// gradient epochs to granularity levels.

import (
	"math"
	"time"
)

// AnytimeCallback is invoked on every cost improvement during optimization,
// with a deep-copied snapshot of the improved grid and the granularized
// grid it was derived from (spec.md §4.3.c, §4).
type AnytimeCallback func(level int, snapshot *DataGrid, granularized *DataGrid)

// OptimizeResult is the outcome of one Optimize call.
type OptimizeResult struct {
	Best     *DataGrid
	BestCost float64
	NullCost float64
	Levels   int
}

// Optimize runs the granularity schedule described in spec.md §4.3 and
// returns the best grid found. If cb is non-nil it is called on every
// strict cost improvement.
func Optimize(e *Engine, ts *TupleStore, cost CostModel, cb AnytimeCallback) (*OptimizeResult, error) {
	partCounts := make([]int, len(ts.Schema.Attributes))
	for i, ad := range ts.Schema.Attributes {
		switch ad.Kind {
		case Numeric:
			partCounts[i] = len(distinctNumericValues(ts, i))
		case Categorical:
			if s := ts.CategoricalSummary(ad.Name); s != nil {
				partCounts[i] = len(s.Values)
			}
		}
	}

	if err := e.checkMemoryBudget(estimateInitialGrid(partCounts, len(ts.Tuples))); err != nil {
		e.Warnf("memory", "%v: reporting not informative", err)

		return &OptimizeResult{Best: nil, NullCost: nullModelOverhead}, nil
	}

	initial, err := BuildInitialGrid(ts)
	if err != nil {
		return nil, err
	}

	nullCost := cost.NullCost(initial)

	maxG := int(math.Ceil(math.Log2(math.Max(float64(ts.N), 2))))

	deadline := time.Time{}
	if e.timeBudgetSeconds > 0 {
		deadline = e.now().Add(time.Duration(e.timeBudgetSeconds * float64(time.Second)))
	}

	var best *DataGrid
	bestCost := math.Inf(1)
	level := 0

	for g := 0; g <= maxG; g++ {
		if !deadline.IsZero() && e.now().After(deadline) {
			break
		}

		if e.Token().Requested() {
			break
		}

		grid, err := Granularize(ts, g)
		if err != nil {
			return nil, err
		}

		merger := NewMerger(grid, cost)

		if err := e.runGranularityLevel(ts, grid, merger, cost); err != nil {
			e.Warnf("optimizer", "post-optimization at granularity %d failed: %v; keeping best-so-far", g, err)

			break
		}

		level = g

		cur := cost.Total(grid)
		if cur < bestCost-1e-9 {
			bestCost = cur
			best = grid.Clone()

			if cb != nil {
				cb(g, best.Clone(), grid)
			}
		}

		if e.Token().Requested() {
			break
		}
	}

	// Final exhaustive post-optimization with no part-count cap (spec.md
	// §4.3 step 3), starting from the finest-grained initial grid.
	if !e.Token().Requested() {
		finalGrid, err := BuildInitialGrid(ts)
		if err != nil {
			return nil, err
		}

		merger := NewMerger(finalGrid, cost)
		if err := e.runGranularityLevel(ts, finalGrid, merger, cost); err == nil {
			cur := cost.Total(finalGrid)
			if cur < bestCost-1e-9 {
				bestCost = cur
				best = finalGrid.Clone()
				level = maxG + 1

				if cb != nil {
					cb(level, best.Clone(), finalGrid)
				}
			}
		}
	}

	if best == nil {
		best = initial
		bestCost = cost.Total(initial)
	}

	return &OptimizeResult{Best: best, BestCost: bestCost, NullCost: nullCost, Levels: level}, nil
}

// now returns the current time via the engine's clock indirection so the
// rest of the package never calls time.Now() directly (keeps a single
// substitution point for deterministic tests, spec.md P6).
func (e *Engine) now() time.Time {
	return time.Now()
}

// runGranularityLevel performs the greedy-merge step followed by the
// fixed-point post-optimization passes (spec.md §4.3.2a-b), checking
// cancellation between moves.
func (e *Engine) runGranularityLevel(ts *TupleStore, grid *DataGrid, merger *Merger, cost CostModel) error {
	for {
		_, ok := merger.SearchBestMerge()
		if !ok {
			break
		}

		if e.Token().Requested() {
			return nil
		}
	}

	for {
		improved := false

		for ai, attr := range grid.Attributes {
			if e.Token().Requested() {
				return nil
			}

			switch attr.Kind {
			case Numeric:
				if boundarySlidePass(grid, ts, cost, ai) {
					improved = true
				}
			case Categorical:
				if valueMovePass(grid, ts, cost, ai) {
					improved = true
				}
			}

			if splitPass(grid, ts, cost, ai) {
				improved = true
			}
		}

		if !improved {
			break
		}

		// Re-seed the merger so newly split/shrunk parts have live merge
		// candidates, and run another greedy-merge round: a split or value
		// move can open up a new negative-delta merge (spec.md §4.3's
		// fixed-point passes interleave with merging).
		*merger = *NewMerger(grid, cost)

		for {
			_, ok := merger.SearchBestMerge()
			if !ok {
				break
			}
		}
	}

	return grid.checkCellConservation()
}

// valueBreakdown is one observed value's frequency, broken down by the
// cross-product key of every attribute except the one being moved.
type valueBreakdown struct {
	otherParts []*Part
	freq       int64
}

// valueFreqByOtherKey scans ts's tuples for the attribute at attrIdx,
// grouping the ones accepted by matches by their current assignment on
// every other attribute. Used by boundary slide, value move and split to
// compute exact delta-costs and to commit them by touching only the
// affected cells.
func valueFreqByOtherKey(g *DataGrid, ts *TupleStore, attrIdx int, matches func(v any) bool) (map[string]*valueBreakdown, int64) {
	idx := make([]int, len(g.Attributes))
	for i, a := range g.Attributes {
		idx[i] = ts.Schema.IndexOf(a.Name)
	}

	out := make(map[string]*valueBreakdown)

	var total int64

	for _, t := range ts.Tuples {
		if !matches(t.Values[idx[attrIdx]]) {
			continue
		}

		otherParts := make([]*Part, 0, len(g.Attributes)-1)

		for i, a := range g.Attributes {
			if i == attrIdx {
				continue
			}

			p, err := assignPart(a, t.Values[idx[i]])
			if err != nil {
				continue
			}

			otherParts = append(otherParts, p)
		}

		key := cellKey(otherParts)

		b, ok := out[key]
		if !ok {
			b = &valueBreakdown{otherParts: otherParts}
			out[key] = b
		}

		b.freq += t.Frequency
		total += t.Frequency
	}

	return out, total
}

// commitValueMove transfers the observations described by breakdown from
// "from" to "to" at attrIdx, updating only the touched cells.
func commitValueMove(g *DataGrid, attrIdx int, breakdown map[string]*valueBreakdown, total int64, from, to *Part) {
	for _, b := range breakdown {
		oldParts := withPartAt(b.otherParts, attrIdx, from)
		if oc, ok := g.Cells[cellKey(oldParts)]; ok {
			oc.Frequency -= b.freq
			if oc.Frequency <= 0 {
				g.removeCell(oc)
			}
		}

		newParts := withPartAt(b.otherParts, attrIdx, to)
		nc := g.getOrCreateCell(newParts)
		nc.Frequency += b.freq
	}

	from.Frequency -= total
	to.Frequency += total
}

// withPartAt returns a copy of otherParts (which excludes attrIdx) with p
// inserted back at position attrIdx.
func withPartAt(otherParts []*Part, attrIdx int, p *Part) []*Part {
	out := make([]*Part, len(otherParts)+1)
	copy(out, otherParts[:attrIdx])
	out[attrIdx] = p
	copy(out[attrIdx+1:], otherParts[attrIdx:])

	return out
}

// boundarySlidePass tries, for every adjacent pair of interval parts of the
// numeric attribute at attrIdx, moving the single smallest distinct value
// of the right part into the left part, committing the move if it strictly
// improves cost (spec.md §4.3.2.b "Boundary slide").
func boundarySlidePass(g *DataGrid, ts *TupleStore, cost CostModel, attrIdx int) bool {
	attr := g.Attributes[attrIdx]
	if attr.Kind != Numeric || len(attr.Parts) < 2 {
		return false
	}

	attr.SortNumericParts()

	schemaIdx := ts.Schema.IndexOf(attr.Name)
	values := distinctNumericValues(ts, schemaIdx)

	improved := false

	for i := 0; i+1 < len(attr.Parts); i++ {
		left, right := attr.Parts[i], attr.Parts[i+1]

		pos := -1
		for vi, v := range values {
			if v >= right.Content.Interval.Lower && (vi == 0 || values[vi-1] < right.Content.Interval.Lower) {
				pos = vi
				break
			}
		}

		if pos < 0 || pos+1 >= len(values) || values[pos+1] >= right.Content.Interval.Upper {
			// Right part holds at most one distinct value; moving it would
			// empty the part, which is the merger's job, not the slide's.
			continue
		}

		candidate := values[pos]
		newBoundary := values[pos+1]

		matches := func(v any) bool { return v.(float64) == candidate }
		breakdown, total := valueFreqByOtherKey(g, ts, attrIdx, matches)

		if total == 0 {
			continue
		}

		delta := cost.MoveValueDelta(g, attrIdx, "", freqOnly(breakdown), right, left)
		if delta >= 0 {
			continue
		}

		commitValueMove(g, attrIdx, breakdown, total, right, left)
		left.Content.Interval.Upper = newBoundary
		right.Content.Interval.Lower = newBoundary
		improved = true
	}

	return improved
}

// valueMovePass tries, for every observed value of the categorical
// attribute at attrIdx, moving it to every other group and commits the
// best strictly-negative-delta move (spec.md §4.3.2.b "Value move").
func valueMovePass(g *DataGrid, ts *TupleStore, cost CostModel, attrIdx int) bool {
	attr := g.Attributes[attrIdx]
	if attr.Kind != Categorical || len(attr.Parts) < 2 {
		return false
	}

	improved := false

	for _, value := range attr.Values {
		var from *Part
		for _, p := range attr.Parts {
			if p.Content.ValueSet.Contains(value) {
				from = p
				break
			}
		}

		if from == nil {
			continue
		}

		matches := func(v any) bool { return v.(string) == value }
		breakdown, total := valueFreqByOtherKey(g, ts, attrIdx, matches)

		if total == 0 {
			continue
		}

		bestDelta := 0.0

		var bestTo *Part

		for _, to := range attr.Parts {
			if to == from {
				continue
			}

			delta := cost.MoveValueDelta(g, attrIdx, value, freqOnly(breakdown), from, to)
			if delta < bestDelta {
				bestDelta = delta
				bestTo = to
			}
		}

		if bestTo == nil {
			continue
		}

		commitValueMove(g, attrIdx, breakdown, total, from, bestTo)
		from.Content.ValueSet.Values = removeString(from.Content.ValueSet.Values, value)
		bestTo.Content.ValueSet.Values = append(bestTo.Content.ValueSet.Values, value)
		improved = true
	}

	return improved
}

// splitPass tries, for every part of the attribute at attrIdx, a single
// bipartition of its content and commits it if it strictly improves cost
// (spec.md §4.3.2.b "Split").
func splitPass(g *DataGrid, ts *TupleStore, cost CostModel, attrIdx int) bool {
	attr := g.Attributes[attrIdx]

	for _, p := range append([]*Part(nil), attr.Parts...) {
		left, right, ok := bipartition(p)
		if !ok {
			continue
		}

		leftMatches := membershipTest(attr.Kind, left)
		rightMatches := membershipTest(attr.Kind, right)

		leftBreak, leftTotal := valueFreqByOtherKey(g, ts, attrIdx, leftMatches)
		rightBreak, rightTotal := valueFreqByOtherKey(g, ts, attrIdx, rightMatches)

		if leftTotal == 0 || rightTotal == 0 {
			continue
		}

		delta := cost.SplitPartDelta(g, attrIdx, p, left, right, freqOnly(leftBreak), freqOnly(rightBreak))
		if delta >= 0 {
			continue
		}

		leftPart := &Part{ID: attr.allocPartID(), Name: p.Name + "a", Content: left}
		rightPart := &Part{ID: attr.allocPartID(), Name: p.Name + "b", Content: right}

		attr.RemovePart(p)
		attr.AddPart(leftPart)
		attr.AddPart(rightPart)
		attr.SortNumericParts()

		for _, c := range append([]*Cell(nil), p.Cells...) {
			g.removeCell(c)
		}

		for _, b := range leftBreak {
			parts := withPartAt(b.otherParts, attrIdx, leftPart)
			c := g.getOrCreateCell(parts)
			c.Frequency += b.freq
		}

		for _, b := range rightBreak {
			parts := withPartAt(b.otherParts, attrIdx, rightPart)
			c := g.getOrCreateCell(parts)
			c.Frequency += b.freq
		}

		leftPart.Frequency = leftTotal
		rightPart.Frequency = rightTotal

		return true
	}

	return false
}

// bipartition proposes a two-way split of p's content: the lower/upper half
// of an interval (by midpoint), or the sorted values split in half for a
// value-set. Returns ok=false for parts too small to split.
func bipartition(p *Part) (left, right PartContent, ok bool) {
	switch p.Content.Kind {
	case Numeric:
		lo, hi := p.Content.Interval.Lower, p.Content.Interval.Upper
		if math.IsInf(lo, -1) || math.IsInf(hi, 1) || lo >= hi {
			return PartContent{}, PartContent{}, false
		}

		mid := lo + (hi-lo)/2

		left = PartContent{Kind: Numeric, Interval: Interval{Lower: lo, Upper: mid}}
		right = PartContent{Kind: Numeric, Interval: Interval{Lower: mid, Upper: hi}}

		return left, right, true
	case Categorical:
		vals := append([]string(nil), p.Content.ValueSet.Values...)
		if len(vals) < 2 {
			return PartContent{}, PartContent{}, false
		}

		mid := len(vals) / 2

		left = PartContent{Kind: Categorical, ValueSet: ValueSet{Values: vals[:mid]}}
		right = PartContent{Kind: Categorical, ValueSet: ValueSet{Values: vals[mid:]}}

		return left, right, true
	default:
		return PartContent{}, PartContent{}, false
	}
}

// membershipTest builds the value-matching predicate valueFreqByOtherKey
// needs for one side of a proposed bipartition.
func membershipTest(kind AttributeKind, content PartContent) func(v any) bool {
	switch kind {
	case Numeric:
		return func(v any) bool {
			f := v.(float64)
			return f >= content.Interval.Lower && f < content.Interval.Upper
		}
	case Categorical:
		return func(v any) bool { return content.ValueSet.Contains(v.(string)) }
	default:
		return func(v any) bool { return false }
	}
}

// freqOnly reduces a valueBreakdown map to the plain frequency map the
// CostModel delta helpers expect.
func freqOnly(breakdown map[string]*valueBreakdown) map[string]int64 {
	out := make(map[string]int64, len(breakdown))
	for k, b := range breakdown {
		out[k] = b.freq
	}

	return out
}

// removeString returns vals with the first occurrence of s removed.
func removeString(vals []string, s string) []string {
	for i, v := range vals {
		if v == s {
			return append(vals[:i], vals[i+1:]...)
		}
	}

	return vals
}
