package coclust

// gridbuild.go builds data grids from a TupleStore: the finest-grained
// initial grid, the granularity-capped coarsening of it (spec.md §4.3.1),
// and the cell-rebuild helper both of those use to derive cells from the
// tuples.

import (
	"fmt"
	"math"
	"sort"
)

// assignPart returns the part of attr that value belongs to, following the
// half-open-interval / value-set-with-catch-all rules of spec.md §3. isLast
// marks the part with the greatest upper bound, which is closed on the
// right so the attribute's maximum value is always assigned somewhere.
func assignPart(attr *Attribute, value any) (*Part, error) {
	switch attr.Kind {
	case Numeric:
		v := value.(float64)

		lastIdx := 0
		for i, p := range attr.Parts {
			if p.Content.Interval.Upper > attr.Parts[lastIdx].Content.Interval.Upper {
				lastIdx = i
			}
		}

		for i, p := range attr.Parts {
			if p.Content.Interval.Contains(v, i == lastIdx) {
				return p, nil
			}
		}

		return nil, Wrapf(ErrInternal, "value %v of attribute %s matches no interval part", v, attr.Name)
	case Categorical:
		v := value.(string)

		for _, p := range attr.Parts {
			if p.Content.ValueSet.Contains(v) {
				return p, nil
			}
		}

		for _, p := range attr.Parts {
			if p.Content.ValueSet.HasCatchAll {
				return p, nil
			}
		}

		return nil, Wrapf(ErrInternal, "value %q of attribute %s matches no part and no catch-all is present", v, attr.Name)
	default:
		return nil, Wrapf(ErrInternal, "unknown attribute kind for %s", attr.Name)
	}
}

// RebuildCells clears g's cell index and replays ts's tuples against the
// grid's current parts, re-deriving every cell's frequency from scratch.
// Used by BuildInitialGrid and Granularize; the post-optimization passes
// (boundary slide, value move, split) update the touched cells in place
// instead of calling it.
func RebuildCells(g *DataGrid, ts *TupleStore) error {
	for _, a := range g.Attributes {
		for _, p := range a.Parts {
			p.Cells = nil
			p.Frequency = 0
		}
	}

	g.Cells = make(map[string]*Cell)
	g.N = 0

	idx := make([]int, len(g.Attributes))
	for i, a := range g.Attributes {
		idx[i] = ts.Schema.IndexOf(a.Name)
	}

	for _, t := range ts.Tuples {
		parts := make([]*Part, len(g.Attributes))

		for i, a := range g.Attributes {
			p, err := assignPart(a, t.Values[idx[i]])
			if err != nil {
				return err
			}

			parts[i] = p
		}

		g.AddObservation(parts, t.Frequency)
	}

	return nil
}

// BuildInitialGrid builds the finest-grained initial grid from ts: one part
// per distinct numeric value, one part per distinct categorical value
// (spec.md §4.3.1's "initial grid" before granularization).
func BuildInitialGrid(ts *TupleStore) (*DataGrid, error) {
	attrs := make([]*Attribute, len(ts.Schema.Attributes))

	for i, ad := range ts.Schema.Attributes {
		a := NewAttribute(ad.Name, ad.Kind)

		switch ad.Kind {
		case Numeric:
			s := ts.NumericSummary(ad.Name)
			a.Min, a.Max = s.Min, s.Max

			values := distinctNumericValues(ts, i)
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
		attrs[i] = a
	}

	grid := NewDataGrid(attrs)
	if err := RebuildCells(grid, ts); err != nil {
		return nil, err
	}

	return grid, nil
}

// distinctNumericValues returns the sorted distinct values observed for the
// numeric attribute at schema index i.
func distinctNumericValues(ts *TupleStore, i int) []float64 {
	seen := make(map[float64]bool)

	var values []float64

	for _, t := range ts.Tuples {
		v := t.Values[i].(float64)
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}

	sort.Float64s(values)

	return values
}

// Granularize coarsens the finest-grained initial grid so each attribute
// has at most ceil(2^g) parts (spec.md §4.3.1): numeric attributes by
// equal-frequency quantile grouping, categorical attributes by hash-bucket
// pre-grouping with a catch-all collecting the tail once the domain is
// larger than the part cap.
func Granularize(ts *TupleStore, g int) (*DataGrid, error) {
	partCap := int(math.Ceil(math.Pow(2, float64(g))))

	initial, err := BuildInitialGrid(ts)
	if err != nil {
		return nil, err
	}

	for _, a := range initial.Attributes {
		if a.PartCount() <= partCap {
			continue
		}

		switch a.Kind {
		case Numeric:
			coarsenNumericEqualFrequency(a, partCap)
		case Categorical:
			coarsenCategoricalByHash(a, partCap)
		}
	}

	if err := RebuildCells(initial, ts); err != nil {
		return nil, err
	}

	return initial, nil
}

// coarsenNumericEqualFrequency groups attribute a's finest-grained interval
// parts into at most cap parts of roughly equal total frequency, preserving
// order.
func coarsenNumericEqualFrequency(a *Attribute, partCap int) {
	sort.Slice(a.Parts, func(i, j int) bool {
		return a.Parts[i].Content.Interval.Lower < a.Parts[j].Content.Interval.Lower
	})

	var total int64
	for _, p := range a.Parts {
		total += p.Frequency
	}

	target := total / int64(partCap)
	if target == 0 {
		target = 1
	}

	grouped := make([]*Part, 0, partCap)

	var cur *Part
	var curFreq int64

	for _, p := range a.Parts {
		if cur == nil {
			cur = &Part{ID: a.allocPartID(), Name: p.Name, Content: p.Content}
			curFreq = 0
		} else {
			cur.Content.Interval.Upper = p.Content.Interval.Upper
		}

		curFreq += p.Frequency

		if curFreq >= target && len(grouped) < partCap-1 {
			cur.Frequency = curFreq
			grouped = append(grouped, cur)
			cur = nil
		}
	}

	if cur != nil {
		cur.Frequency = curFreq
		grouped = append(grouped, cur)
	}

	grouped[0].Content.Interval.Lower = math.Inf(-1)
	grouped[len(grouped)-1].Content.Interval.Upper = math.Inf(1)

	a.Parts = grouped
}

// coarsenCategoricalByHash groups attribute a's finest-grained value-set
// parts into at most cap-1 hash buckets (at least 1) for large domains
// (spec.md §4.3.1); the smallest bucket is flagged as the catch-all, with
// no separate tail bucket.
func coarsenCategoricalByHash(a *Attribute, partCap int) {
	buckets := partCap - 1
	if buckets < 1 {
		buckets = 1
	}

	groups := make([][]string, buckets)

	for _, p := range a.Parts {
		v := p.Content.ValueSet.Values[0]
		h := fnv32(v) % uint32(buckets)
		groups[h] = append(groups[h], v)
	}

	newParts := make([]*Part, 0, buckets+1)

	for i, vals := range groups {
		if len(vals) == 0 {
			continue
		}

		sort.Strings(vals)
		newParts = append(newParts, NewValueSetPart(a.allocPartID(), fmt.Sprintf("group%d", i), vals, false))
	}

	// Designate the smallest group as the catch-all (garbage) group,
	// holding the rarest modalities (spec.md GLOSSARY "Garbage group").
	// costmodel.go's attributeGarbageInfo reads this flag straight off the
	// attribute's current parts, so the designation has a real partition-
	// cost effect (the extra log(k) index term and the modality-count
	// universal code length) for as long as some part carries it.
	if len(newParts) > 0 {
		smallest := 0
		for i, p := range newParts {
			if len(p.Content.ValueSet.Values) < len(newParts[smallest].Content.ValueSet.Values) {
				smallest = i
			}
		}

		newParts[smallest].Content.ValueSet.HasCatchAll = true
	}

	a.Parts = newParts
}

// fnv32 is a tiny FNV-1a hash used for deterministic, dependency-free
// value-to-bucket assignment during categorical pre-grouping.
func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)

	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}

	return h
}
