package coclust

// part.go implements Part and its tagged-variant content (spec.md §3, §9):
// a numeric attribute's part is a half-open interval, a categorical
// attribute's part is a value-set with an optional catch-all. Grounded on
// invertedv-seafan's FRole-tagged FType (fields.go) for the "one struct,
// content varies by kind" shape.

import (
	"math"
	"sort"
)

// Interval is the PartContent of a numeric Part: a half-open interval
// [Lower, Upper), Lower/Upper may be ±Inf.
type Interval struct {
	Lower, Upper float64
}

// Contains reports whether v falls in the half-open interval, with the
// final part of an attribute treated as closed on the right (so the
// attribute's maximum observed value is included).
func (iv Interval) Contains(v float64, isLastPart bool) bool {
	if v < iv.Lower {
		return false
	}

	if isLastPart {
		return v <= iv.Upper || math.IsInf(iv.Upper, 1)
	}

	return v < iv.Upper
}

// ValueSet is the PartContent of a categorical Part: an ordered sequence of
// symbols, optionally with a catch-all marker for values unseen at training
// time (spec.md §3).
type ValueSet struct {
	Values      []string
	HasCatchAll bool
}

// Contains reports whether v is one of the value-set's listed values.
// HasCatchAll is not consulted: a value matching nothing returns false.
func (vs ValueSet) Contains(v string) bool {
	for _, s := range vs.Values {
		if s == v {
			return true
		}
	}

	return false
}

// PartContent is the tagged variant holding either an Interval or a
// ValueSet; exactly one of the two is meaningful, selected by the owning
// Attribute's Kind (spec.md §9's "heterogeneous part content" design note).
type PartContent struct {
	Kind     AttributeKind
	Interval Interval
	ValueSet ValueSet
}

// Part is a non-empty subset of an attribute's value domain (spec.md §3).
// Cells referencing this part are held in Cells, acting as the "doubly
// linked list per part" of spec.md §4.2 — modeled here as a slice, since Go
// has no intrusive-list primitive; insertion is O(1) amortized, removal is
// a linear search for the cell followed by a swap-delete.
type Part struct {
	ID        int
	Name      string
	Content   PartContent
	Frequency int64
	Cells     []*Cell

	// candidates holds this part's live merge-candidate handles, so
	// invalidating them on a merge is O(degree) rather than O(heap size)
	// (spec.md §9's "priority queue + back-references" design note).
	candidates []*mergeCandidate
}

// NewIntervalPart builds a numeric Part.
func NewIntervalPart(id int, name string, lower, upper float64) *Part {
	return &Part{
		ID:      id,
		Name:    name,
		Content: PartContent{Kind: Numeric, Interval: Interval{Lower: lower, Upper: upper}},
	}
}

// NewValueSetPart builds a categorical Part.
func NewValueSetPart(id int, name string, values []string, hasCatchAll bool) *Part {
	return &Part{
		ID:      id,
		Name:    name,
		Content: PartContent{Kind: Categorical, ValueSet: ValueSet{Values: values, HasCatchAll: hasCatchAll}},
	}
}

// addCell appends c to the part's cell list. Frequency bookkeeping is the
// caller's responsibility (AddObservation, or a merge's cell reconciliation)
// since a cell can be attached to a part before its frequency is known.
func (p *Part) addCell(c *Cell) {
	p.Cells = append(p.Cells, c)
}

// removeCell detaches c from the part's cell list (swap-delete) without
// touching Frequency; the caller decides whether the part's total should
// change (it shouldn't, for a merge's cell reconciliation; it should, for an
// actual observation removal).
func (p *Part) removeCell(c *Cell) {
	for i, cc := range p.Cells {
		if cc == c {
			p.Cells[i] = p.Cells[len(p.Cells)-1]
			p.Cells = p.Cells[:len(p.Cells)-1]

			return
		}
	}
}

// mergeInto fuses src into dst (the part with the larger cell count should
// be dst, per spec.md §4.2 "the smaller-cell-count part is drained into the
// larger"), unioning their value-sets/intervals. Cells are not touched here;
// the caller (merger.go) reconciles colliding cells.
func mergeInto(dst, src *Part) {
	switch dst.Content.Kind {
	case Numeric:
		lo := math.Min(dst.Content.Interval.Lower, src.Content.Interval.Lower)
		hi := math.Max(dst.Content.Interval.Upper, src.Content.Interval.Upper)
		dst.Content.Interval = Interval{Lower: lo, Upper: hi}
	case Categorical:
		merged := append(append([]string(nil), dst.Content.ValueSet.Values...), src.Content.ValueSet.Values...)
		sort.Strings(merged)
		dst.Content.ValueSet = ValueSet{
			Values:      merged,
			HasCatchAll: dst.Content.ValueSet.HasCatchAll || src.Content.ValueSet.HasCatchAll,
		}
	}

	dst.Frequency += src.Frequency
}
