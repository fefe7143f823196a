package coclust

// datagrid.go implements the data grid (spec.md §3-4.2): an ordered list of
// attributes plus the cell set, hash-indexed by part-tuple and
// doubly-reachable from each participating part.

import "sort"

// DataGrid is the joint partition of one or more attributes: a concrete
// partition state with a hash-keyed, non-empty cell set.
type DataGrid struct {
	Attributes []*Attribute
	Cells      map[string]*Cell
	N          int64
}

// NewDataGrid creates an empty grid over attrs with no cells.
func NewDataGrid(attrs []*Attribute) *DataGrid {
	return &DataGrid{Attributes: attrs, Cells: make(map[string]*Cell)}
}

// AttributeIndex returns the position of the named attribute, or -1.
func (g *DataGrid) AttributeIndex(name string) int {
	for i, a := range g.Attributes {
		if a.Name == name {
			return i
		}
	}

	return -1
}

// PartCounts returns the per-attribute part-count projection.
func (g *DataGrid) PartCounts() []int {
	counts := make([]int, len(g.Attributes))
	for i, a := range g.Attributes {
		counts[i] = a.PartCount()
	}

	return counts
}

// IsInformative reports whether at least 2 attributes have more than one
// part (spec.md §3).
func (g *DataGrid) IsInformative() bool {
	n := 0
	for _, a := range g.Attributes {
		if a.PartCount() > 1 {
			n++
		}
	}

	return n >= 2
}

// getOrCreateCell returns the cell for parts, creating it (with frequency 0)
// if absent, and wiring it into each part's Cells list.
func (g *DataGrid) getOrCreateCell(parts []*Part) *Cell {
	key := cellKey(parts)

	if c, ok := g.Cells[key]; ok {
		return c
	}

	c := &Cell{Parts: append([]*Part(nil), parts...)}
	g.Cells[key] = c

	for _, p := range parts {
		p.addCell(c)
	}

	return c
}

// AddObservation adds freq observations to the cell identified by parts,
// creating the cell if necessary, and updates the grid total.
func (g *DataGrid) AddObservation(parts []*Part, freq int64) {
	c := g.getOrCreateCell(parts)
	c.Frequency += freq
	for _, p := range parts {
		p.Frequency += freq
	}

	g.N += freq
}

// removeCell deletes c from the grid's index and detaches it from every
// part it touches, without adjusting part frequencies (the caller decides
// whether the removal represents an actual loss of observations or a
// structural change, e.g. during a merge's cell reconciliation, where the
// frequency is being folded into a different cell rather than lost).
func (g *DataGrid) removeCell(c *Cell) {
	delete(g.Cells, cellKey(c.Parts))

	for _, p := range c.Parts {
		p.removeCell(c)
	}
}

// Clone deep-copies the grid: new Attribute/Part/Cell values with the same
// IDs and content, suitable for handing to the anytime callback (spec.md §5:
// "always via deep copy").
func (g *DataGrid) Clone() *DataGrid {
	attrs := make([]*Attribute, len(g.Attributes))
	partByOldID := make(map[*Part]*Part)

	for ai, a := range g.Attributes {
		na := &Attribute{
			Name:              a.Name,
			Kind:              a.Kind,
			InitialPartNumber: a.InitialPartNumber,
			Min:               a.Min,
			Max:               a.Max,
			Values:            append([]string(nil), a.Values...),
			Description:       a.Description,
			nextPartID:        a.nextPartID,
		}

		na.Parts = make([]*Part, len(a.Parts))

		for pi, p := range a.Parts {
			np := &Part{
				ID:        p.ID,
				Name:      p.Name,
				Content:   p.Content,
				Frequency: p.Frequency,
			}
			na.Parts[pi] = np
			partByOldID[p] = np
		}

		attrs[ai] = na
	}

	ng := &DataGrid{Attributes: attrs, Cells: make(map[string]*Cell, len(g.Cells)), N: g.N}

	for key, c := range g.Cells {
		newParts := make([]*Part, len(c.Parts))
		for i, p := range c.Parts {
			newParts[i] = partByOldID[p]
		}

		nc := &Cell{Parts: newParts, Frequency: c.Frequency}
		ng.Cells[key] = nc

		for _, p := range newParts {
			p.Cells = append(p.Cells, nc)
		}
	}

	return ng
}

// SortNumericParts sorts a numeric attribute's parts by interval lower
// bound, restoring the invariant that merges/splits may disturb.
func (a *Attribute) SortNumericParts() {
	if a.Kind != Numeric {
		return
	}

	sort.Slice(a.Parts, func(i, j int) bool {
		return a.Parts[i].Content.Interval.Lower < a.Parts[j].Content.Interval.Lower
	})
}

// checkCellConservation verifies P1: for every attribute, the sum of part
// frequencies equals N. Used by tests and checked by the optimizer at the
// end of every granularity level.
func (g *DataGrid) checkCellConservation() error {
	for _, a := range g.Attributes {
		var sum int64
		for _, p := range a.Parts {
			sum += p.Frequency
		}

		if sum != g.N {
			return Wrapf(ErrInternal, "attribute %s: part frequencies sum to %d, want %d", a.Name, sum, g.N)
		}
	}

	return nil
}
