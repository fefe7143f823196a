package coclust

// attribute.go implements Attribute (spec.md §3): a named participant of
// the grid, typed numeric or categorical, carrying its parts and (after
// optimization) its dendrogram root.

// Attribute is one participating variable of the coclustering.
type Attribute struct {
	Name string
	Kind AttributeKind
	Parts []*Part

	// InitialPartNumber is the part count of the finest-grained initial
	// grid this attribute started from (original_source
	// CCHDGAttribute::GetInitialPartNumber, supplemented into SPEC_FULL).
	InitialPartNumber int

	// Min/Max are the numeric bounds copied from the tuple store's
	// descriptive stats (spec.md §4.4); zero value for categorical
	// attributes.
	Min, Max float64

	// Values is the full observed value domain for a categorical
	// attribute, in first-seen order (used by the typicality pass).
	Values []string

	// Description is free-text a caller may attach to the attribute,
	// carried onto the report (original_source CCHDGAttribute
	// GetDescription, supplemented into SPEC_FULL).
	Description string

	// hierarchy is set once the hierarchy builder runs (nil before).
	hierarchy *Hierarchy

	nextPartID int
}

// NewAttribute creates an empty Attribute of the given name and kind.
func NewAttribute(name string, kind AttributeKind) *Attribute {
	return &Attribute{Name: name, Kind: kind}
}

// PartCount returns the current number of parts.
func (a *Attribute) PartCount() int {
	return len(a.Parts)
}

// allocPartID returns the next unique part ID for this attribute.
func (a *Attribute) allocPartID() int {
	id := a.nextPartID
	a.nextPartID++

	return id
}

// AddPart appends p to the attribute's part list.
func (a *Attribute) AddPart(p *Part) {
	a.Parts = append(a.Parts, p)
}

// RemovePart removes p from the attribute's part list (swap-delete; part
// order only matters for numeric attributes, which is handled by the
// caller re-sorting after a merge).
func (a *Attribute) RemovePart(p *Part) {
	for i, pp := range a.Parts {
		if pp == p {
			a.Parts[i] = a.Parts[len(a.Parts)-1]
			a.Parts = a.Parts[:len(a.Parts)-1]

			return
		}
	}
}

// Hierarchy returns the attribute's dendrogram, or nil if not yet built.
func (a *Attribute) Hierarchy() *Hierarchy {
	return a.hierarchy
}
