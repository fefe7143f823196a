package coclust

// hierarchy.go builds the per-attribute dendrogram (spec.md §4.4): starting
// from the optimized grid's parts, repeatedly merge the cheapest pair until
// one remains, recording each merge as an internal node. Grounded on
// original_source/CCHierarchicalDataGrid.h's CCHDGPart (dInterest,
// dHierarchicalLevel, nRank, nHierarchicalRank fields) and its
// CCHDGPartCompareLeafRank/CCHDGPartCompareHierarchicalRank comparators,
// reimplemented here as sort.Interface types over a flat arena instead of
// parent/child pointers, per spec.md §9's cyclic-owning-graphs design note.

import "sort"

// HDGPart is one node of an attribute's dendrogram: a leaf (one of the
// optimized grid's final parts) or an internal node formed by merging two
// children, referenced by arena index rather than pointer so the tree
// cannot form an owning cycle.
type HDGPart struct {
	Name string

	// Leaf is non-nil only for leaf nodes.
	Leaf *Part

	// Left/Right index into the owning Hierarchy's Nodes slice; -1 for a
	// leaf node.
	Left, Right int

	Frequency int64

	// HierarchicalLevel, Rank, HierarchicalRank and Interest are the
	// dendrogram annotations of spec.md §4.4 (original_source
	// CCHDGPart::dHierarchicalLevel/nRank/nHierachicalRank/dInterest).
	HierarchicalLevel float64
	Rank              int
	HierarchicalRank  int
	Interest          float64

	// Typicality holds, for a leaf node of a categorical attribute, the
	// per-value typicality scores of spec.md §4.4's last paragraph; nil
	// otherwise.
	Typicality map[string]float64
}

// CollapsedView is a shallower reading of a Hierarchy, naming the arena
// indices to treat as leaves at the requested depth (original_source's
// CCHDGPart::MergePart/IsPartMergeable family, supplemented into SPEC_FULL).
type CollapsedView struct {
	Depth int
	Nodes []int
}

// IsLeaf reports whether n is a leaf node.
func (n *HDGPart) IsLeaf() bool {
	return n.Left < 0 && n.Right < 0
}

// Hierarchy is one attribute's dendrogram: a flat arena of nodes plus the
// index of the root (the last node built).
type Hierarchy struct {
	Nodes []*HDGPart
	Root  int
}

// RootNode returns the dendrogram's root, or nil if the hierarchy is empty.
func (h *Hierarchy) RootNode() *HDGPart {
	if h == nil || len(h.Nodes) == 0 {
		return nil
	}

	return h.Nodes[h.Root]
}

// BuildHierarchy constructs the dendrogram for every attribute of the
// optimized grid (spec.md §4.4 steps 1-4), then runs infix renumbering
// (step 5) and typicality computation on each. C0 and costBest are the
// null-model cost and the optimized grid's cost, needed for the
// hierarchical_level formula.
func BuildHierarchy(ts *TupleStore, g *DataGrid, cost CostModel, c0, costBest float64) error {
	for ai, attr := range g.Attributes {
		h, err := buildAttributeHierarchy(g, cost, ai, c0, costBest)
		if err != nil {
			return err
		}

		attr.hierarchy = h

		renumberInfix(h, attr.Kind)

		if attr.Kind == Categorical {
			computeTypicality(ts, g, cost, ai, h)
		}
	}

	return nil
}

// buildAttributeHierarchy runs a fresh auxiliary merger over a deep copy of
// the attribute's current parts, merging the cheapest pair until one
// remains (spec.md §4.4 steps 1-3).
func buildAttributeHierarchy(g *DataGrid, cost CostModel, attrIdx int, c0, costBest float64) (*Hierarchy, error) {
	attr := g.Attributes[attrIdx]

	h := &Hierarchy{}

	leafOf := make(map[*Part]int, len(attr.Parts))

	for _, p := range attr.Parts {
		node := &HDGPart{Name: p.Name, Leaf: p, Left: -1, Right: -1, Frequency: p.Frequency, Interest: 1}
		h.Nodes = append(h.Nodes, node)
		leafOf[p] = len(h.Nodes) - 1
	}

	if len(attr.Parts) == 0 {
		return h, nil
	}

	if len(attr.Parts) == 1 {
		h.Root = 0

		return h, nil
	}

	work := g.Clone()
	merger := &Merger{grid: work, cost: cost}
	merger.seedAttribute(attrIdx, work.Attributes[attrIdx])

	denom := c0 - costBest
	if denom == 0 {
		denom = 1
	}

	costBefore := cost.Total(work)

	// nodeOf maps a live part of the working grid to its node index,
	// following ForceBestMerge's (fused, a, b) result so the mapping never
	// needs to rediscover identity after a merge.
	nodeOf := make(map[*Part]int, len(leafOf))

	for _, p := range attr.Parts {
		wp := findPartByID(work, attrIdx, p.ID)
		nodeOf[wp] = leafOf[p]
	}

	remaining := len(attr.Parts)

	for remaining > 1 {
		fused, a, b, delta, ok := merger.ForceBestMerge()
		if !ok {
			break
		}

		leftIdx, rightIdx := nodeOf[a], nodeOf[b]
		left, right := h.Nodes[leftIdx], h.Nodes[rightIdx]

		internal := &HDGPart{
			Left:      leftIdx,
			Right:     rightIdx,
			Frequency: left.Frequency + right.Frequency,
			Interest:  weightedInterest(left, right),
		}
		internal.HierarchicalLevel = clipLevel((c0 - (costBefore + delta)) / denom)
		internal.HierarchicalRank = remaining - 1

		h.Nodes = append(h.Nodes, internal)

		delete(nodeOf, a)
		delete(nodeOf, b)
		nodeOf[fused] = len(h.Nodes) - 1

		costBefore += delta
		remaining--
	}

	h.Root = len(h.Nodes) - 1

	return h, nil
}

// findPartByID returns the part with the given ID on the attribute at
// attrIdx of grid g, or nil.
func findPartByID(g *DataGrid, attrIdx, id int) *Part {
	for _, p := range g.Attributes[attrIdx].Parts {
		if p.ID == id {
			return p
		}
	}

	return nil
}

// clipLevel clips a hierarchical_level to 1 and snaps values within epsilon
// of 0 to exactly 0 (spec.md §4.4 step 2). hierarchical_level ranges over
// (-∞,1]: large negatives are a legitimate signal that a merge was actively
// harmful and are preserved, not floored.
func clipLevel(v float64) float64 {
	const epsilon = 1e-9

	if v > 1 {
		return 1
	}

	if v > -epsilon && v < epsilon {
		return 0
	}

	return v
}

// weightedInterest is the frequency-weighted average of two children's
// interests (spec.md §4.4 step 4).
func weightedInterest(a, b *HDGPart) float64 {
	total := a.Frequency + b.Frequency
	if total == 0 {
		return 0
	}

	return (a.Interest*float64(a.Frequency) + b.Interest*float64(b.Frequency)) / float64(total)
}

// renumberInfix walks the dendrogram left-subtree/self/right-subtree,
// swapping a categorical internal node's children so the higher-interest
// one (ties: higher frequency, ties: lexicographic name) comes first, and
// assigns successive Rank values during the walk (spec.md §4.4 step 5).
func renumberInfix(h *Hierarchy, kind AttributeKind) {
	if h == nil || len(h.Nodes) == 0 {
		return
	}

	next := 1

	var walk func(idx int)
	walk = func(idx int) {
		n := h.Nodes[idx]
		if n.IsLeaf() {
			n.Rank = next
			next++

			return
		}

		if kind == Categorical && !childOrderOK(h.Nodes[n.Left], h.Nodes[n.Right]) {
			n.Left, n.Right = n.Right, n.Left
		}

		walk(n.Left)
		n.Rank = next
		next++
		walk(n.Right)
	}

	walk(h.Root)
}

// childOrderOK reports whether left already precedes right under the
// ordering rule of spec.md §4.4 step 5: larger interest first, ties by
// larger frequency, ties by lexicographic name.
func childOrderOK(left, right *HDGPart) bool {
	if left.Interest != right.Interest {
		return left.Interest > right.Interest
	}

	if left.Frequency != right.Frequency {
		return left.Frequency > right.Frequency
	}

	return left.Name <= right.Name
}

// byLeafThenRank orders leaves by Rank, grounded on original_source's
// CCHDGPartCompareLeafRank (sorts leaves only, by rank).
type byLeafThenRank []*HDGPart

func (s byLeafThenRank) Len() int      { return len(s) }
func (s byLeafThenRank) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byLeafThenRank) Less(i, j int) bool {
	return s[i].Rank < s[j].Rank
}

// byHierarchicalRank orders nodes by descending HierarchicalRank (the root,
// built last, has rank 1 and sorts after every other internal node),
// grounded on original_source's
// CCHDGPartCompareHierarchicalRank.
type byHierarchicalRank []*HDGPart

func (s byHierarchicalRank) Len() int      { return len(s) }
func (s byHierarchicalRank) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byHierarchicalRank) Less(i, j int) bool {
	return s[i].HierarchicalRank > s[j].HierarchicalRank
}

// SortPartsByRank returns the hierarchy's leaves ordered by Rank
// (original_source CCHDGAttribute::SortPartsByRank, supplemented into
// SPEC_FULL).
func (h *Hierarchy) SortPartsByRank() []*HDGPart {
	leaves := make([]*HDGPart, 0, len(h.Nodes))

	for _, n := range h.Nodes {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
	}

	sort.Sort(byLeafThenRank(leaves))

	return leaves
}

// Collapse returns a CollapsedView treating every node at depth toDepth (or
// a true leaf above it) as a display leaf, without mutating the arena
// (original_source's CCHDGPart::MergePart/IsPartMergeable family,
// supplemented into SPEC_FULL as a single caller-facing operation).
func (h *Hierarchy) Collapse(toDepth int) (*CollapsedView, error) {
	if h == nil || len(h.Nodes) == 0 {
		return &CollapsedView{Depth: toDepth}, nil
	}

	if toDepth < 1 {
		return nil, Wrapf(ErrSpec, "collapse depth must be >= 1, got %d", toDepth)
	}

	var collect func(idx, depth int) []int
	collect = func(idx, depth int) []int {
		n := h.Nodes[idx]
		if n.IsLeaf() || depth >= toDepth {
			return []int{idx}
		}

		left := collect(n.Left, depth+1)
		right := collect(n.Right, depth+1)

		return append(left, right...)
	}

	return &CollapsedView{Depth: toDepth, Nodes: collect(h.Root, 1)}, nil
}
