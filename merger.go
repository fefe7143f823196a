package coclust

// merger.go augments a DataGrid with a priority queue of part-merge
// candidates (spec.md §4.2), one entry per pair of parts of the same
// attribute that could plausibly merge (numeric: adjacent intervals only).
// Grounded on katalvlaran-lvlath's graph/algorithms/prim_kruskal.go, which
// shows the idiomatic Go shape for a greedy min-weight merge loop driven by
// a container/heap priority queue; generalized here from MST edges to
// merge candidates, with intrusive back-references from each Part so
// invalidation on a merge touches only the popped parts' neighbours
// (spec.md §9's "priority queue + back-references" design note).

import "container/heap"

// mergeCandidate is one pair of parts of the same attribute that could
// merge, with its pre-computed delta-cost.
type mergeCandidate struct {
	attrIdx    int
	a, b       *Part
	delta      float64
	heapIndex  int
	stale      bool
}

// less implements the deterministic tie-breaking rule of spec.md §4.3: on
// equal delta, the merge whose parts have the lower (attribute_index,
// part_index) lexicographic key wins.
func (c *mergeCandidate) less(o *mergeCandidate) bool {
	if c.delta != o.delta {
		return c.delta < o.delta
	}

	if c.attrIdx != o.attrIdx {
		return c.attrIdx < o.attrIdx
	}

	ai, bi := minMaxID(c.a, c.b)
	aj, bj := minMaxID(o.a, o.b)

	if ai != aj {
		return ai < aj
	}

	return bi < bj
}

func minMaxID(a, b *Part) (int, int) {
	if a.ID < b.ID {
		return a.ID, b.ID
	}

	return b.ID, a.ID
}

// candidateHeap implements container/heap.Interface over *mergeCandidate,
// ordered so the cheapest (smallest-delta) candidate is at the root.
type candidateHeap []*mergeCandidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h candidateHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *candidateHeap) Push(x any) {
	c := x.(*mergeCandidate)
	c.heapIndex = len(*h)
	*h = append(*h, c)
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	c.heapIndex = -1
	*h = old[:n-1]

	return c
}

// Merger owns the grid's merge-candidate queue and performs the pop/fuse/
// requeue cycle of spec.md §4.2.
type Merger struct {
	grid *DataGrid
	cost CostModel
	heap candidateHeap
}

// NewMerger builds a Merger over grid and populates the initial candidate
// queue: one entry per pair of parts of the same attribute (numeric:
// adjacent pairs only), per spec.md §4.2's IV mode §9 note: the catch-all
// part DOES participate in merge-candidate generation like any other part
// (one of this spec's resolved Open Questions, see SPEC_FULL.md).
func NewMerger(grid *DataGrid, cost CostModel) *Merger {
	m := &Merger{grid: grid, cost: cost}

	for ai, attr := range grid.Attributes {
		m.seedAttribute(ai, attr)
	}

	return m
}

func (m *Merger) seedAttribute(attrIdx int, attr *Attribute) {
	switch attr.Kind {
	case Numeric:
		attr.SortNumericParts()

		for i := 0; i+1 < len(attr.Parts); i++ {
			m.addCandidate(attrIdx, attr.Parts[i], attr.Parts[i+1])
		}
	case Categorical:
		for i := 0; i < len(attr.Parts); i++ {
			for j := i + 1; j < len(attr.Parts); j++ {
				m.addCandidate(attrIdx, attr.Parts[i], attr.Parts[j])
			}
		}
	}
}

// addCandidate computes the delta-cost of merging a and b and pushes a new
// candidate onto the heap, registering it on both parts' back-reference
// lists.
func (m *Merger) addCandidate(attrIdx int, a, b *Part) *mergeCandidate {
	c := &mergeCandidate{
		attrIdx: attrIdx,
		a:       a,
		b:       b,
		delta:   m.cost.MergePartsDelta(m.grid, attrIdx, a, b),
	}

	heap.Push(&m.heap, c)
	a.candidates = append(a.candidates, c)
	b.candidates = append(b.candidates, c)

	return c
}

// invalidate marks every live candidate touching p as stale; they are
// skipped (and lazily dropped) when popped, per the lazy-deletion idiom a
// container/heap-backed queue needs since heap.Remove is O(log n) per call
// and a part may have many candidates.
func (m *Merger) invalidate(p *Part) {
	for _, c := range p.candidates {
		c.stale = true
	}

	p.candidates = nil
}

// PeekBestDelta returns the smallest delta currently in the queue (ignoring
// stale entries) without popping it, or (0, false) if the queue is empty.
func (m *Merger) PeekBestDelta() (float64, bool) {
	for len(m.heap) > 0 {
		top := m.heap[0]
		if top.stale {
			heap.Pop(&m.heap)
			continue
		}

		return top.delta, true
	}

	return 0, false
}

// popBest pops and returns the cheapest live candidate, discarding stale
// entries as it goes. Returns nil if the queue is empty.
func (m *Merger) popBest() *mergeCandidate {
	for len(m.heap) > 0 {
		c := heap.Pop(&m.heap).(*mergeCandidate)
		if c.stale {
			continue
		}

		return c
	}

	return nil
}

// SearchBestMerge pops the best candidate and, if its delta is negative,
// performs the merge and returns the new fused part. It returns (nil, false)
// if the queue is empty or the best remaining delta is non-negative
// (spec.md §4.3.2.a: "repeatedly pop best negative-delta merge until none
// remain").
func (m *Merger) SearchBestMerge() (*Part, bool) {
	c := m.popBest()
	if c == nil || c.delta >= 0 {
		if c != nil {
			// put it back; caller (e.g. the hierarchy builder) may still
			// want the best non-negative merge to keep going.
			heap.Push(&m.heap, c)
			c.stale = false
		}

		return nil, false
	}

	return m.commitMerge(c), true
}

// ForceBestMerge pops and performs the best candidate regardless of sign,
// used by the hierarchy builder, which must keep merging until one part
// remains (spec.md §4.4). It returns the fused survivor, the two original
// parts that were merged (in arbitrary order), and the merge's delta-cost.
func (m *Merger) ForceBestMerge() (fused, a, b *Part, delta float64, ok bool) {
	c := m.popBest()
	if c == nil {
		return nil, nil, nil, 0, false
	}

	delta = c.delta
	a, b = c.a, c.b
	fused = m.commitMerge(c)

	return fused, a, b, delta, true
}

// commitMerge fuses a.b into the larger-cell-count part, reconciles
// colliding cells, removes obsolete candidates, and inserts new ones
// pairing the fused part with its neighbours (spec.md §4.2 steps 2-3).
func (m *Merger) commitMerge(c *mergeCandidate) *Part {
	attr := m.grid.Attributes[c.attrIdx]

	dst, src := c.a, c.b
	if len(src.Cells) > len(dst.Cells) {
		dst, src = src, dst
	}

	// Reconcile cells: for every cell of src, find or create the
	// corresponding cell of dst (same other-dimension parts) and sum
	// frequencies; drop src's now-empty cell.
	for _, sc := range append([]*Cell(nil), src.Cells...) {
		newParts := make([]*Part, len(sc.Parts))
		copy(newParts, sc.Parts)
		newParts[c.attrIdx] = dst

		m.grid.removeCell(sc)

		dc := m.grid.getOrCreateCell(newParts)
		dc.Frequency += sc.Frequency
	}

	mergeInto(dst, src)
	attr.RemovePart(src)

	m.invalidate(src)
	m.invalidate(dst)

	attr.SortNumericParts()

	// Re-seed candidates between dst and its remaining neighbours.
	switch attr.Kind {
	case Numeric:
		idx := -1

		for i, p := range attr.Parts {
			if p == dst {
				idx = i
				break
			}
		}

		if idx > 0 {
			m.addCandidate(c.attrIdx, attr.Parts[idx-1], dst)
		}

		if idx >= 0 && idx+1 < len(attr.Parts) {
			m.addCandidate(c.attrIdx, dst, attr.Parts[idx+1])
		}
	case Categorical:
		for _, p := range attr.Parts {
			if p != dst {
				m.addCandidate(c.attrIdx, dst, p)
			}
		}
	}

	return dst
}

// Len reports how many (possibly stale) candidates remain in the queue.
func (m *Merger) Len() int {
	return len(m.heap)
}

// checkAllPartMerges is the debug predicate of spec.md §4.2: every live
// (non-stale) candidate's delta matches a from-scratch recomputation. It
// does not check that every pair of parts that should have a candidate has
// one. Used by tests, not by production code paths.
func (m *Merger) checkAllPartMerges() error {
	for _, c := range m.heap {
		if c.stale {
			continue
		}

		want := m.cost.MergePartsDelta(m.grid, c.attrIdx, c.a, c.b)
		if want != c.delta {
			return Wrapf(ErrInternal, "stale delta for merge candidate (attr %d, parts %d/%d): have %g want %g",
				c.attrIdx, c.a.ID, c.b.ID, c.delta, want)
		}
	}

	return nil
}
