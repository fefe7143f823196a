package coclust

// typicality.go computes per-value categorical typicality (spec.md §4.4's
// final paragraph): how representative a value is of the group it ended up
// in, versus the alternative groups it could have joined. Grounded on
// invertedv-seafan's data.go Desc, which likewise reduces a per-value
// breakdown to a single normalized summary statistic.

// computeTypicality fills in h's leaf-level Typicality maps for the
// categorical attribute at attrIdx: for each value v currently in group g,
// the average over all other groups g' of delta_cost(move v from g to g'),
// divided by the per-group maximum so the most-typical value of each group
// reaches 1.
func computeTypicality(ts *TupleStore, g *DataGrid, cost CostModel, attrIdx int, h *Hierarchy) {
	attr := g.Attributes[attrIdx]
	if attr.Kind != Categorical || len(attr.Parts) == 0 {
		return
	}

	raw := make(map[*Part]map[string]float64, len(attr.Parts))
	for _, p := range attr.Parts {
		raw[p] = make(map[string]float64)
	}

	for _, value := range attr.Values {
		var from *Part
		for _, p := range attr.Parts {
			if p.Content.ValueSet.Contains(value) {
				from = p
				break
			}
		}

		if from == nil || len(attr.Parts) < 2 {
			continue
		}

		matches := func(v any) bool { return v.(string) == value }
		breakdown, total := valueFreqByOtherKey(g, ts, attrIdx, matches)

		if total == 0 {
			continue
		}

		freq := freqOnly(breakdown)

		var sum float64
		var alternatives int

		for _, to := range attr.Parts {
			if to == from {
				continue
			}

			sum += cost.MoveValueDelta(g, attrIdx, value, freq, from, to)
			alternatives++
		}

		if alternatives > 0 {
			raw[from][value] = sum / float64(alternatives)
		}
	}

	// Normalize per group: a larger average delta means moving the value
	// away costs more, i.e. it's more typical of its group, so typicality
	// is the average delta divided by the group's maximum, which reaches 1.
	for p, values := range raw {
		if len(values) == 0 {
			continue
		}

		maxDelta := 0.0
		for _, v := range values {
			if v > maxDelta {
				maxDelta = v
			}
		}

		node := findLeafNode(h, p)
		if node == nil {
			continue
		}

		node.Typicality = make(map[string]float64, len(values))

		for value, v := range values {
			if maxDelta == 0 {
				node.Typicality[value] = 1
				continue
			}

			node.Typicality[value] = v / maxDelta
		}
	}
}

// findLeafNode returns h's leaf node wrapping p, or nil.
func findLeafNode(h *Hierarchy, p *Part) *HDGPart {
	for _, n := range h.Nodes {
		if n.IsLeaf() && n.Leaf == p {
			return n
		}
	}

	return nil
}
