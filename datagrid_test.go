package coclust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoAttrGrid() (*DataGrid, *Part, *Part, *Part, *Part) {
	ax := NewAttribute("x", Categorical)
	pxa := NewValueSetPart(ax.allocPartID(), "a", []string{"a"}, false)
	pxb := NewValueSetPart(ax.allocPartID(), "b", []string{"b"}, false)
	ax.AddPart(pxa)
	ax.AddPart(pxb)

	ay := NewAttribute("y", Categorical)
	pyc := NewValueSetPart(ay.allocPartID(), "c", []string{"c"}, false)
	pyd := NewValueSetPart(ay.allocPartID(), "d", []string{"d"}, false)
	ay.AddPart(pyc)
	ay.AddPart(pyd)

	g := NewDataGrid([]*Attribute{ax, ay})

	return g, pxa, pxb, pyc, pyd
}

func TestDataGridAddObservation(t *testing.T) {
	g, pxa, _, pyc, _ := twoAttrGrid()

	g.AddObservation([]*Part{pxa, pyc}, 5)
	g.AddObservation([]*Part{pxa, pyc}, 3)

	assert.EqualValues(t, 8, g.N)
	assert.EqualValues(t, 8, pxa.Frequency)
	assert.EqualValues(t, 8, pyc.Frequency)
	assert.Len(t, g.Cells, 1)
}

func TestDataGridAttributeIndex(t *testing.T) {
	g, _, _, _, _ := twoAttrGrid()

	assert.Equal(t, 0, g.AttributeIndex("x"))
	assert.Equal(t, 1, g.AttributeIndex("y"))
	assert.Equal(t, -1, g.AttributeIndex("z"))
}

func TestDataGridIsInformative(t *testing.T) {
	g, pxa, _, pyc, _ := twoAttrGrid()
	g.AddObservation([]*Part{pxa, pyc}, 1)

	assert.True(t, g.IsInformative())

	// collapsing y to one part makes the grid uninformative.
	single := NewAttribute("y", Categorical)
	single.AddPart(NewValueSetPart(0, "all", []string{"c", "d"}, false))
	g.Attributes[1] = single

	assert.False(t, g.IsInformative())
}

// TestCellConservation checks P1: for every attribute, part frequencies sum
// to the grid total.
func TestCellConservation(t *testing.T) {
	g, pxa, pxb, pyc, pyd := twoAttrGrid()

	g.AddObservation([]*Part{pxa, pyc}, 4)
	g.AddObservation([]*Part{pxa, pyd}, 2)
	g.AddObservation([]*Part{pxb, pyc}, 1)

	require.NoError(t, g.checkCellConservation())

	// Corrupting a part's frequency must trip the check.
	pxb.Frequency += 100
	assert.Error(t, g.checkCellConservation())
}

func TestDataGridClone(t *testing.T) {
	g, pxa, _, pyc, _ := twoAttrGrid()
	g.AddObservation([]*Part{pxa, pyc}, 5)

	clone := g.Clone()

	require.Len(t, clone.Attributes, 2)
	assert.Equal(t, g.N, clone.N)
	assert.Len(t, clone.Cells, 1)

	// Mutating the clone must not affect the original.
	clone.Attributes[0].Parts[0].Frequency = 999
	assert.NotEqual(t, clone.Attributes[0].Parts[0].Frequency, pxa.Frequency)

	for key, c := range clone.Cells {
		orig, ok := g.Cells[key]
		require.True(t, ok)
		assert.NotSame(t, orig, c)
		assert.Equal(t, orig.Frequency, c.Frequency)
	}
}

func TestSortNumericParts(t *testing.T) {
	a := NewAttribute("n", Numeric)
	p2 := NewIntervalPart(a.allocPartID(), "p2", 5, 10)
	p1 := NewIntervalPart(a.allocPartID(), "p1", 0, 5)
	a.AddPart(p2)
	a.AddPart(p1)

	a.SortNumericParts()

	assert.Same(t, p1, a.Parts[0])
	assert.Same(t, p2, a.Parts[1])
}
