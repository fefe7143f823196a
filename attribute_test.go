package coclust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributeAddRemovePart(t *testing.T) {
	a := NewAttribute("x", Numeric)
	p1 := NewIntervalPart(a.allocPartID(), "p1", 0, 1)
	p2 := NewIntervalPart(a.allocPartID(), "p2", 1, 2)

	a.AddPart(p1)
	a.AddPart(p2)
	assert.Equal(t, 2, a.PartCount())

	a.RemovePart(p1)
	assert.Equal(t, 1, a.PartCount())
	assert.Same(t, p2, a.Parts[0])
}

func TestAttributeAllocPartIDUnique(t *testing.T) {
	a := NewAttribute("x", Categorical)

	ids := map[int]bool{}
	for i := 0; i < 10; i++ {
		id := a.allocPartID()
		assert.False(t, ids[id], "part IDs must be unique within an attribute")
		ids[id] = true
	}
}

func TestAttributeHierarchyNilBeforeBuild(t *testing.T) {
	a := NewAttribute("x", Numeric)
	assert.Nil(t, a.Hierarchy())
}
