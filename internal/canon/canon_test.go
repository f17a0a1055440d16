package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cycle(colors []int, order []int) *Digraph {
	g := NewDigraph()
	for _, c := range colors {
		g.AddVertex(c)
	}
	for i := range order {
		g.AddEdge(order[i], order[(i+1)%len(order)])
	}
	return g
}

func TestCanonicalIsomorphicCycles(t *testing.T) {
	g1 := cycle([]int{0, 0, 0, 0}, []int{0, 1, 2, 3})
	g2 := cycle([]int{0, 0, 0, 0}, []int{2, 0, 3, 1})
	f1 := g1.Canonical()
	f2 := g2.Canonical()
	assert.True(t, f1.Equal(f2), "relabeled cycles must canonicalize equally")
	assert.Equal(t, f1.Hash(), f2.Hash())
}

func TestCanonicalDistinguishesColors(t *testing.T) {
	g1 := cycle([]int{0, 0, 0}, []int{0, 1, 2})
	g2 := cycle([]int{0, 0, 1}, []int{0, 1, 2})
	assert.False(t, g1.Canonical().Equal(g2.Canonical()))
}

func TestCanonicalDistinguishesDirection(t *testing.T) {
	// A path and its reverse with asymmetric colors.
	g1 := NewDigraph()
	g1.AddVertex(0)
	g1.AddVertex(1)
	g1.AddEdge(0, 1)
	g2 := NewDigraph()
	g2.AddVertex(0)
	g2.AddVertex(1)
	g2.AddEdge(1, 0)
	assert.False(t, g1.Canonical().Equal(g2.Canonical()))
}

func TestOrbitsOfCycle(t *testing.T) {
	g := cycle([]int{0, 0, 0, 0, 0}, []int{0, 1, 2, 3, 4})
	f := g.Canonical()
	for v := 1; v < 5; v++ {
		assert.Equal(t, f.Orbit(0), f.Orbit(v), "cycle vertices share one orbit")
	}
}

func TestOrbitsOfStar(t *testing.T) {
	g := NewDigraph()
	center := g.AddVertex(0)
	leaves := []int{g.AddVertex(0), g.AddVertex(0), g.AddVertex(0)}
	for _, l := range leaves {
		g.AddEdge(center, l)
	}
	f := g.Canonical()
	assert.NotEqual(t, f.Orbit(center), f.Orbit(leaves[0]))
	assert.Equal(t, f.Orbit(leaves[0]), f.Orbit(leaves[1]))
	assert.Equal(t, f.Orbit(leaves[1]), f.Orbit(leaves[2]))
}

func TestOrbitsOfDirectedPath(t *testing.T) {
	g := NewDigraph()
	for i := 0; i < 3; i++ {
		g.AddVertex(0)
	}
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	f := g.Canonical()
	assert.NotEqual(t, f.Orbit(0), f.Orbit(2), "direction breaks end symmetry")
}

func TestCanonicalLiteralPairs(t *testing.T) {
	// Two variables as positive/negative literal pairs under one operator
	// vertex, built in two different insertion orders.
	build := func(flip bool) *Form {
		g := NewDigraph()
		for i := 0; i < 4; i++ {
			g.AddVertex(0)
		}
		g.AddEdge(0, 1)
		g.AddEdge(1, 0)
		g.AddEdge(2, 3)
		g.AddEdge(3, 2)
		op := g.AddVertex(5)
		if flip {
			g.AddEdge(op, 2)
			g.AddEdge(op, 1)
		} else {
			g.AddEdge(op, 0)
			g.AddEdge(op, 3)
		}
		return g.Canonical()
	}
	require.True(t, build(false).Equal(build(true)),
		"swapping variable roles is an isomorphism")
}

func TestCloneIndependent(t *testing.T) {
	g := cycle([]int{0, 0, 0}, []int{0, 1, 2})
	c := g.Clone()
	c.AddVertex(7)
	assert.Equal(t, 3, g.NumVertices())
	assert.Equal(t, 4, c.NumVertices())
}
