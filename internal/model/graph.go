package model

import "github.com/breakerlab/deduce/internal/canon"

// Knowledge graphs allocate two vertices per declared variable before any
// formula is embedded: vertex 2(id−1) is the positive literal and 2(id−1)+1
// the negative one. Operator vertices come after and are colored
// colorBase+NodeID so they can never collide with literal colors.

// LiteralVertex returns the literal-vertex index a literal formula connects
// to, resolving mapping leaves through ctx.
func LiteralVertex(f Formula, ctx *ParamCtx) int {
	neg := 0
	if n, ok := f.(*Not); ok {
		neg = 1
		f = n.C
	}
	switch l := f.(type) {
	case *Variable:
		return 2*(l.ID-1) + neg
	case *MappingRef:
		return 2*(ctx.Resolve(l)-1) + neg
	}
	panic("model: LiteralVertex on a non-literal formula")
}

// addLiteralEdge connects parent to the literal vertex of f. A literal at
// the root gets a conjunctive wrapper vertex, since root knowledge is a
// conjunction of constraints.
func addLiteralEdge(g *canon.Digraph, f Formula, ctx *ParamCtx, parent, colorBase int) {
	lit := LiteralVertex(f, ctx)
	if parent < 0 {
		parent = g.AddVertex(colorBase + NodeAnd)
	}
	g.AddEdge(parent, lit)
}

// addOperatorVertex creates the vertex for a non-literal node and embeds all
// children under it.
func addOperatorVertex(g *canon.Digraph, f Formula, ctx *ParamCtx, parent, colorBase int) {
	v := g.AddVertex(colorBase + f.NodeID())
	if parent >= 0 {
		g.AddEdge(parent, v)
	}
	for i := 0; i < f.ChildCount(); i++ {
		f.Child(i).AddToGraph(g, ctx, v, colorBase)
	}
}

func (v *Variable) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	addLiteralEdge(g, v, ctx, parent, colorBase)
}

func (m *MappingRef) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	addLiteralEdge(g, m, ctx, parent, colorBase)
}

func (n *Not) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	if n.IsLiteral() {
		addLiteralEdge(g, n, ctx, parent, colorBase)
		return
	}
	addOperatorVertex(g, n, ctx, parent, colorBase)
}

func (a *And) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	addOperatorVertex(g, a, ctx, parent, colorBase)
}

func (o *Or) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	addOperatorVertex(g, o, ctx, parent, colorBase)
}

func (im *Implies) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	addOperatorVertex(g, im, ctx, parent, colorBase)
}

func (e *Equiv) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	addOperatorVertex(g, e, ctx, parent, colorBase)
}

func (a *AtLeast) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	addOperatorVertex(g, a, ctx, parent, colorBase)
}

func (a *AtMost) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	addOperatorVertex(g, a, ctx, parent, colorBase)
}

func (e *Exactly) AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int) {
	addOperatorVertex(g, e, ctx, parent, colorBase)
}
