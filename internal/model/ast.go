package model

import (
	"fmt"
	"strings"

	"github.com/breakerlab/deduce/internal/canon"
)

// VarID identifies a propositional variable. Positive values are variable
// ids, negative values denote the negated literal of the same variable.
// Zero is never a valid VarID.
type VarID = int

// CharID indexes into the game alphabet.
type CharID = int

// MapID identifies a mapping table of the game.
type MapID = int

// MappingSource resolves mapping-table lookups and variable names. The game
// implements it; formulas stay independent of the game package.
type MappingSource interface {
	// MappingValue returns the variable id stored for character c in mapping m.
	MappingValue(m MapID, c CharID) VarID
	// VariableName returns the declared name of a variable id.
	VariableName(id VarID) string
}

// ParamCtx carries the parameter tuple a parameterized formula is evaluated
// under. A nil *ParamCtx means the formula must not contain mapping leaves.
type ParamCtx struct {
	Params []CharID
	Source MappingSource
}

// Resolve returns the concrete variable id of a mapping leaf under the tuple.
func (c *ParamCtx) Resolve(m *MappingRef) VarID {
	return c.Source.MappingValue(m.Map, c.Params[m.Param])
}

// Assignment is a read-only view of a model, indexed by variable id.
type Assignment interface {
	Value(id VarID) bool
}

// BoolAssignment adapts a []bool indexed by variable id (index 0 unused).
type BoolAssignment []bool

// Value implements Assignment.
func (b BoolAssignment) Value(id VarID) bool { return b[id] }

// Node kind identifiers. Structurally distinct operators must colorize
// canonical graphs distinctly, so the three counting operators space their
// ids by 3·k.
const (
	NodeVariable = 1
	NodeNot      = 2
	NodeImplies  = 3
	NodeEquiv    = 4
	NodeAnd      = 5
	NodeOr       = 6
	NodeMapping  = 7
	NodeAtLeast  = 8
	NodeAtMost   = 9
	NodeExactly  = 10
)

// Formula is a node of a propositional formula AST.
//
// Formulas are immutable after construction and may share subtrees; the
// parser interns variables so that each declared variable has exactly one
// leaf node.
type Formula interface {
	ChildCount() int
	Child(i int) Formula
	// NodeID returns the node kind identifier used for graph coloring.
	NodeID() int
	// IsLiteral reports whether the node is a variable, a mapping leaf, or a
	// negation of one of those.
	IsLiteral() bool
	// Neg returns the negation. Negating a Not returns its child, so double
	// negations never appear.
	Neg() Formula
	// Size returns the number of AST nodes in the subtree.
	Size() int
	// Pretty renders the formula. With a non-nil ctx, mapping leaves print as
	// the variable they resolve to under the tuple.
	Pretty(utf8 bool, ctx *ParamCtx) string
	// Eval evaluates the formula against a model.
	Eval(code Assignment, ctx *ParamCtx) bool
	// AddToGraph embeds the subtree into g. Operator vertices are colored
	// colorBase+NodeID; literals connect to the pre-allocated literal
	// vertices 2(id−1) and 2(id−1)+1. parent < 0 marks the root.
	AddToGraph(g *canon.Digraph, ctx *ParamCtx, parent, colorBase int)

	tseitinVar(t *Tseitin) VarID
	emit(t *Tseitin, top bool)
}

// ----------------------------------------------------------------------------
// Leaves
// ----------------------------------------------------------------------------

// Variable is a propositional variable leaf.
type Variable struct {
	Name string
	ID   VarID
}

func (v *Variable) ChildCount() int { return 0 }
func (v *Variable) Child(i int) Formula {
	panic(fmt.Sprintf("model: Child(%d) on Variable", i))
}
func (v *Variable) NodeID() int     { return NodeVariable }
func (v *Variable) IsLiteral() bool { return true }
func (v *Variable) Neg() Formula    { return &Not{C: v} }
func (v *Variable) Size() int       { return 1 }

func (v *Variable) Pretty(utf8 bool, ctx *ParamCtx) string { return v.Name }

func (v *Variable) Eval(code Assignment, ctx *ParamCtx) bool { return code.Value(v.ID) }

// MappingRef is a parameter-indexed mapping leaf: under a parameter tuple P
// it stands for the variable mappings[Map][P[Param]]. Param is 0-based.
type MappingRef struct {
	Ident string
	Map   MapID
	Param int
}

func (m *MappingRef) ChildCount() int { return 0 }
func (m *MappingRef) Child(i int) Formula {
	panic(fmt.Sprintf("model: Child(%d) on MappingRef", i))
}
func (m *MappingRef) NodeID() int     { return NodeMapping }
func (m *MappingRef) IsLiteral() bool { return true }
func (m *MappingRef) Neg() Formula    { return &Not{C: m} }
func (m *MappingRef) Size() int       { return 1 }

func (m *MappingRef) Pretty(utf8 bool, ctx *ParamCtx) string {
	if ctx != nil {
		return ctx.Source.VariableName(ctx.Resolve(m))
	}
	return fmt.Sprintf("%s$%d", m.Ident, m.Param+1)
}

func (m *MappingRef) Eval(code Assignment, ctx *ParamCtx) bool {
	return code.Value(ctx.Resolve(m))
}

// ----------------------------------------------------------------------------
// Operators
// ----------------------------------------------------------------------------

// Not negates its child.
type Not struct {
	C Formula
}

func (n *Not) ChildCount() int { return 1 }
func (n *Not) Child(i int) Formula {
	if i != 0 {
		panic(fmt.Sprintf("model: Child(%d) on Not", i))
	}
	return n.C
}
func (n *Not) NodeID() int     { return NodeNot }
func (n *Not) IsLiteral() bool { return n.C.IsLiteral() }
func (n *Not) Neg() Formula    { return n.C }
func (n *Not) Size() int       { return 1 + n.C.Size() }

func (n *Not) Pretty(utf8 bool, ctx *ParamCtx) string {
	if utf8 {
		return "¬" + n.C.Pretty(utf8, ctx)
	}
	return "!" + n.C.Pretty(utf8, ctx)
}

func (n *Not) Eval(code Assignment, ctx *ParamCtx) bool { return !n.C.Eval(code, ctx) }

// And is the n-ary conjunction. Construction through NewAnd keeps it
// flattened: an And never directly contains an And.
type And struct {
	Children []Formula
}

// NewAnd builds a flattened conjunction.
func NewAnd(children ...Formula) *And {
	flat := make([]Formula, 0, len(children))
	for _, c := range children {
		if a, ok := c.(*And); ok {
			flat = append(flat, a.Children...)
		} else {
			flat = append(flat, c)
		}
	}
	return &And{Children: flat}
}

func (a *And) ChildCount() int     { return len(a.Children) }
func (a *And) Child(i int) Formula { return a.Children[i] }
func (a *And) NodeID() int         { return NodeAnd }
func (a *And) IsLiteral() bool     { return false }
func (a *And) Neg() Formula        { return &Not{C: a} }
func (a *And) Size() int           { return sizeOf(a) }

func (a *And) Pretty(utf8 bool, ctx *ParamCtx) string {
	return prettyJoin(a.Children, sep(utf8, " ∧ ", " & "), utf8, ctx)
}

func (a *And) Eval(code Assignment, ctx *ParamCtx) bool {
	for _, c := range a.Children {
		if !c.Eval(code, ctx) {
			return false
		}
	}
	return true
}

// Or is the n-ary disjunction, flattened like And.
type Or struct {
	Children []Formula
}

// NewOr builds a flattened disjunction.
func NewOr(children ...Formula) *Or {
	flat := make([]Formula, 0, len(children))
	for _, c := range children {
		if o, ok := c.(*Or); ok {
			flat = append(flat, o.Children...)
		} else {
			flat = append(flat, c)
		}
	}
	return &Or{Children: flat}
}

func (o *Or) ChildCount() int     { return len(o.Children) }
func (o *Or) Child(i int) Formula { return o.Children[i] }
func (o *Or) NodeID() int         { return NodeOr }
func (o *Or) IsLiteral() bool     { return false }
func (o *Or) Neg() Formula        { return &Not{C: o} }
func (o *Or) Size() int           { return sizeOf(o) }

func (o *Or) Pretty(utf8 bool, ctx *ParamCtx) string {
	return prettyJoin(o.Children, sep(utf8, " ∨ ", " | "), utf8, ctx)
}

func (o *Or) Eval(code Assignment, ctx *ParamCtx) bool {
	for _, c := range o.Children {
		if c.Eval(code, ctx) {
			return true
		}
	}
	return false
}

// Implies is the binary implication L -> R.
type Implies struct {
	L, R Formula
}

func (im *Implies) ChildCount() int { return 2 }
func (im *Implies) Child(i int) Formula {
	return binChild(im.L, im.R, i, "Implies")
}
func (im *Implies) NodeID() int     { return NodeImplies }
func (im *Implies) IsLiteral() bool { return false }
func (im *Implies) Neg() Formula    { return &Not{C: im} }
func (im *Implies) Size() int       { return sizeOf(im) }

func (im *Implies) Pretty(utf8 bool, ctx *ParamCtx) string {
	return "(" + im.L.Pretty(utf8, ctx) + sep(utf8, " ⇒ ", " -> ") + im.R.Pretty(utf8, ctx) + ")"
}

func (im *Implies) Eval(code Assignment, ctx *ParamCtx) bool {
	return !im.L.Eval(code, ctx) || im.R.Eval(code, ctx)
}

// Equiv is the binary equivalence L <-> R.
type Equiv struct {
	L, R Formula
}

func (e *Equiv) ChildCount() int { return 2 }
func (e *Equiv) Child(i int) Formula {
	return binChild(e.L, e.R, i, "Equiv")
}
func (e *Equiv) NodeID() int     { return NodeEquiv }
func (e *Equiv) IsLiteral() bool { return false }
func (e *Equiv) Neg() Formula    { return &Not{C: e} }
func (e *Equiv) Size() int       { return sizeOf(e) }

func (e *Equiv) Pretty(utf8 bool, ctx *ParamCtx) string {
	return "(" + e.L.Pretty(utf8, ctx) + sep(utf8, " ⇔ ", " <-> ") + e.R.Pretty(utf8, ctx) + ")"
}

func (e *Equiv) Eval(code Assignment, ctx *ParamCtx) bool {
	return e.L.Eval(code, ctx) == e.R.Eval(code, ctx)
}

// AtLeast requires at least K of its children to hold.
type AtLeast struct {
	K        int
	Children []Formula
}

func (a *AtLeast) ChildCount() int     { return len(a.Children) }
func (a *AtLeast) Child(i int) Formula { return a.Children[i] }
func (a *AtLeast) NodeID() int         { return NodeAtLeast + 3*a.K }
func (a *AtLeast) IsLiteral() bool     { return false }
func (a *AtLeast) Neg() Formula        { return &Not{C: a} }
func (a *AtLeast) Size() int           { return sizeOf(a) }

func (a *AtLeast) Pretty(utf8 bool, ctx *ParamCtx) string {
	return fmt.Sprintf("AtLeast-%d%s", a.K, prettyJoin(a.Children, ", ", utf8, ctx))
}

func (a *AtLeast) Eval(code Assignment, ctx *ParamCtx) bool {
	return countTrue(a.Children, code, ctx) >= a.K
}

// AtMost requires at most K of its children to hold.
type AtMost struct {
	K        int
	Children []Formula
}

func (a *AtMost) ChildCount() int     { return len(a.Children) }
func (a *AtMost) Child(i int) Formula { return a.Children[i] }
func (a *AtMost) NodeID() int         { return NodeAtMost + 3*a.K }
func (a *AtMost) IsLiteral() bool     { return false }
func (a *AtMost) Neg() Formula        { return &Not{C: a} }
func (a *AtMost) Size() int           { return sizeOf(a) }

func (a *AtMost) Pretty(utf8 bool, ctx *ParamCtx) string {
	return fmt.Sprintf("AtMost-%d%s", a.K, prettyJoin(a.Children, ", ", utf8, ctx))
}

func (a *AtMost) Eval(code Assignment, ctx *ParamCtx) bool {
	return countTrue(a.Children, code, ctx) <= a.K
}

// Exactly requires exactly K of its children to hold.
type Exactly struct {
	K        int
	Children []Formula
}

func (e *Exactly) ChildCount() int     { return len(e.Children) }
func (e *Exactly) Child(i int) Formula { return e.Children[i] }
func (e *Exactly) NodeID() int         { return NodeExactly + 3*e.K }
func (e *Exactly) IsLiteral() bool     { return false }
func (e *Exactly) Neg() Formula        { return &Not{C: e} }
func (e *Exactly) Size() int           { return sizeOf(e) }

func (e *Exactly) Pretty(utf8 bool, ctx *ParamCtx) string {
	return fmt.Sprintf("Exactly-%d%s", e.K, prettyJoin(e.Children, ", ", utf8, ctx))
}

func (e *Exactly) Eval(code Assignment, ctx *ParamCtx) bool {
	return countTrue(e.Children, code, ctx) == e.K
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func binChild(l, r Formula, i int, kind string) Formula {
	switch i {
	case 0:
		return l
	case 1:
		return r
	}
	panic(fmt.Sprintf("model: Child(%d) on %s", i, kind))
}

func sizeOf(f Formula) int {
	n := 1
	for i := 0; i < f.ChildCount(); i++ {
		n += f.Child(i).Size()
	}
	return n
}

func sep(utf8 bool, u, a string) string {
	if utf8 {
		return u
	}
	return a
}

func prettyJoin(children []Formula, s string, utf8 bool, ctx *ParamCtx) string {
	if len(children) == 0 {
		return "()"
	}
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.Pretty(utf8, ctx)
	}
	return "(" + strings.Join(parts, s) + ")"
}

func countTrue(children []Formula, code Assignment, ctx *ParamCtx) int {
	n := 0
	for _, c := range children {
		if c.Eval(code, ctx) {
			n++
		}
	}
	return n
}
