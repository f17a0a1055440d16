package model

import "fmt"

// ClauseSink receives the CNF clauses produced by the Tseitin transformation
// and allocates fresh auxiliary variable ids. Solver back-ends implement it.
type ClauseSink interface {
	AddClause(lits ...VarID)
	NewVar() VarID
}

// Tseitin is the per-transformation state: the clause sink, the parameter
// tuple the formula is instantiated under, and the cache of auxiliary
// variables so shared subtrees are encoded once.
type Tseitin struct {
	sink ClauseSink
	ctx  *ParamCtx
	aux  map[Formula]VarID
}

// EmitCNF converts f into equisatisfiable CNF clauses on sink. ctx supplies
// the parameter tuple for mapping leaves; it may be nil only when f has
// none. Auxiliary variables are fresh per call.
func EmitCNF(f Formula, sink ClauseSink, ctx *ParamCtx) {
	t := &Tseitin{sink: sink, ctx: ctx, aux: make(map[Formula]VarID)}
	f.emit(t, true)
}

// fresh returns the auxiliary variable standing for the subformula f,
// allocating it on first use.
func (t *Tseitin) fresh(f Formula) VarID {
	if v, ok := t.aux[f]; ok {
		return v
	}
	v := t.sink.NewVar()
	t.aux[f] = v
	return v
}

func (t *Tseitin) childVars(children []Formula) []VarID {
	vars := make([]VarID, len(children))
	for i, c := range children {
		vars[i] = c.tseitinVar(t)
	}
	return vars
}

// tseitinAnd emits t ↔ AND(list[offset:]), negating the literals when negate
// is set (which turns it into t ↔ AND of negations).
func (t *Tseitin) tseitinAnd(thisVar VarID, list []VarID, offset int, negate bool) {
	n := 1
	if negate {
		n = -1
	}
	first := make([]VarID, 0, len(list)-offset+1)
	for _, v := range list[offset:] {
		first = append(first, n*-v)
	}
	first = append(first, thisVar)
	t.sink.AddClause(first...)
	for _, v := range list[offset:] {
		t.sink.AddClause(-thisVar, n*v)
	}
}

// tseitinCount is the sequential-counter core shared by the three counting
// operators: thisVar ↔ "at least/at most value of list[offset:] are true",
// with the two boundary cases collapsing to plain conjunctions, or to true
// where the bound cannot be violated.
func (t *Tseitin) tseitinCount(thisVar VarID, atLeast, atMost bool, value int, list []VarID, offset int) {
	switch {
	case value == len(list)-offset:
		if atLeast {
			t.tseitinAnd(thisVar, list, offset, false)
		} else {
			t.sink.AddClause(thisVar) // at most all of them: always true
		}
	case value == 0:
		if atMost {
			t.tseitinAnd(thisVar, list, offset, true)
		} else {
			t.sink.AddClause(thisVar) // at least none: always true
		}
	default:
		t1 := t.sink.NewVar() // counts value-1 in the rest
		t2 := t.sink.NewVar() // counts value in the rest
		head := list[offset]
		t.sink.AddClause(thisVar, -t1, -head)
		t.sink.AddClause(-thisVar, t1, -head)
		t.sink.AddClause(thisVar, -t2, head)
		t.sink.AddClause(-thisVar, t2, head)
		t.tseitinCount(t1, atLeast, atMost, value-1, list, offset+1)
		t.tseitinCount(t2, atLeast, atMost, value, list, offset+1)
	}
}

// ----------------------------------------------------------------------------
// Per-node Tseitin variables
// ----------------------------------------------------------------------------

func (v *Variable) tseitinVar(t *Tseitin) VarID { return v.ID }

func (m *MappingRef) tseitinVar(t *Tseitin) VarID {
	if t.ctx == nil {
		panic(fmt.Sprintf("model: mapping %s$%d outside a parameterized constraint", m.Ident, m.Param+1))
	}
	return t.ctx.Resolve(m)
}

func (n *Not) tseitinVar(t *Tseitin) VarID {
	if n.IsLiteral() {
		return -n.C.tseitinVar(t)
	}
	return t.fresh(n)
}

func (a *And) tseitinVar(t *Tseitin) VarID      { return t.fresh(a) }
func (o *Or) tseitinVar(t *Tseitin) VarID       { return t.fresh(o) }
func (im *Implies) tseitinVar(t *Tseitin) VarID { return t.fresh(im) }
func (e *Equiv) tseitinVar(t *Tseitin) VarID    { return t.fresh(e) }
func (a *AtLeast) tseitinVar(t *Tseitin) VarID  { return t.fresh(a) }
func (a *AtMost) tseitinVar(t *Tseitin) VarID   { return t.fresh(a) }
func (e *Exactly) tseitinVar(t *Tseitin) VarID  { return t.fresh(e) }

// ----------------------------------------------------------------------------
// Per-node clause emission
// ----------------------------------------------------------------------------

func (v *Variable) emit(t *Tseitin, top bool) {
	if top {
		t.sink.AddClause(v.ID)
	}
}

func (m *MappingRef) emit(t *Tseitin, top bool) {
	if top {
		t.sink.AddClause(m.tseitinVar(t))
	}
}

func (n *Not) emit(t *Tseitin, top bool) {
	thisVar := n.tseitinVar(t)
	if top {
		t.sink.AddClause(thisVar)
	}
	if !n.IsLiteral() {
		childVar := n.C.tseitinVar(t)
		t.sink.AddClause(-thisVar, -childVar)
		t.sink.AddClause(thisVar, childVar)
		n.C.emit(t, false)
	}
}

func (a *And) emit(t *Tseitin, top bool) {
	// At the top level every child must hold, so no auxiliary is needed.
	if !top {
		t.tseitinAnd(a.tseitinVar(t), t.childVars(a.Children), 0, false)
	}
	for _, c := range a.Children {
		c.emit(t, top)
	}
}

func (o *Or) emit(t *Tseitin, top bool) {
	first := t.childVars(o.Children)
	if top {
		t.sink.AddClause(first...)
	} else {
		thisVar := o.tseitinVar(t)
		t.sink.AddClause(append(first, -thisVar)...)
		for _, v := range first {
			t.sink.AddClause(thisVar, -v)
		}
	}
	for _, c := range o.Children {
		c.emit(t, false)
	}
}

func (im *Implies) emit(t *Tseitin, top bool) {
	leftVar := im.L.tseitinVar(t)
	rightVar := im.R.tseitinVar(t)
	if top {
		t.sink.AddClause(-leftVar, rightVar)
	} else {
		thisVar := im.tseitinVar(t)
		t.sink.AddClause(-thisVar, -leftVar, rightVar)
		t.sink.AddClause(leftVar, thisVar)
		t.sink.AddClause(-rightVar, thisVar)
	}
	im.L.emit(t, false)
	im.R.emit(t, false)
}

func (e *Equiv) emit(t *Tseitin, top bool) {
	leftVar := e.L.tseitinVar(t)
	rightVar := e.R.tseitinVar(t)
	if top {
		t.sink.AddClause(-leftVar, rightVar)
		t.sink.AddClause(leftVar, -rightVar)
	} else {
		thisVar := e.tseitinVar(t)
		t.sink.AddClause(thisVar, leftVar, rightVar)
		t.sink.AddClause(-thisVar, -leftVar, rightVar)
		t.sink.AddClause(-thisVar, leftVar, -rightVar)
		t.sink.AddClause(thisVar, -leftVar, -rightVar)
	}
	e.L.emit(t, false)
	e.R.emit(t, false)
}

func (a *AtLeast) emit(t *Tseitin, top bool) {
	thisVar := a.tseitinVar(t)
	if top {
		t.sink.AddClause(thisVar)
	}
	t.tseitinCount(thisVar, true, false, a.K, t.childVars(a.Children), 0)
	for _, c := range a.Children {
		c.emit(t, false)
	}
}

func (a *AtMost) emit(t *Tseitin, top bool) {
	thisVar := a.tseitinVar(t)
	if top {
		t.sink.AddClause(thisVar)
	}
	t.tseitinCount(thisVar, false, true, a.K, t.childVars(a.Children), 0)
	for _, c := range a.Children {
		c.emit(t, false)
	}
}

func (e *Exactly) emit(t *Tseitin, top bool) {
	thisVar := e.tseitinVar(t)
	if top {
		t.sink.AddClause(thisVar)
	}
	t.tseitinCount(thisVar, true, true, e.K, t.childVars(e.Children), 0)
	for _, c := range e.Children {
		c.emit(t, false)
	}
}
