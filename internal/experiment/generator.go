// Package experiment turns the current knowledge state into the set of
// experiments worth performing: it enumerates parameter tuples for each
// template, discards tuples that are redundant under the symmetries of what
// is already known, and wraps the survivors as Options with lazily computed
// per-outcome metrics.
package experiment

import (
	"github.com/breakerlab/deduce/internal/canon"
	"github.com/breakerlab/deduce/internal/game"
	"github.com/breakerlab/deduce/internal/model"
	"github.com/breakerlab/deduce/internal/solver"
)

// PlayedExp is one step of the game history: a template instantiated with a
// parameter tuple, and the outcome that was observed.
type PlayedExp struct {
	Type    *game.ExpType
	Params  []model.CharID
	Outcome int
}

// Generator owns the knowledge graph of a decision point: the restriction
// plus every outcome observed so far, embedded as a colored digraph. Its
// canonical form keys memoization; its automorphism orbits color the
// variables for symmetry breaking.
type Generator struct {
	game    *game.Game
	slv     solver.Solver
	history []PlayedExp

	form      *canon.Form
	varGroups []int // equivalence class per variable id; dense from 1
	maxGroup  int
}

// NewGenerator builds the knowledge graph for the given history and derives
// the variable-equivalence coloring from its automorphism orbits.
func NewGenerator(g *game.Game, s solver.Solver, history []PlayedExp) *Generator {
	gen := &Generator{game: g, slv: s, history: history}

	kg, colorBase := g.BaseGraph(nil)
	if g.Restriction() != nil {
		g.Restriction().AddToGraph(kg, nil, -1, colorBase)
	}
	for _, h := range history {
		ctx := &model.ParamCtx{Params: h.Params, Source: g}
		h.Type.Outcomes()[h.Outcome].Formula.AddToGraph(kg, ctx, -1, colorBase)
	}
	gen.form = kg.Canonical()

	// Orbits of the positive-literal vertices induce the equivalence classes.
	gen.varGroups = make([]int, g.NumVars()+1)
	orbitGroup := make(map[int]int)
	for _, v := range g.Vars() {
		orbit := gen.form.Orbit(2 * (v.ID - 1))
		grp, ok := orbitGroup[orbit]
		if !ok {
			gen.maxGroup++
			grp = gen.maxGroup
			orbitGroup[orbit] = grp
		}
		gen.varGroups[v.ID] = grp
	}
	return gen
}

// Form returns the canonical form of the knowledge graph.
func (gen *Generator) Form() *canon.Form { return gen.form }

// VarGroups returns the variable-equivalence coloring, indexed by id.
func (gen *Generator) VarGroups() []int { return gen.varGroups }

// Options enumerates the non-equivalent experiments of every template, in
// template declaration order and lexicographic tuple order.
func (gen *Generator) Options() []*Option {
	var options []*Option
	for _, t := range gen.game.ExpTypes() {
		for _, params := range gen.GenParams(t) {
			options = append(options, newOption(gen.game, gen.slv, t, params, len(options)))
		}
	}
	return options
}

// GenParams runs the three enumeration phases for one template and returns
// the surviving parameter tuples.
func (gen *Generator) GenParams(t *game.ExpType) [][]model.CharID {
	pg := &paramsGen{
		gen:      gen,
		t:        t,
		alph:     len(gen.game.Alphabet()),
		params:   make([]model.CharID, t.Arity()),
		accepted: make(map[string]bool),
		graphs:   make(map[uint64][]*canon.Form),
	}
	if t.Arity() == 0 {
		// A single parameterless instance.
		pg.graphFilter()
	} else {
		pg.fill(0)
	}
	return pg.result
}

// paramsGen carries the per-call state of GenParams.
type paramsGen struct {
	gen  *Generator
	t    *game.ExpType
	alph int

	params   []model.CharID
	result   [][]model.CharID
	accepted map[string]bool          // tuples already in result
	graphs   map[uint64][]*canon.Form // canonical forms seen, by hash
}

// charsEquiv reports whether characters a and b resolve every mapping used
// at position n to same-colored variables.
func (pg *paramsGen) charsEquiv(n int, a, b model.CharID) bool {
	groups := pg.gen.varGroups
	for _, f := range pg.t.UsedMaps(n) {
		if groups[pg.gen.game.MappingValue(f, a)] != groups[pg.gen.game.MappingValue(f, b)] {
			return false
		}
	}
	return true
}

// fill is phase one: assign position n to every admissible character,
// skipping characters equivalent to one already tried at this position.
func (pg *paramsGen) fill(n int) {
	doneList := make([]model.CharID, 0, pg.alph)
	done := make([]bool, pg.alph)
	for a := 0; a < pg.alph; a++ {
		valid := true
		for _, p := range pg.t.DifferentSet(n) {
			if p < n && pg.params[p] == a {
				valid = false
			}
		}
		if !valid {
			continue
		}
		done[a] = true
		doneList = append(doneList, a)
		for _, p := range pg.t.SmallerSet(n) {
			if pg.params[p] >= a {
				valid = false
			}
		}
		if !valid {
			continue
		}
		if pg.t.Interchangeable(n, a) {
			for _, b := range doneList {
				if b == a || !done[b] {
					continue
				}
				if pg.charsEquiv(n, a, b) {
					valid = false
					done[a] = false // an equivalent is already in done
					break
				}
			}
		}
		if !valid {
			continue
		}
		pg.params[n] = a
		if n+1 == pg.t.Arity() {
			pg.basicFilter()
		} else {
			pg.fill(n + 1)
		}
	}
}

// basicFilter is phase two: discard a tuple when some non-interchangeable
// position is inessential and a smaller chars-equivalent character could
// stand in for it while staying inessential.
func (pg *paramsGen) basicFilter() {
	t, g := pg.t, pg.gen.game
	for n := 0; n < t.Arity(); n++ {
		chr := pg.params[n]
		if t.Interchangeable(n, chr) {
			continue
		}
		// Variables touched by the other positions and by direct references.
		otherVars := make(map[model.VarID]bool)
		for _, v := range g.Vars() {
			if t.UsesVar(v.ID) {
				otherVars[v.ID] = true
			}
		}
		for i := 0; i < t.Arity(); i++ {
			if i == n {
				continue
			}
			for _, f := range t.UsedMaps(i) {
				otherVars[g.MappingValue(f, pg.params[i])] = true
			}
		}
		essential := func(a model.CharID) bool {
			for _, f := range t.UsedMaps(n) {
				if otherVars[g.MappingValue(f, a)] {
					return true
				}
			}
			return false
		}
		if essential(chr) {
			continue
		}
		// The position is untied; a smaller accepted equivalent that is also
		// untied makes this tuple redundant.
		for a := 0; a < chr; a++ {
			pg.params[n] = a
			ok := pg.accepted[tupleKey(pg.params)] && pg.charsEquiv(n, a, chr)
			pg.params[n] = chr
			if ok && !essential(a) {
				return
			}
		}
	}
	pg.graphFilter()
}

// graphFilter is phase three: canonicalize the tuple's knowledge graph and
// keep the tuple only when no isomorphic graph was produced before.
func (pg *paramsGen) graphFilter() {
	form := pg.graphForParams()
	for _, seen := range pg.graphs[form.Hash()] {
		if seen.Equal(form) {
			return
		}
	}
	pg.graphs[form.Hash()] = append(pg.graphs[form.Hash()], form)
	params := append([]model.CharID(nil), pg.params...)
	pg.result = append(pg.result, params)
	pg.accepted[tupleKey(params)] = true
}

// graphForParams embeds all outcome formulas of the template, resolved under
// the current tuple, over the group-colored literal seed.
func (pg *paramsGen) graphForParams() *canon.Form {
	g, colorBase := pg.gen.game.BaseGraph(pg.gen.varGroups)
	ctx := &model.ParamCtx{Params: pg.params, Source: pg.gen.game}
	for _, o := range pg.t.Outcomes() {
		o.Formula.AddToGraph(g, ctx, -1, colorBase)
	}
	return g.Canonical()
}

func tupleKey(params []model.CharID) string {
	key := make([]byte, len(params))
	for i, a := range params {
		key[i] = byte(a)
	}
	return string(key)
}
