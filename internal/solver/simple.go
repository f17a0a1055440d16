package solver

import (
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/breakerlab/deduce/internal/model"
)

// SimpleSolver is the enumerating back-end. At construction it materializes
// every model of the restriction (via a CnfSolver) as a bit-vector; later
// constraints are evaluation predicates, not clauses. A list of live code
// indices shrinks lazily as constraints are checked, and contexts remember
// what they removed so closing restores it.
type SimpleSolver struct {
	src     model.MappingSource
	numVars int

	restriction model.Formula
	codes       []*bitset.BitSet
	live        []int // indices into codes still compatible with constraints

	constraints []evalConstraint
	scopes      []simpleScope

	ready bool
	stats *Stats
}

// simpleStats is shared by all enumerating solvers.
var simpleStats Stats

// SimpleStats returns the counters accumulated by every SimpleSolver.
func SimpleStats() *Stats { return &simpleStats }

type evalConstraint struct {
	f      model.Formula
	params []model.CharID
}

type simpleScope struct {
	constraintMark int
	removed        []int
}

type bitsetCode struct {
	b *bitset.BitSet
}

func (c bitsetCode) Value(id model.VarID) bool { return c.b.Test(uint(id)) }

// NewSimpleSolver enumerates the restriction's models and starts with all of
// them live.
func NewSimpleSolver(numVars int, src model.MappingSource, restriction model.Formula) *SimpleSolver {
	sat := NewCnfSolver(numVars, src, restriction)
	s := &SimpleSolver{
		src:         src,
		numVars:     numVars,
		restriction: restriction,
		ready:       true,
		stats:       &simpleStats,
	}
	for _, m := range sat.GenerateModels() {
		code := bitset.New(uint(numVars + 1))
		for id := 1; id <= numVars; id++ {
			if m[id] {
				code.Set(uint(id))
			}
		}
		s.codes = append(s.codes, code)
		s.live = append(s.live, len(s.codes)-1)
	}
	return s
}

// AddConstraint records a parameter-free evaluation predicate.
func (s *SimpleSolver) AddConstraint(f model.Formula) {
	s.ready = false
	s.constraints = append(s.constraints, evalConstraint{f: f})
}

// AddParamConstraint records a parameterized evaluation predicate.
func (s *SimpleSolver) AddParamConstraint(f model.Formula, params []model.CharID) {
	s.ready = false
	s.constraints = append(s.constraints, evalConstraint{f: f, params: params})
}

// OpenContext marks the constraint list and starts collecting removals.
func (s *SimpleSolver) OpenContext() {
	s.scopes = append(s.scopes, simpleScope{constraintMark: len(s.constraints)})
}

// CloseContext drops the context's constraints and revives the codes it
// removed.
func (s *SimpleSolver) CloseContext() {
	if len(s.scopes) == 0 {
		panic("solver: CloseContext without matching OpenContext")
	}
	top := s.scopes[len(s.scopes)-1]
	s.scopes = s.scopes[:len(s.scopes)-1]
	s.constraints = s.constraints[:top.constraintMark]
	s.live = append(s.live, top.removed...)
	s.ready = false
}

// testSat checks the live code at position i against all constraints; a
// failing code is swap-removed and logged in the innermost context. Reports
// whether the code survived.
func (s *SimpleSolver) testSat(i int) bool {
	code := bitsetCode{b: s.codes[s.live[i]]}
	ok := true
	for _, c := range s.constraints {
		var ctx *model.ParamCtx
		if c.params != nil {
			ctx = &model.ParamCtx{Params: c.params, Source: s.src}
		}
		if !c.f.Eval(code, ctx) {
			ok = false
			break
		}
	}
	if ok {
		return true
	}
	if len(s.scopes) > 0 {
		top := &s.scopes[len(s.scopes)-1]
		top.removed = append(top.removed, s.live[i])
	}
	s.live[i] = s.live[len(s.live)-1]
	s.live = s.live[:len(s.live)-1]
	return false
}

// update settles the whole live list against the constraints.
func (s *SimpleSolver) update() {
	for i := len(s.live) - 1; i >= 0; i-- {
		s.testSat(i)
	}
	s.ready = true
}

// removeUntilSat shrinks the live list until position start holds a
// satisfying code or the list runs out.
func (s *SimpleSolver) removeUntilSat(start int) {
	for len(s.live) > start && !s.testSat(start) {
	}
}

// Satisfiable reports whether some enumerated code satisfies every
// constraint.
func (s *SimpleSolver) Satisfiable() bool {
	defer s.stats.sat()()
	s.removeUntilSat(0)
	return len(s.live) > 0
}

// OnlyOneModel reports whether exactly one live code remains. It must
// follow a positive Satisfiable.
func (s *SimpleSolver) OnlyOneModel() bool {
	defer s.stats.sat()()
	if len(s.live) == 0 {
		panic("solver: OnlyOneModel without a preceding satisfiable state")
	}
	s.removeUntilSat(1)
	return len(s.live) == 1
}

// MustBeTrue reports whether id holds in every live code.
func (s *SimpleSolver) MustBeTrue(id model.VarID) bool {
	defer s.stats.fixed()()
	if !s.ready {
		s.update()
	}
	for _, x := range s.live {
		if !s.codes[x].Test(uint(id)) {
			return false
		}
	}
	return true
}

// MustBeFalse reports whether id fails in every live code.
func (s *SimpleSolver) MustBeFalse(id model.VarID) bool {
	defer s.stats.fixed()()
	if !s.ready {
		s.update()
	}
	for _, x := range s.live {
		if s.codes[x].Test(uint(id)) {
			return false
		}
	}
	return true
}

// NumFixedVars counts variables taking the same value in every live code.
func (s *SimpleSolver) NumFixedVars() int {
	defer s.stats.fixed()()
	if !s.ready {
		s.update()
	}
	canBeFalse := make([]bool, s.numVars+1)
	canBeTrue := make([]bool, s.numVars+1)
	for _, x := range s.live {
		for id := 1; id <= s.numVars; id++ {
			if s.codes[x].Test(uint(id)) {
				canBeTrue[id] = true
			} else {
				canBeFalse[id] = true
			}
		}
	}
	fixed := 0
	for id := 1; id <= s.numVars; id++ {
		if !(canBeTrue[id] && canBeFalse[id]) {
			fixed++
		}
	}
	return fixed
}

// NumModels counts the live codes.
func (s *SimpleSolver) NumModels() int {
	defer s.stats.models()()
	if !s.ready {
		s.update()
	}
	return len(s.live)
}

// GenerateModels converts the live codes back to bool slices.
func (s *SimpleSolver) GenerateModels() [][]bool {
	defer s.stats.models()()
	if !s.ready {
		s.update()
	}
	result := make([][]bool, 0, len(s.live))
	for _, x := range s.live {
		result = append(result, s.toBools(x))
	}
	return result
}

// Assignment returns the first live code.
func (s *SimpleSolver) Assignment() []bool {
	if len(s.live) == 0 {
		panic("solver: Assignment on an unsatisfiable state")
	}
	return s.toBools(s.live[0])
}

func (s *SimpleSolver) toBools(x int) []bool {
	m := make([]bool, s.numVars+1)
	for id := 1; id <= s.numVars; id++ {
		m[id] = s.codes[x].Test(uint(id))
	}
	return m
}

// Stats returns the accumulated statistics.
func (s *SimpleSolver) Stats() *Stats { return s.stats }

// String renders the restriction plus the recorded constraints.
func (s *SimpleSolver) String() string {
	parts := []string{}
	if s.restriction != nil {
		parts = append(parts, s.restriction.Pretty(false, nil))
	}
	for _, c := range s.constraints {
		var ctx *model.ParamCtx
		if c.params != nil {
			ctx = &model.ParamCtx{Params: c.params, Source: s.src}
		}
		parts = append(parts, c.f.Pretty(false, ctx))
	}
	if len(parts) == 0 {
		return "()"
	}
	return strings.Join(parts, " & ")
}
