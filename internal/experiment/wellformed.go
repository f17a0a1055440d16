package experiment

import (
	"github.com/breakerlab/deduce/internal/game"
	"github.com/breakerlab/deduce/internal/model"
	"github.com/breakerlab/deduce/internal/solver"
)

// Violation is a counter-example to well-formedness: a code and a
// parametrization under which the outcomes are not mutually exclusive and
// exhaustive.
type Violation struct {
	Type       *game.ExpType
	Params     []model.CharID
	Assignment []bool
}

// CheckWellFormed verifies that for every template and every admissible
// parametrization, the restriction forces exactly one outcome:
// R → Exactly-1(outcomes) must be a tautology. A game without a declared
// restriction has R = true, so the outcomes themselves must be exhaustive
// and exclusive. The first failing parametrization is returned as a
// counter-example.
func CheckWellFormed(g *game.Game, s solver.Solver) *Violation {
	gen := NewGenerator(g, s, nil)
	for _, t := range g.ExpTypes() {
		outcomes := make([]model.Formula, len(t.Outcomes()))
		for i, o := range t.Outcomes() {
			outcomes[i] = o.Formula
		}
		var exactlyOne model.Formula = &model.Exactly{K: 1, Children: outcomes}
		var check model.Formula
		if g.Restriction() != nil {
			check = &model.Not{C: &model.Implies{L: g.Restriction(), R: exactlyOne}}
		} else {
			check = exactlyOne.Neg()
		}
		for _, params := range gen.GenParams(t) {
			s.OpenContext()
			s.AddParamConstraint(check, params)
			if s.Satisfiable() {
				v := &Violation{Type: t, Params: params, Assignment: s.Assignment()}
				s.CloseContext()
				return v
			}
			s.CloseContext()
		}
	}
	return nil
}
