package experiment

import (
	"fmt"

	"github.com/breakerlab/deduce/internal/game"
	"github.com/breakerlab/deduce/internal/model"
	"github.com/breakerlab/deduce/internal/solver"
)

// Option is an experiment template instantiated with a parameter tuple,
// evaluated against the current knowledge. All per-outcome metrics are
// computed on demand inside a context of the borrowed solver and cached.
type Option struct {
	game   *game.Game
	slv    solver.Solver
	typ    *game.ExpType
	params []model.CharID
	index  int

	satKnown    []bool
	sat         []bool
	modelsKnown []bool
	models      []int
	fixedKnown  []bool
	fixed       []int
}

func newOption(g *game.Game, s solver.Solver, t *game.ExpType, params []model.CharID, index int) *Option {
	n := len(t.Outcomes())
	return &Option{
		game:        g,
		slv:         s,
		typ:         t,
		params:      params,
		index:       index,
		satKnown:    make([]bool, n),
		sat:         make([]bool, n),
		modelsKnown: make([]bool, n),
		models:      make([]int, n),
		fixedKnown:  make([]bool, n),
		fixed:       make([]int, n),
	}
}

// Type returns the experiment template.
func (o *Option) Type() *game.ExpType { return o.typ }

// Params returns the parameter tuple.
func (o *Option) Params() []model.CharID { return o.params }

// Index returns the option's position in the enumeration it came from.
func (o *Option) Index() int { return o.index }

// withOutcome runs query with outcome i's formula added in a fresh context.
func (o *Option) withOutcome(i int, query func()) {
	o.slv.OpenContext()
	o.slv.AddParamConstraint(o.typ.Outcomes()[i].Formula, o.params)
	query()
	o.slv.CloseContext()
}

// IsOutcomeSat reports whether outcome i is consistent with the knowledge.
func (o *Option) IsOutcomeSat(i int) bool {
	if !o.satKnown[i] {
		if o.modelsKnown[i] {
			o.sat[i] = o.models[i] > 0
		} else {
			o.withOutcome(i, func() { o.sat[i] = o.slv.Satisfiable() })
		}
		o.satKnown[i] = true
	}
	return o.sat[i]
}

// NumModelsForOutcome counts the models surviving outcome i.
func (o *Option) NumModelsForOutcome(i int) int {
	if !o.modelsKnown[i] {
		o.withOutcome(i, func() { o.models[i] = o.slv.NumModels() })
		o.modelsKnown[i] = true
		if !o.satKnown[i] {
			o.sat[i] = o.models[i] > 0
			o.satKnown[i] = true
		}
	}
	return o.models[i]
}

// NumFixedVarsForOutcome counts the variables forced under outcome i.
func (o *Option) NumFixedVarsForOutcome(i int) int {
	if !o.fixedKnown[i] {
		o.withOutcome(i, func() { o.fixed[i] = o.slv.NumFixedVars() })
		o.fixedKnown[i] = true
	}
	return o.fixed[i]
}

// NumSatOutcomes counts the outcomes consistent with the knowledge.
func (o *Option) NumSatOutcomes() int {
	n := 0
	for i := range o.typ.Outcomes() {
		if o.IsOutcomeSat(i) {
			n++
		}
	}
	return n
}

// TotalNumModels sums the per-outcome model counts.
func (o *Option) TotalNumModels() int {
	total := 0
	for i := range o.typ.Outcomes() {
		total += o.NumModelsForOutcome(i)
	}
	return total
}

// MaxNumModels returns the largest per-outcome model count.
func (o *Option) MaxNumModels() int {
	max := 0
	for i := range o.typ.Outcomes() {
		if v := o.NumModelsForOutcome(i); v > max {
			max = v
		}
	}
	return max
}

// ParamCtx returns the evaluation context of this option's tuple.
func (o *Option) ParamCtx() *model.ParamCtx {
	return &model.ParamCtx{Params: o.params, Source: o.game}
}

// Pretty renders the option as "name [ params ]".
func (o *Option) Pretty() string {
	return fmt.Sprintf("%s [ %s ]", o.typ.Name(), o.game.ParamsToString(o.params))
}
