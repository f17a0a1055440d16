package strategy

import (
	"math"
	"sort"

	"github.com/breakerlab/deduce/internal/canon"
	"github.com/breakerlab/deduce/internal/experiment"
	"github.com/breakerlab/deduce/internal/game"
	"github.com/breakerlab/deduce/internal/model"
	"github.com/breakerlab/deduce/internal/solver"
)

// stateInfo is the analysis result for one knowledge state: the optimal
// number of experiments to finish, the option to choose, and the successor
// state per outcome. A state with exp == nil and solved == false could not
// be finished within its bound; it is recomputed if a looser bound arrives.
type stateInfo struct {
	opt    float64
	bound  float64
	exp    *experiment.Option
	next   []int
	solved bool
}

type memoEntry struct {
	form *canon.Form
	id   int
}

// Optimal computes the minimal worst-case or average-case number of
// experiments for the code-breaker. States are memoized by the canonical
// form of their knowledge graph, which collapses isomorphic knowledge.
type Optimal struct {
	game  *game.Game
	slv   solver.Solver
	worst bool

	states  []stateInfo
	memo    map[uint64][]memoEntry
	history []experiment.PlayedExp
	init    int
}

// AnalyzeOptimal runs the recursive analysis from the solver's current
// state. bound is an exclusive upper bound on the value; the analysis fails
// (Success() == false) if no strategy fits under it.
func AnalyzeOptimal(g *game.Game, s solver.Solver, worst bool, bound float64) *Optimal {
	o := &Optimal{
		game:  g,
		slv:   s,
		worst: worst,
		memo:  make(map[uint64][]memoEntry),
	}
	o.init = o.currentState(bound)
	return o
}

// Success reports whether a strategy within the initial bound was found.
func (o *Optimal) Success() bool {
	st := &o.states[o.init]
	return st.exp != nil || st.solved
}

// Value returns the optimal number of experiments for the root state.
func (o *Optimal) Value() float64 { return o.states[o.init].opt }

// NumStates returns the number of distinct canonical knowledge states seen.
func (o *Optimal) NumStates() int { return len(o.states) }

func (o *Optimal) newState(bound float64) int {
	o.states = append(o.states, stateInfo{opt: -1, bound: bound})
	return len(o.states) - 1
}

// currentState looks the current knowledge state up in the memo, computing
// it on a miss — or recomputing it when it previously failed under a
// tighter bound.
func (o *Optimal) currentState(bound float64) int {
	gen := experiment.NewGenerator(o.game, o.slv, o.history)
	form := gen.Form()

	for _, entry := range o.memo[form.Hash()] {
		if !entry.form.Equal(form) {
			continue
		}
		id := entry.id
		st := &o.states[id]
		if st.exp == nil && !st.solved && st.bound < bound {
			st.bound = bound
			o.compute(gen, id, bound)
		}
		return id
	}

	id := o.newState(bound)
	o.memo[form.Hash()] = append(o.memo[form.Hash()], memoEntry{form: form, id: id})
	o.compute(gen, id, bound)
	return id
}

func (o *Optimal) compute(gen *experiment.Generator, id int, bound float64) {
	if o.slv.Satisfiable() && o.slv.OnlyOneModel() {
		o.markAsFinished(id)
		return
	}

	options := gen.Options()
	models := o.slv.NumModels()
	options, maxParts, solved := o.filterOptions(id, options, models)
	if solved {
		return
	}

	// Greedy order: try options with small worst outcomes first.
	sort.SliceStable(options, func(a, b int) bool {
		return options[a].MaxNumModels() < options[b].MaxNumModels()
	})

	best := -1
	for i, e := range options {
		next := make([]int, len(e.Type().Outcomes()))
		for j := range next {
			next[j] = -1
		}
		val := o.analyzeExperiment(e, next, bound, models, maxParts)
		if val < bound {
			bound = val
			best = i
			o.states[id].next = next
		}
	}
	if best > -1 {
		o.states[id].exp = options[best]
	}
	o.states[id].opt = bound
}

// filterOptions drops options with a single satisfiable outcome and detects
// options that partition the remaining models into singletons, which solve
// the game in one step (two, when the deciding outcome is not final).
func (o *Optimal) filterOptions(id int, options []*experiment.Option, models int) ([]*experiment.Option, int, bool) {
	finish := -1
	maxParts := 0
	for i := 0; i < len(options); i++ {
		parts := options[i].NumSatOutcomes()
		if parts > maxParts {
			maxParts = parts
		}
		if parts == models {
			finish = i
			final := options[i].Type().FinalOutcome()
			if final == -1 || options[i].IsOutcomeSat(final) {
				break // no better direct finisher can exist
			}
		}
		if parts == 1 {
			options[i] = options[len(options)-1]
			options = options[:len(options)-1]
			i--
		}
	}
	if finish == -1 {
		return options, maxParts, false
	}
	st := &o.states[id]
	st.exp = options[finish]
	st.solved = true
	final := options[finish].Type().FinalOutcome()
	switch {
	case final == -1:
		st.opt = 1
	case o.worst || !options[finish].IsOutcomeSat(final):
		st.opt = 2
	default:
		st.opt = 2 - 1/float64(models)
	}
	return options, maxParts, true
}

// analyzeExperiment evaluates one option against the bound, recursing into
// each satisfiable outcome with a derived sub-bound.
func (o *Optimal) analyzeExperiment(e *experiment.Option, next []int, bound float64, models, maxParts int) float64 {
	outcomes := e.Type().Outcomes()

	// Trivial lower bounds per outcome; for the worst case any outcome
	// already at the bound kills the option.
	val := 0.0
	lb := make([]float64, len(outcomes))
	for i := range outcomes {
		imodels := float64(e.NumModelsForOutcome(i))
		ibound := 1.0
		if imodels > 1 && maxParts > 1 {
			ibound = 1 + math.Log(imodels)/math.Log(float64(maxParts))
		}
		if o.worst && math.Ceil(ibound) >= bound {
			return bound
		}
		if !o.worst {
			lb[i] = ibound
			val += imodels / float64(models) * lb[i]
		}
	}
	if !o.worst && val >= bound {
		return bound
	}

	for i := range outcomes {
		if !e.IsOutcomeSat(i) {
			continue
		}
		o.slv.OpenContext()
		o.slv.AddParamConstraint(outcomes[i].Formula, e.Params())
		o.history = append(o.history, experiment.PlayedExp{
			Type:    e.Type(),
			Params:  e.Params(),
			Outcome: i,
		})

		imodels := float64(e.NumModelsForOutcome(i))
		var nbound float64
		if o.worst {
			nbound = bound - 1
		} else {
			// Chosen so that val + imodels/models·(1 + nbound − lb[i]) = bound.
			nbound = (bound-val)*float64(models)/imodels + lb[i] - 1
		}
		sub := o.currentState(nbound)
		next[i] = sub

		if o.worst {
			val = math.Max(val, 1+o.states[sub].opt)
		} else {
			val += (1 + o.states[sub].opt - lb[i]) * imodels / float64(models)
			lb[i] = 1 + o.states[sub].opt
		}

		o.history = o.history[:len(o.history)-1]
		o.slv.CloseContext()

		subFailed := o.states[sub].exp == nil && !o.states[sub].solved
		if val >= bound || subFailed {
			return bound
		}
	}
	return val
}

// markAsFinished records a state whose knowledge pins a single code. The
// value is 0, except when the last outcome taken was not the template's
// final outcome, in which case one closing experiment remains.
func (o *Optimal) markAsFinished(id int) {
	st := &o.states[id]
	st.solved = true
	st.opt = 0
	if len(o.history) == 0 {
		return
	}
	last := o.history[len(o.history)-1]
	final := last.Type.FinalOutcome()
	if final != -1 && last.Outcome != final {
		st.opt = 1
	}
}

// Simulate replays the worst-case strategy against a hidden code and
// returns the number of experiments needed, including the closing
// experiment of states that are solved but not finished.
//
// Memoized states may have been computed under an isomorphic relabeling of
// the current knowledge, so the stored per-state experiment is not usable
// directly. Instead each decision is re-derived in the current frame: the
// step picks any option achieving the state's memoized value, which is
// isomorphism-invariant. The solver must be at the root state; Simulate
// restores it before returning.
func (o *Optimal) Simulate(code model.Assignment) float64 {
	if !o.worst {
		panic("strategy: Simulate requires a worst-case analysis")
	}
	steps := 0.0
	opened := 0
	defer func() {
		for ; opened > 0; opened-- {
			o.history = o.history[:len(o.history)-1]
			o.slv.CloseContext()
		}
	}()

	for {
		if o.slv.Satisfiable() && o.slv.OnlyOneModel() {
			// Knowledge pins the code; a closing experiment remains unless
			// the last outcome taken was final.
			if n := len(o.history); n > 0 {
				last := o.history[n-1]
				if final := last.Type.FinalOutcome(); final != -1 && last.Outcome != final {
					steps++
				}
			}
			return steps
		}

		id := o.currentState(o.states[o.init].opt + 1)
		st := &o.states[id]
		if st.exp == nil && !st.solved {
			panic("strategy: simulating an unsolved state")
		}
		models := o.slv.NumModels()
		gen := experiment.NewGenerator(o.game, o.slv, o.history)
		e, finisher := o.pickOption(gen.Options(), st.opt, models)
		outcome := chooseOutcome(o.game, e, code)
		steps++
		if finisher {
			// The observed outcome decides the game; a non-final deciding
			// outcome costs one more experiment.
			if final := e.Type().FinalOutcome(); final != -1 && outcome != final {
				steps++
			}
			return steps
		}
		o.slv.OpenContext()
		o.slv.AddParamConstraint(e.Type().Outcomes()[outcome].Formula, e.Params())
		o.history = append(o.history, experiment.PlayedExp{
			Type:    e.Type(),
			Params:  e.Params(),
			Outcome: outcome,
		})
		opened++
	}
}

// pickOption returns an option achieving the state's optimal value in the
// current frame: a direct finisher when one exists, otherwise an option
// whose worst satisfiable outcome leads to a state worth opt−1 or less.
func (o *Optimal) pickOption(options []*experiment.Option, opt float64, models int) (*experiment.Option, bool) {
	for _, e := range options {
		if e.NumSatOutcomes() == models {
			return e, true
		}
	}
	for _, e := range options {
		if e.NumSatOutcomes() <= 1 {
			continue
		}
		val := 0.0
		for i := range e.Type().Outcomes() {
			if !e.IsOutcomeSat(i) {
				continue
			}
			o.slv.OpenContext()
			o.slv.AddParamConstraint(e.Type().Outcomes()[i].Formula, e.Params())
			o.history = append(o.history, experiment.PlayedExp{
				Type:    e.Type(),
				Params:  e.Params(),
				Outcome: i,
			})
			sub := o.currentState(opt)
			val = math.Max(val, 1+o.states[sub].opt)
			o.history = o.history[:len(o.history)-1]
			o.slv.CloseContext()
			if val > opt {
				break
			}
		}
		if val <= opt {
			return e, false
		}
	}
	panic("strategy: no option achieves the memoized value")
}

// chooseOutcome finds the outcome of e that the hidden code produces.
func chooseOutcome(g *game.Game, e *experiment.Option, code model.Assignment) int {
	ctx := &model.ParamCtx{Params: e.Params(), Source: g}
	for i, out := range e.Type().Outcomes() {
		if out.Formula.Eval(code, ctx) {
			return i
		}
	}
	panic("strategy: no outcome satisfied by the code; game is not well-formed")
}
