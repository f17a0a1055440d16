package game

import (
	"fmt"
	"sort"

	"github.com/breakerlab/deduce/internal/model"
)

// Outcome is one possible response to an experiment.
type Outcome struct {
	Name    string
	Formula model.Formula
	// Final marks the outcome that ends the game by itself (the code-maker
	// has nothing left to hide). At most one outcome of a template is final.
	Final bool
}

// ExpType is an experiment template: a name, a parameter arity, the outcome
// formulas, and the admissibility relations on parameter positions.
type ExpType struct {
	game  *Game
	name  string
	arity int

	outcomes []Outcome

	// different[e] holds the positions that must carry a character distinct
	// from position e; smaller[e] holds the positions whose character must be
	// strictly smaller than position e's.
	different []map[int]bool
	smaller   []map[int]bool

	// Precomputed by precompute().
	usedMaps        []map[model.MapID]bool
	usedMapsSorted  [][]model.MapID
	usedVars        map[model.VarID]bool
	interchangeable [][]bool
}

func newExpType(g *Game, name string, arity int) *ExpType {
	e := &ExpType{
		game:      g,
		name:      name,
		arity:     arity,
		different: make([]map[int]bool, arity),
		smaller:   make([]map[int]bool, arity),
		usedVars:  make(map[model.VarID]bool),
	}
	for i := 0; i < arity; i++ {
		e.different[i] = make(map[int]bool)
		e.smaller[i] = make(map[int]bool)
	}
	return e
}

func (e *ExpType) Name() string        { return e.name }
func (e *ExpType) Arity() int          { return e.arity }
func (e *ExpType) Outcomes() []Outcome { return e.outcomes }

// FinalOutcome returns the index of the final outcome, or -1.
func (e *ExpType) FinalOutcome() int {
	for i, o := range e.outcomes {
		if o.Final {
			return i
		}
	}
	return -1
}

// AddOutcome appends an outcome to the template.
func (e *ExpType) AddOutcome(name string, f model.Formula, final bool) error {
	if final && e.FinalOutcome() >= 0 {
		return fmt.Errorf("experiment %q declares two final outcomes", e.name)
	}
	e.outcomes = append(e.outcomes, Outcome{Name: name, Formula: f, Final: final})
	return nil
}

// ParamsDistinct records that the 1-based positions in list must carry
// pairwise distinct characters. The list itself is not retained.
func (e *ExpType) ParamsDistinct(list []int) error {
	for x, i := range list {
		for _, j := range list[x+1:] {
			if i < 1 || i > e.arity || j < 1 || j > e.arity {
				return fmt.Errorf("invalid parameter id in PARAMS_DISTINCT of %q", e.name)
			}
			e.different[i-1][j-1] = true
			e.different[j-1][i-1] = true
		}
	}
	return nil
}

// ParamsSorted records that the 1-based positions in list must carry
// strictly increasing characters. The list itself is not retained.
func (e *ExpType) ParamsSorted(list []int) error {
	for x, i := range list {
		for _, j := range list[x+1:] {
			if i < 1 || i >= j || j > e.arity {
				return fmt.Errorf("invalid parameter id or order in PARAMS_SORTED of %q", e.name)
			}
			e.smaller[j-1][i-1] = true
		}
	}
	return nil
}

// DifferentAt reports whether positions e1 and e2 must differ.
func (e *ExpType) DifferentAt(e1, e2 int) bool { return e.different[e1][e2] }

// SmallerAt reports whether position e2 must be strictly smaller than e1.
func (e *ExpType) SmallerAt(e1, e2 int) bool { return e.smaller[e1][e2] }

// SmallerSet returns the positions that must be smaller than n, ascending.
func (e *ExpType) SmallerSet(n int) []int { return sortedKeys(e.smaller[n]) }

// DifferentSet returns the positions that must differ from n, ascending.
func (e *ExpType) DifferentSet(n int) []int { return sortedKeys(e.different[n]) }

// UsedMaps returns the mapping ids referenced at parameter position d,
// ascending.
func (e *ExpType) UsedMaps(d int) []model.MapID { return e.usedMapsSorted[d] }

// UsesVar reports whether some outcome references variable v directly.
func (e *ExpType) UsesVar(v model.VarID) bool { return e.usedVars[v] }

// Interchangeable reports whether character a at position d is untied from
// the rest of the template (precomputed).
func (e *ExpType) Interchangeable(d int, a model.CharID) bool {
	return e.interchangeable[d][a]
}

// NumParametrizations counts the admissible tuples, ignoring symmetry.
func (e *ExpType) NumParametrizations() int {
	alph := len(e.game.alphabet)
	params := make([]model.CharID, e.arity)
	var count func(n int) int
	count = func(n int) int {
		if n == e.arity {
			return 1
		}
		total := 0
		for a := 0; a < alph; a++ {
			if !e.admissibleAt(params, n, a) {
				continue
			}
			params[n] = a
			total += count(n + 1)
		}
		return total
	}
	return count(0)
}

// admissibleAt checks the distinctness and order relations of character a at
// position n against the already-assigned prefix.
func (e *ExpType) admissibleAt(params []model.CharID, n int, a model.CharID) bool {
	for p := range e.different[n] {
		if p < n && params[p] == a {
			return false
		}
	}
	for p := range e.smaller[n] {
		if p < n && params[p] >= a {
			return false
		}
	}
	return true
}

// precompute fills usedMaps/usedVars from the outcome formulas and derives
// the interchangeability table.
func (e *ExpType) precompute() {
	e.usedMaps = make([]map[model.MapID]bool, e.arity)
	for i := range e.usedMaps {
		e.usedMaps[i] = make(map[model.MapID]bool)
	}
	for _, o := range e.outcomes {
		e.collectUsed(o.Formula)
	}
	e.usedMapsSorted = make([][]model.MapID, e.arity)
	for i, set := range e.usedMaps {
		e.usedMapsSorted[i] = sortedKeys(set)
	}

	alph := len(e.game.alphabet)
	e.interchangeable = make([][]bool, e.arity)
	for d := 0; d < e.arity; d++ {
		e.interchangeable[d] = make([]bool, alph)
		for a := 0; a < alph; a++ {
			e.interchangeable[d][a] = e.computeInterchangeable(d, a)
		}
	}
}

func (e *ExpType) collectUsed(f model.Formula) {
	switch n := f.(type) {
	case *model.MappingRef:
		if n.Param >= e.arity {
			panic(fmt.Sprintf("game: mapping %s$%d exceeds arity %d of %q",
				n.Ident, n.Param+1, e.arity, e.name))
		}
		e.usedMaps[n.Param][n.Map] = true
	case *model.Variable:
		e.usedVars[n.ID] = true
	default:
		for i := 0; i < f.ChildCount(); i++ {
			e.collectUsed(f.Child(i))
		}
	}
}

// computeInterchangeable decides whether character a at position d resolves
// only to variables that no other consistent position/character pair and no
// direct variable reference can touch.
func (e *ExpType) computeInterchangeable(d int, a model.CharID) bool {
	vars := make(map[model.VarID]bool)
	for f := range e.usedMaps[d] {
		v := e.game.MappingValue(f, a)
		vars[v] = true
		if e.usedVars[v] {
			return false
		}
	}
	alph := len(e.game.alphabet)
	for pos := 0; pos < e.arity; pos++ {
		if pos == d {
			continue
		}
		for b := 0; b < alph; b++ {
			// b at pos must be consistent with a at d.
			if a == b && e.different[pos][d] {
				continue
			}
			if a >= b && e.smaller[pos][d] {
				continue
			}
			for f := range e.usedMaps[pos] {
				if vars[e.game.MappingValue(f, b)] {
					return false
				}
			}
		}
	}
	return true
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
