package solver

import (
	"fmt"
	"strings"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/breakerlab/deduce/internal/model"
)

// CnfSolver is the CNF back-end: constraints go through the Tseitin
// transformation into an incremental SAT engine.
//
// Contexts are realized with activation literals. Every open context owns a
// fresh guard variable; clauses added inside carry the guard's negation and
// only bind while the guard is assumed. Closing a context permanently
// asserts the negated guard, which retires its clauses.
type CnfSolver struct {
	sat *gini.Gini
	src model.MappingSource

	numVars int // original variables: ids 1..numVars
	nextVar int // last allocated id, including Tseitin auxiliaries

	scopes  []cnfScope
	clauses [][]model.VarID // unguarded clause bodies, for String

	stats *Stats
}

// cnfStats is shared by all CNF solvers, like the per-back-end counters of
// the time overview.
var cnfStats Stats

// CnfStats returns the counters accumulated by every CnfSolver.
func CnfStats() *Stats { return &cnfStats }

type cnfScope struct {
	act        model.VarID
	clauseMark int
}

// NewCnfSolver creates a CNF solver over numVars variables and asserts the
// restriction, when given.
func NewCnfSolver(numVars int, src model.MappingSource, restriction model.Formula) *CnfSolver {
	s := &CnfSolver{
		sat:     gini.New(),
		src:     src,
		numVars: numVars,
		nextVar: numVars,
		stats:   &cnfStats,
	}
	if restriction != nil {
		s.AddConstraint(restriction)
	}
	return s
}

// ----------------------------------------------------------------------------
// model.ClauseSink
// ----------------------------------------------------------------------------

// AddClause adds a clause to the current context.
func (s *CnfSolver) AddClause(lits ...model.VarID) {
	s.clauses = append(s.clauses, lits)
	if len(s.scopes) > 0 {
		lits = append(append([]model.VarID(nil), lits...), -s.scopes[len(s.scopes)-1].act)
	}
	s.addRaw(lits)
}

// NewVar allocates a fresh auxiliary variable id.
func (s *CnfSolver) NewVar() model.VarID {
	s.nextVar++
	return s.nextVar
}

func (s *CnfSolver) addRaw(lits []model.VarID) {
	for _, l := range lits {
		if l == 0 {
			panic("solver: zero literal in clause")
		}
		s.sat.Add(s.lit(l))
	}
	s.sat.Add(z.LitNull)
}

func (s *CnfSolver) lit(v model.VarID) z.Lit {
	if v > 0 {
		return z.Var(v).Pos()
	}
	return z.Var(-v).Neg()
}

// ----------------------------------------------------------------------------
// Constraints and contexts
// ----------------------------------------------------------------------------

// AddConstraint Tseitin-transforms f into the current context.
func (s *CnfSolver) AddConstraint(f model.Formula) {
	model.EmitCNF(f, s, nil)
}

// AddParamConstraint Tseitin-transforms f under the parameter tuple.
func (s *CnfSolver) AddParamConstraint(f model.Formula, params []model.CharID) {
	model.EmitCNF(f, s, &model.ParamCtx{Params: params, Source: s.src})
}

// OpenContext starts a new activation scope.
func (s *CnfSolver) OpenContext() {
	s.scopes = append(s.scopes, cnfScope{act: s.NewVar(), clauseMark: len(s.clauses)})
}

// CloseContext retires every clause added since the matching OpenContext.
func (s *CnfSolver) CloseContext() {
	if len(s.scopes) == 0 {
		panic("solver: CloseContext without matching OpenContext")
	}
	top := s.scopes[len(s.scopes)-1]
	s.scopes = s.scopes[:len(s.scopes)-1]
	s.clauses = s.clauses[:top.clauseMark]
	s.addRaw([]model.VarID{-top.act})
}

// ----------------------------------------------------------------------------
// Queries
// ----------------------------------------------------------------------------

func (s *CnfSolver) solveWith(extra ...z.Lit) bool {
	for _, scope := range s.scopes {
		s.sat.Assume(s.lit(scope.act))
	}
	for _, m := range extra {
		s.sat.Assume(m)
	}
	return s.sat.Solve() == 1
}

// Satisfiable reports whether the current constraint set has a model.
func (s *CnfSolver) Satisfiable() bool {
	defer s.stats.sat()()
	return s.solveWith()
}

// MustBeTrue reports whether id is forced to true.
func (s *CnfSolver) MustBeTrue(id model.VarID) bool {
	if id <= 0 {
		panic("solver: MustBeTrue on non-positive id")
	}
	defer s.stats.fixed()()
	return !s.solveWith(s.lit(-id))
}

// MustBeFalse reports whether id is forced to false.
func (s *CnfSolver) MustBeFalse(id model.VarID) bool {
	if id <= 0 {
		panic("solver: MustBeFalse on non-positive id")
	}
	defer s.stats.fixed()()
	return !s.solveWith(s.lit(id))
}

// NumFixedVars counts the original variables forced to a value.
func (s *CnfSolver) NumFixedVars() int {
	defer s.stats.fixed()()
	r := 0
	for id := 1; id <= s.numVars; id++ {
		if !s.solveWith(s.lit(-id)) {
			r++
		}
		if !s.solveWith(s.lit(id)) {
			r++
		}
	}
	return r
}

// OnlyOneModel blocks the last satisfying assignment over the original
// variables and checks whether another model remains.
func (s *CnfSolver) OnlyOneModel() bool {
	defer s.stats.sat()()
	ass := s.Assignment()
	guard := s.NewVar()
	blocking := make([]model.VarID, 0, s.numVars+1)
	for id := 1; id <= s.numVars; id++ {
		if ass[id] {
			blocking = append(blocking, -id)
		} else {
			blocking = append(blocking, id)
		}
	}
	blocking = append(blocking, -guard)
	s.addRaw(blocking)
	another := s.solveWith(s.lit(guard))
	s.addRaw([]model.VarID{-guard})
	return !another
}

// forAllModels fixes the original variables one by one through assumptions
// and invokes the callback once per full model.
func (s *CnfSolver) forAllModels(id int, assumed []z.Lit, callback func()) {
	for _, m := range []z.Lit{s.lit(id), s.lit(-id)} {
		cand := make([]z.Lit, len(assumed), len(assumed)+1)
		copy(cand, assumed)
		cand = append(cand, m)
		if !s.solveWith(cand...) {
			continue
		}
		if id == s.numVars {
			callback()
		} else {
			s.forAllModels(id+1, cand, callback)
		}
	}
}

// NumModels counts the models over the original variables.
func (s *CnfSolver) NumModels() int {
	defer s.stats.models()()
	if s.numVars == 0 {
		return 0
	}
	k := 0
	s.forAllModels(1, nil, func() { k++ })
	return k
}

// GenerateModels enumerates all models over the original variables.
func (s *CnfSolver) GenerateModels() [][]bool {
	defer s.stats.models()()
	var models [][]bool
	if s.numVars == 0 {
		return models
	}
	s.forAllModels(1, nil, func() {
		models = append(models, s.Assignment())
	})
	return models
}

// Assignment reads the last model off the SAT engine.
func (s *CnfSolver) Assignment() []bool {
	result := make([]bool, s.numVars+1)
	for id := 1; id <= s.numVars; id++ {
		result[id] = s.sat.Value(s.lit(id))
	}
	return result
}

// Stats returns the accumulated statistics.
func (s *CnfSolver) Stats() *Stats { return s.stats }

// String renders the clause set with variable names.
func (s *CnfSolver) String() string {
	if len(s.clauses) == 0 {
		return "()"
	}
	parts := make([]string, len(s.clauses))
	for i, c := range s.clauses {
		parts[i] = s.prettyClause(c)
	}
	return strings.Join(parts, " & ")
}

func (s *CnfSolver) prettyClause(clause []model.VarID) string {
	if len(clause) == 0 {
		return "()"
	}
	parts := make([]string, len(clause))
	for i, l := range clause {
		a := l
		sign := ""
		if a < 0 {
			a = -a
			sign = "-"
		}
		if a <= s.numVars {
			parts[i] = sign + s.src.VariableName(a)
		} else {
			parts[i] = fmt.Sprintf("%s%d", sign, a)
		}
	}
	return "(" + strings.Join(parts, " | ") + ")"
}
