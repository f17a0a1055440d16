// Package solver provides incremental satisfiability back-ends over the
// formula AST: a CNF back-end on top of a SAT engine and an enumerating
// back-end that keeps the model list explicit. Both satisfy the same
// contract and are interchangeable from the caller's point of view.
package solver

import (
	"time"

	"github.com/breakerlab/deduce/internal/model"
)

// Stats accumulates per-solver call counters and wall-clock time.
type Stats struct {
	SatCalls    int
	SatTime     time.Duration
	FixedCalls  int
	FixedTime   time.Duration
	ModelsCalls int
	ModelsTime  time.Duration
}

func (s *Stats) sat() func() {
	s.SatCalls++
	start := time.Now()
	return func() { s.SatTime += time.Since(start) }
}

func (s *Stats) fixed() func() {
	s.FixedCalls++
	start := time.Now()
	return func() { s.FixedTime += time.Since(start) }
}

func (s *Stats) models() func() {
	s.ModelsCalls++
	start := time.Now()
	return func() { s.ModelsTime += time.Since(start) }
}

// Solver is the contract shared by the back-ends.
//
// Contexts nest: every OpenContext must be matched by exactly one
// CloseContext, which undoes all constraints added since the matching open.
// Violating the discipline is a programmer error and panics.
type Solver interface {
	// AddConstraint permanently adds a parameter-free formula to the current
	// context.
	AddConstraint(f model.Formula)
	// AddParamConstraint adds a formula instantiated under a parameter tuple.
	AddParamConstraint(f model.Formula, params []model.CharID)

	OpenContext()
	CloseContext()

	// MustBeTrue reports whether the variable is forced to true by the
	// current constraint set. id must be positive.
	MustBeTrue(id model.VarID) bool
	// MustBeFalse reports whether the variable is forced to false.
	MustBeFalse(id model.VarID) bool
	// NumFixedVars counts variables forced to either value.
	NumFixedVars() int

	// Satisfiable reports whether the current constraint set has a model.
	Satisfiable() bool
	// OnlyOneModel reports whether the model found by the immediately
	// preceding successful Satisfiable call is unique. Calling it in any
	// other state is a contract violation.
	OnlyOneModel() bool

	// NumModels counts models over the original variables.
	NumModels() int
	// GenerateModels enumerates all models over the original variables. Each
	// model is indexed by variable id, index 0 unused.
	GenerateModels() [][]bool

	// Assignment returns the last satisfying assignment, indexed by variable
	// id, index 0 unused.
	Assignment() []bool

	Stats() *Stats

	// String renders the current constraint set for diagnostics.
	String() string
}
