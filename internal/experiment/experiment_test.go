package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakerlab/deduce/internal/canon"
	"github.com/breakerlab/deduce/internal/game"
	"github.com/breakerlab/deduce/internal/model"
	"github.com/breakerlab/deduce/internal/parser"
	"github.com/breakerlab/deduce/internal/solver"
)

const mastermindSource = `
VARIABLES x1a, x1b, x2a, x2b, x3a, x3b
RESTRICTION Exactly-1(x1a, x1b) & Exactly-1(x2a, x2b) & Exactly-1(x3a, x3b)
ALPHABET a, b
MAPPING p1 [x1a, x1b]
MAPPING p2 [x2a, x2b]
MAPPING p3 [x3a, x3b]
EXPERIMENT guess(3) {
  OUTCOME none: Exactly-0(p1$1, p2$2, p3$3);
  OUTCOME one: Exactly-1(p1$1, p2$2, p3$3);
  OUTCOME two: Exactly-2(p1$1, p2$2, p3$3);
  OUTCOME all: Exactly-3(p1$1, p2$2, p3$3);
}
`

const switchesSource = `
VARIABLES s[1-4]
RESTRICTION (s1 -> s3) & (s2 -> s4) & (!s3 | !s4)
ALPHABET w, x, y, z
MAPPING probe [s1, s2, s3, s4]
EXPERIMENT check(1) {
  OUTCOME on: probe$1;
  OUTCOME off: !probe$1;
}
`

func loadGame(t *testing.T, source string) *game.Game {
	t.Helper()
	g, errs := parser.ParseGame(source, "")
	require.Empty(t, errs)
	g.Precompute()
	return g
}

func TestVarGroupsOfSymmetricGame(t *testing.T) {
	g := loadGame(t, mastermindSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	gen := NewGenerator(g, s, nil)
	groups := gen.VarGroups()
	// All six variables are interchangeable under the initial restriction.
	for id := 2; id <= 6; id++ {
		assert.Equal(t, groups[1], groups[id])
	}
}

func TestVarGroupsOfAsymmetricGame(t *testing.T) {
	g := loadGame(t, switchesSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	gen := NewGenerator(g, s, nil)
	groups := gen.VarGroups()
	// The implication sources pair up, as do the sinks; the two pairs differ.
	assert.Equal(t, groups[1], groups[2])
	assert.Equal(t, groups[3], groups[4])
	assert.NotEqual(t, groups[1], groups[3])
}

func TestGenParamsSymmetryAtRoot(t *testing.T) {
	g := loadGame(t, mastermindSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	gen := NewGenerator(g, s, nil)
	params := gen.GenParams(g.ExpTypes()[0])
	// At the root every guess is equivalent to aaa.
	require.Len(t, params, 1)
	assert.Equal(t, []model.CharID{0, 0, 0}, params[0])
}

func TestGenParamsSwitches(t *testing.T) {
	g := loadGame(t, switchesSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	gen := NewGenerator(g, s, nil)
	params := gen.GenParams(g.ExpTypes()[0])
	// Probing s1~s2 and s3~s4 are the two distinct choices.
	require.Len(t, params, 2)
	assert.Equal(t, []model.CharID{0}, params[0])
	assert.Equal(t, []model.CharID{2}, params[1])
}

func TestGenParamsRespectsRelations(t *testing.T) {
	src := `
VARIABLES a, b, c
RESTRICTION AtLeast-1(a, b, c)
ALPHABET A, B, C
MAPPING f [a, b, c]
EXPERIMENT pair(2) {
  PARAMS_DISTINCT {1, 2}
  PARAMS_SORTED {1, 2}
  OUTCOME both: f$1 & f$2;
  OUTCOME nope: !(f$1 & f$2);
}
`
	g := loadGame(t, src)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	gen := NewGenerator(g, s, nil)
	params := gen.GenParams(g.ExpTypes()[0])
	require.NotEmpty(t, params)
	for _, p := range params {
		assert.Less(t, p[0], p[1], "tuples must be strictly sorted")
	}
}

func TestGenParamsDeterministic(t *testing.T) {
	g := loadGame(t, switchesSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	p1 := NewGenerator(g, s, nil).GenParams(g.ExpTypes()[0])
	p2 := NewGenerator(g, s, nil).GenParams(g.ExpTypes()[0])
	assert.Equal(t, p1, p2)
}

func TestGenParamsAfterOutcome(t *testing.T) {
	g := loadGame(t, mastermindSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	e := g.ExpTypes()[0]

	// Observing "one" for guess aaa ties the pegs to the guess.
	params := []model.CharID{0, 0, 0}
	s.AddParamConstraint(e.Outcomes()[1].Formula, params)
	history := []PlayedExp{{Type: e, Params: params, Outcome: 1}}
	gen := NewGenerator(g, s, history)

	next := gen.GenParams(e)
	assert.NotEmpty(t, next)
	// The colors are no longer interchangeable, so more tuples survive.
	assert.Greater(t, len(next), 1)
}

func TestGenParamsCanonicalInjectivity(t *testing.T) {
	g := loadGame(t, switchesSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	gen := NewGenerator(g, s, nil)
	e := g.ExpTypes()[0]
	params := gen.GenParams(e)
	require.NotEmpty(t, params)

	built := make([]*canon.Form, 0, len(params))
	for _, p := range params {
		kg, colorBase := g.BaseGraph(gen.VarGroups())
		ctx := &model.ParamCtx{Params: p, Source: g}
		for _, o := range e.Outcomes() {
			o.Formula.AddToGraph(kg, ctx, -1, colorBase)
		}
		built = append(built, kg.Canonical())
	}
	for i := 0; i < len(built); i++ {
		for j := i + 1; j < len(built); j++ {
			assert.False(t, built[i].Equal(built[j]),
				"tuples %v and %v have isomorphic knowledge graphs", params[i], params[j])
		}
	}
}

func TestGenParamsStableUnderSymmetricOutcome(t *testing.T) {
	// A parameterless experiment whose outcome is symmetric in all variables
	// leaves the equivalence coloring untouched, so the probe enumeration
	// must not change.
	src := `
VARIABLES s[1-4]
RESTRICTION (s1 -> s3) & (s2 -> s4) & (!s3 | !s4)
ALPHABET w, x, y, z
MAPPING probe [s1, s2, s3, s4]
EXPERIMENT check(1) {
  OUTCOME on: probe$1;
  OUTCOME off: !probe$1;
}
EXPERIMENT scan(0) {
  OUTCOME some: AtLeast-1(s1, s2, s3, s4);
  OUTCOME none: !AtLeast-1(s1, s2, s3, s4);
}
`
	g := loadGame(t, src)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	check, scan := g.ExpTypes()[0], g.ExpTypes()[1]

	before := NewGenerator(g, s, nil).GenParams(check)

	s.AddConstraint(scan.Outcomes()[0].Formula)
	history := []PlayedExp{{Type: scan, Params: nil, Outcome: 0}}
	after := NewGenerator(g, s, history).GenParams(check)

	assert.Equal(t, before, after)
}

func TestOptionMetrics(t *testing.T) {
	g := loadGame(t, mastermindSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	gen := NewGenerator(g, s, nil)
	options := gen.Options()
	require.Len(t, options, 1)
	o := options[0]

	// Exact matches of guess aaa over the 8 codes: C(3,k) codes with k
	// matching pegs.
	assert.Equal(t, 1, o.NumModelsForOutcome(0))
	assert.Equal(t, 3, o.NumModelsForOutcome(1))
	assert.Equal(t, 3, o.NumModelsForOutcome(2))
	assert.Equal(t, 1, o.NumModelsForOutcome(3))
	assert.Equal(t, 8, o.TotalNumModels())
	assert.Equal(t, 3, o.MaxNumModels())
	assert.Equal(t, 4, o.NumSatOutcomes())
	for i := 0; i < 4; i++ {
		assert.True(t, o.IsOutcomeSat(i))
	}
	// Outcomes 0 and 3 pin the code completely.
	assert.Equal(t, 6, o.NumFixedVarsForOutcome(0))
	assert.Equal(t, 6, o.NumFixedVarsForOutcome(3))

	// Metric queries must leave the solver state untouched.
	assert.Equal(t, 8, s.NumModels())
}

func TestCheckWellFormed(t *testing.T) {
	g := loadGame(t, mastermindSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	assert.Nil(t, CheckWellFormed(g, s))
}

func TestCheckWellFormedWithoutRestriction(t *testing.T) {
	// No RESTRICTION clause means R = true: all 2^n assignments are codes
	// and the outcomes alone must partition them.
	src := `
VARIABLES a, b
ALPHABET A, B
MAPPING f [a, b]
EXPERIMENT probe(1) {
  OUTCOME on: f$1;
  OUTCOME off: !f$1;
}
`
	g := loadGame(t, src)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	assert.Equal(t, 4, s.NumModels())
	assert.Nil(t, CheckWellFormed(g, s))
}

func TestCheckWellFormedWithoutRestrictionViolation(t *testing.T) {
	// Overlapping outcomes must still be reported without a restriction.
	src := `
VARIABLES a, b
ALPHABET A, B
MAPPING f [a, b]
EXPERIMENT probe(1) {
  OUTCOME on: f$1;
  OUTCOME other: a;
}
`
	g := loadGame(t, src)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	v := CheckWellFormed(g, s)
	require.NotNil(t, v)
	assert.Equal(t, "probe", v.Type.Name())
}

func TestCheckWellFormedViolation(t *testing.T) {
	// The outcomes are not exhaustive: a code with zero matches satisfies
	// neither.
	src := `
VARIABLES x1a, x1b
RESTRICTION Exactly-1(x1a, x1b)
ALPHABET a, b
MAPPING p1 [x1a, x1b]
EXPERIMENT guess(1) {
  OUTCOME hit: p1$1;
  OUTCOME zero: !x1a & !x1b;
}
`
	g := loadGame(t, src)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	v := CheckWellFormed(g, s)
	require.NotNil(t, v)
	assert.Equal(t, "guess", v.Type.Name())
	assert.NotEmpty(t, v.Assignment)
}
