package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakerlab/deduce/internal/model"
)

func buildGame(t *testing.T) *Game {
	t.Helper()
	g := New()
	var vars []*model.Variable
	for _, n := range []string{"a", "b", "c"} {
		v, err := g.DeclareVar(n)
		require.NoError(t, err)
		vars = append(vars, v)
	}
	require.NoError(t, g.SetAlphabet([]string{"A", "B", "C"}))
	_, err := g.AddMapping("f", vars)
	require.NoError(t, err)
	return g
}

func TestDeclareVarAssignsDenseIDs(t *testing.T) {
	g := buildGame(t)
	assert.Equal(t, 3, g.NumVars())
	for i, v := range g.Vars() {
		assert.Equal(t, i+1, v.ID)
	}
	v, ok := g.Var("b")
	require.True(t, ok)
	assert.Equal(t, 2, v.ID)
	_, ok = g.Var("z")
	assert.False(t, ok)
}

func TestDuplicateVariable(t *testing.T) {
	g := New()
	_, err := g.DeclareVar("a")
	require.NoError(t, err)
	_, err = g.DeclareVar("a")
	assert.Error(t, err)
}

func TestAlphabetRedefinition(t *testing.T) {
	g := New()
	require.NoError(t, g.SetAlphabet([]string{"x"}))
	assert.Error(t, g.SetAlphabet([]string{"y"}))
}

func TestMappingValidation(t *testing.T) {
	g := New()
	a, _ := g.DeclareVar("a")
	require.NoError(t, g.SetAlphabet([]string{"x", "y"}))
	_, err := g.AddMapping("f", []*model.Variable{a})
	assert.Error(t, err, "table length must match the alphabet")

	b, _ := g.DeclareVar("b")
	_, err = g.AddMapping("f", []*model.Variable{a, b})
	require.NoError(t, err)
	_, err = g.AddMapping("f", []*model.Variable{a, b})
	assert.Error(t, err, "mapping redefinition")
}

func TestMappingValue(t *testing.T) {
	g := buildGame(t)
	id, ok := g.MappingID("f")
	require.True(t, ok)
	assert.Equal(t, 1, g.MappingValue(id, 0))
	assert.Equal(t, 3, g.MappingValue(id, 2))
	assert.Equal(t, "c", g.VariableName(3))
}

func TestAddRestrictionConjoins(t *testing.T) {
	g := buildGame(t)
	a, _ := g.Var("a")
	b, _ := g.Var("b")
	g.AddRestriction(a)
	g.AddRestriction(b)
	and, ok := g.Restriction().(*model.And)
	require.True(t, ok)
	assert.Equal(t, 2, and.ChildCount())
}

func TestBaseGraph(t *testing.T) {
	g := buildGame(t)
	kg, colorBase := g.BaseGraph(nil)
	assert.Equal(t, 6, kg.NumVertices(), "two literal vertices per variable")
	assert.Equal(t, 1, colorBase)

	groups := []int{0, 1, 1, 2} // index by id
	kg, colorBase = g.BaseGraph(groups)
	assert.Equal(t, 2+1, colorBase)
	assert.Equal(t, 1, kg.Color(0))
	assert.Equal(t, 1, kg.Color(1))
	assert.Equal(t, 2, kg.Color(4))
}

func expGame(t *testing.T) (*Game, *ExpType) {
	g := buildGame(t)
	e := g.AddExpType("pair", 2)
	require.NoError(t, e.ParamsDistinct([]int{1, 2}))
	require.NoError(t, e.ParamsSorted([]int{1, 2}))
	f, _ := g.MappingID("f")
	both := model.NewAnd(
		&model.MappingRef{Ident: "f", Map: f, Param: 0},
		&model.MappingRef{Ident: "f", Map: f, Param: 1},
	)
	require.NoError(t, e.AddOutcome("both", both, false))
	require.NoError(t, e.AddOutcome("nope", both.Neg(), false))
	g.Precompute()
	return g, e
}

func TestParamsRelations(t *testing.T) {
	_, e := expGame(t)
	assert.True(t, e.DifferentAt(0, 1))
	assert.True(t, e.DifferentAt(1, 0))
	assert.True(t, e.SmallerAt(1, 0))
	assert.False(t, e.SmallerAt(0, 1))
	assert.Equal(t, []int{0}, e.SmallerSet(1))
}

func TestParamsValidation(t *testing.T) {
	g := buildGame(t)
	e := g.AddExpType("e", 2)
	assert.Error(t, e.ParamsDistinct([]int{0, 1}))
	assert.Error(t, e.ParamsDistinct([]int{1, 3}))
	assert.Error(t, e.ParamsSorted([]int{2, 1}))
}

func TestNumParametrizations(t *testing.T) {
	_, e := expGame(t)
	// Strictly increasing pairs over a 3-letter alphabet.
	assert.Equal(t, 3, e.NumParametrizations())
}

func TestPrecomputeUsed(t *testing.T) {
	g, e := expGame(t)
	f, _ := g.MappingID("f")
	assert.Equal(t, []model.MapID{f}, e.UsedMaps(0))
	assert.Equal(t, []model.MapID{f}, e.UsedMaps(1))
	assert.False(t, e.UsesVar(1))
}

func TestInterchangeable(t *testing.T) {
	// One position per mapping: every character stays untied.
	g := New()
	var vars []*model.Variable
	for _, n := range []string{"a", "b"} {
		v, err := g.DeclareVar(n)
		require.NoError(t, err)
		vars = append(vars, v)
	}
	require.NoError(t, g.SetAlphabet([]string{"x", "y"}))
	f, err := g.AddMapping("f", vars)
	require.NoError(t, err)
	e := g.AddExpType("probe", 1)
	require.NoError(t, e.AddOutcome("on", &model.MappingRef{Ident: "f", Map: f, Param: 0}, false))
	g.Precompute()
	assert.True(t, e.Interchangeable(0, 0))
	assert.True(t, e.Interchangeable(0, 1))

	// A direct variable reference ties the characters that resolve to it.
	g2 := New()
	vars = nil
	for _, n := range []string{"a", "b"} {
		v, err := g2.DeclareVar(n)
		require.NoError(t, err)
		vars = append(vars, v)
	}
	require.NoError(t, g2.SetAlphabet([]string{"x", "y"}))
	f2, err := g2.AddMapping("f", vars)
	require.NoError(t, err)
	e2 := g2.AddExpType("probe", 1)
	require.NoError(t, e2.AddOutcome("on", model.NewAnd(
		&model.MappingRef{Ident: "f", Map: f2, Param: 0},
		vars[0],
	), false))
	g2.Precompute()
	assert.False(t, e2.Interchangeable(0, 0), "resolves to the referenced variable")
	assert.True(t, e2.Interchangeable(0, 1))
}

func TestFinalOutcome(t *testing.T) {
	g := buildGame(t)
	e := g.AddExpType("e", 1)
	a, _ := g.Var("a")
	require.NoError(t, e.AddOutcome("plain", a, false))
	assert.Equal(t, -1, e.FinalOutcome())
	require.NoError(t, e.AddOutcome("done", a.Neg(), true))
	assert.Equal(t, 1, e.FinalOutcome())
	assert.Error(t, e.AddOutcome("again", a, true))
}
