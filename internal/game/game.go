// Package game holds the declarative description of a deduction game: the
// variables, the initial restriction, the alphabet, the mapping tables and
// the experiment templates. A Game is populated once by the parser and is
// immutable afterwards.
package game

import (
	"fmt"
	"strings"

	"github.com/breakerlab/deduce/internal/canon"
	"github.com/breakerlab/deduce/internal/model"
)

// Game owns everything a declaration defines. Variable ids are dense in
// [1, NumVars()].
type Game struct {
	vars        []*model.Variable
	varIDs      map[string]model.VarID
	restriction model.Formula
	alphabet    []string
	mappings    [][]model.VarID
	mappingIDs  map[string]model.MapID
	expTypes    []*ExpType
}

// New returns an empty game ready to be populated by the parser.
func New() *Game {
	return &Game{
		varIDs:     make(map[string]model.VarID),
		mappingIDs: make(map[string]model.MapID),
	}
}

// DeclareVar registers a new variable and returns its leaf node. Ids are
// assigned in declaration order starting at 1.
func (g *Game) DeclareVar(name string) (*model.Variable, error) {
	if _, ok := g.varIDs[name]; ok {
		return nil, fmt.Errorf("variable %q declared twice", name)
	}
	v := &model.Variable{Name: name, ID: len(g.vars) + 1}
	g.vars = append(g.vars, v)
	g.varIDs[name] = v.ID
	return v, nil
}

// Var returns the interned leaf of a declared variable.
func (g *Game) Var(name string) (*model.Variable, bool) {
	id, ok := g.varIDs[name]
	if !ok {
		return nil, false
	}
	return g.vars[id-1], true
}

// Vars returns the declared variables in id order.
func (g *Game) Vars() []*model.Variable { return g.vars }

// NumVars returns the number of declared variables.
func (g *Game) NumVars() int { return len(g.vars) }

// AddRestriction conjoins f onto the initial restriction.
func (g *Game) AddRestriction(f model.Formula) {
	if g.restriction == nil {
		g.restriction = f
		return
	}
	g.restriction = model.NewAnd(g.restriction, f)
}

// Restriction returns the initial restriction; nil if none was declared.
func (g *Game) Restriction() model.Formula { return g.restriction }

// SetAlphabet declares the experiment alphabet. It may be set only once.
func (g *Game) SetAlphabet(symbols []string) error {
	if len(g.alphabet) > 0 {
		return fmt.Errorf("alphabet redefined")
	}
	g.alphabet = append(g.alphabet, symbols...)
	return nil
}

// Alphabet returns the ordered symbol names.
func (g *Game) Alphabet() []string { return g.alphabet }

// AddMapping declares a mapping table from alphabet characters to variables.
// The table length must match the alphabet size.
func (g *Game) AddMapping(name string, vars []*model.Variable) (model.MapID, error) {
	if _, ok := g.mappingIDs[name]; ok {
		return 0, fmt.Errorf("mapping %q declared twice", name)
	}
	if len(vars) != len(g.alphabet) {
		return 0, fmt.Errorf("mapping %q has %d entries, alphabet has %d symbols",
			name, len(vars), len(g.alphabet))
	}
	id := len(g.mappings)
	table := make([]model.VarID, len(vars))
	for i, v := range vars {
		table[i] = v.ID
	}
	g.mappings = append(g.mappings, table)
	g.mappingIDs[name] = id
	return id, nil
}

// MappingID resolves a mapping name.
func (g *Game) MappingID(name string) (model.MapID, bool) {
	id, ok := g.mappingIDs[name]
	return id, ok
}

// MappingValue implements model.MappingSource.
func (g *Game) MappingValue(m model.MapID, c model.CharID) model.VarID {
	return g.mappings[m][c]
}

// VariableName implements model.MappingSource.
func (g *Game) VariableName(id model.VarID) string {
	return g.vars[id-1].Name
}

// AddExpType registers a new experiment template.
func (g *Game) AddExpType(name string, arity int) *ExpType {
	e := newExpType(g, name, arity)
	g.expTypes = append(g.expTypes, e)
	return e
}

// ExpTypes returns the experiment templates in declaration order.
func (g *Game) ExpTypes() []*ExpType { return g.expTypes }

// ParamsToString renders a parameter tuple using the alphabet symbols.
func (g *Game) ParamsToString(params []model.CharID) string {
	parts := make([]string, len(params))
	for i, a := range params {
		parts[i] = g.alphabet[a]
	}
	return strings.Join(parts, " ")
}

// Precompute finishes construction: per-template used-variable sets and
// interchangeability tables. Must run once after parsing, before any
// experiment generation.
func (g *Game) Precompute() {
	for _, e := range g.expTypes {
		e.precompute()
	}
}

// BaseGraph allocates the literal seed of a knowledge graph: two vertices
// per variable (positive literal at 2(id−1), negative at 2(id−1)+1) joined
// in both directions, colored by the equivalence grouping. A nil grouping
// colors all literals alike. The second result is the color base for
// operator vertices.
func (g *Game) BaseGraph(groups []int) (*canon.Digraph, int) {
	kg := canon.NewDigraph()
	maxGroup := 0
	for _, v := range g.vars {
		color := 0
		if groups != nil {
			color = groups[v.ID]
		}
		if color > maxGroup {
			maxGroup = color
		}
		pos := kg.AddVertex(color)
		neg := kg.AddVertex(color)
		kg.AddEdge(pos, neg)
		kg.AddEdge(neg, pos)
	}
	return kg, maxGroup + 1
}
