package strategy

import (
	"bufio"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakerlab/deduce/internal/experiment"
	"github.com/breakerlab/deduce/internal/game"
	"github.com/breakerlab/deduce/internal/parser"
	"github.com/breakerlab/deduce/internal/solver"
)

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

func testEnv(g *game.Game, input string) *Env {
	return &Env{
		Game: g,
		Rand: rand.New(rand.NewSource(1)),
		In:   bufio.NewReader(strings.NewReader(input)),
		Out:  io.Discard,
	}
}

// switchesOptions generates the root options of the switches game:
// index 0 probes the s1/s2 class (models on/off = 1/4),
// index 1 probes the s3/s4 class (models on/off = 2/3).
func switchesOptions(t *testing.T) (*game.Game, []*experiment.Option) {
	t.Helper()
	g := loadGame(t, switchesSource)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	options := experiment.NewGenerator(g, s, nil).Options()
	require.Len(t, options, 2)
	return g, options
}

func TestBreakerMinNum(t *testing.T) {
	g, options := switchesOptions(t)
	// max models: probe1 -> 4, probe3 -> 3.
	assert.Equal(t, 1, Breakers["minnum"].Fn(testEnv(g, ""), options))
}

func TestBreakerExpNum(t *testing.T) {
	g, options := switchesOptions(t)
	// expected residual: (1+16)/5 = 3.4 vs (4+9)/5 = 2.6.
	assert.Equal(t, 1, Breakers["expnum"].Fn(testEnv(g, ""), options))
}

func TestBreakerEntropy(t *testing.T) {
	g, options := switchesOptions(t)
	// H(0.2, 0.8) < H(0.4, 0.6).
	assert.Equal(t, 1, Breakers["entropy"].Fn(testEnv(g, ""), options))
}

func TestBreakerParts(t *testing.T) {
	g, options := switchesOptions(t)
	// Both options have two satisfiable outcomes; the first wins the tie.
	assert.Equal(t, 0, Breakers["parts"].Fn(testEnv(g, ""), options))
}

func TestBreakerFixed(t *testing.T) {
	g, options := switchesOptions(t)
	// Worst-case fixed vars: probe1 -> min(4, 1) = 1, probe3 -> min(3, 2) = 2.
	assert.Equal(t, 1, Breakers["fixed"].Fn(testEnv(g, ""), options))
}

func TestBreakerInteractive(t *testing.T) {
	g, options := switchesOptions(t)
	// Rejects out-of-range input, then accepts option 1.
	env := testEnv(g, "9\n1\n")
	assert.Equal(t, 1, Breakers["interactive"].Fn(env, options))
}

func TestMakerMaxNum(t *testing.T) {
	g, options := switchesOptions(t)
	// probe3: off keeps 3 codes, on keeps 2.
	assert.Equal(t, 1, Makers["maxnum"].Fn(testEnv(g, ""), options[1]))
}

func TestMakerFixed(t *testing.T) {
	g, options := switchesOptions(t)
	// probe3: on fixes 3 vars, off fixes 2.
	assert.Equal(t, 1, Makers["fixed"].Fn(testEnv(g, ""), options[1]))
}

func TestMakerRandomPicksSatOutcome(t *testing.T) {
	g, options := switchesOptions(t)
	for seed := int64(0); seed < 16; seed++ {
		env := testEnv(g, "")
		env.Rand = rand.New(rand.NewSource(seed))
		oid := Makers["random"].Fn(env, options[0])
		assert.True(t, options[0].IsOutcomeSat(oid))
	}
}

func TestMakerInteractiveRejectsUnsat(t *testing.T) {
	src := `
VARIABLES a, b
RESTRICTION a & !b
ALPHABET A, B
MAPPING f [a, b]
EXPERIMENT probe(1) {
  OUTCOME on: f$1;
  OUTCOME off: !f$1;
}
`
	g := loadGame(t, src)
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	options := experiment.NewGenerator(g, s, nil).Options()
	require.NotEmpty(t, options)
	o := options[0]
	// Only one of the outcomes is satisfiable; feed the unsat one first.
	sat := 0
	if !o.IsOutcomeSat(0) {
		sat = 1
	}
	input := "1\n0\n" // tries the unsat outcome first, then the sat one
	if sat == 1 {
		input = "0\n1\n"
	}
	choice := Makers["interactive"].Fn(testEnv(g, input), o)
	assert.Equal(t, sat, choice)
	assert.True(t, o.IsOutcomeSat(choice))
}

func TestRegistries(t *testing.T) {
	for _, name := range []string{"interactive", "random", "parts", "minnum", "expnum", "entropy", "fixed"} {
		_, ok := Breakers[name]
		assert.True(t, ok, "missing breaker %q", name)
	}
	for _, name := range []string{"interactive", "random", "maxnum", "fixed"} {
		_, ok := Makers[name]
		assert.True(t, ok, "missing maker %q", name)
	}
}
