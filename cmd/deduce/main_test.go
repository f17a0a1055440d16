package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/breakerlab/deduce/internal/parser"
)

const noRestrictionSource = `
VARIABLES a, b
ALPHABET A, B
MAPPING f [a, b]
EXPERIMENT probe(1) {
  OUTCOME on: f$1;
  OUTCOME off: !f$1;
}
`

func TestPrintStatsWithoutRestriction(t *testing.T) {
	g, errs := parser.ParseGame(noRestrictionSource, "norestriction.game")
	require.Empty(t, errs)
	g.Precompute()
	require.NoError(t, printStats(g, "norestriction.game", len(noRestrictionSource)))
}

func TestRunDefaultModeWithoutRestriction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "norestriction.game")
	require.NoError(t, os.WriteFile(path, []byte(noRestrictionSource), 0o644))
	// No mode flags selected: the default path prints the overview and runs
	// the well-formed check.
	require.NoError(t, run(&options{}, path))
}
