// Command deduce analyzes deduction games: it checks a game declaration for
// well-formedness, simulates play under selectable strategies, and computes
// optimal code-breaker strategies.
package main

import (
	"bufio"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/breakerlab/deduce/internal/experiment"
	"github.com/breakerlab/deduce/internal/game"
	"github.com/breakerlab/deduce/internal/parser"
	"github.com/breakerlab/deduce/internal/solver"
	"github.com/breakerlab/deduce/internal/strategy"
)

type options struct {
	info        bool
	simulation  bool
	analyze     bool
	worst       bool
	codemaker   string
	codebreaker string
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:           "deduce [flags] <game-file>",
		Short:         "Code-breaking game analyzer",
		Long:          "Analyzes deduction games: well-formedness, simulation and strategy analysis.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args[0])
		},
	}
	root.Flags().BoolVarP(&opts.info, "info", "i", false,
		"print basic information about the game")
	root.Flags().BoolVarP(&opts.simulation, "simulation", "s", false,
		"simulation mode; strategies selected by --codemaker, --codebreaker")
	root.Flags().BoolVarP(&opts.analyze, "analyze", "a", false,
		"analyze the codebreaker's strategy")
	root.Flags().BoolVar(&opts.worst, "worst", false,
		"optimize the worst case instead of the average case (with --codebreaker optimal)")
	root.Flags().StringVar(&opts.codemaker, "codemaker", "interactive",
		"codemaker strategy: "+makerNames())
	root.Flags().StringVar(&opts.codebreaker, "codebreaker", "interactive",
		"codebreaker strategy: "+breakerNames()+", or optimal (with --analyze)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts *options, filename string) error {
	source, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", filename, err)
	}

	start := time.Now()
	fmt.Print("Loading... ")
	g, parseErrs := parser.ParseGame(string(source), filename)
	if len(parseErrs) > 0 {
		fmt.Println()
		for _, e := range parseErrs {
			fmt.Fprintln(os.Stderr, "invalid input:", e)
		}
		return fmt.Errorf("%d errors in %s", len(parseErrs), filename)
	}
	fmt.Printf("[%.2fs]\n", time.Since(start).Seconds())
	g.Precompute()

	if opts.info || (!opts.simulation && !opts.analyze) {
		if err := printStats(g, filename, len(source)); err != nil {
			return err
		}
	}

	env := &strategy.Env{
		Game: g,
		Rand: rand.New(rand.NewSource(time.Now().UnixNano())),
		In:   bufio.NewReader(os.Stdin),
		Out:  os.Stdout,
	}

	if opts.simulation {
		breaker, err := lookupBreaker(opts.codebreaker)
		if err != nil {
			return err
		}
		maker, ok := strategy.Makers[opts.codemaker]
		if !ok {
			return fmt.Errorf("unknown codemaker strategy %q", opts.codemaker)
		}
		if err := checkInteractive(opts.codebreaker, opts.codemaker); err != nil {
			return err
		}
		simulate(g, env, breaker, maker)
	}

	if opts.analyze {
		if opts.codebreaker == "interactive" {
			return fmt.Errorf("cannot analyze strategy 'interactive'")
		}
		if opts.codebreaker == "optimal" {
			analyzeOptimal(g, opts.worst)
		} else {
			breaker, err := lookupBreaker(opts.codebreaker)
			if err != nil {
				return err
			}
			analyzeStrategy(g, env, breaker)
		}
	}

	timeOverview(start)
	return nil
}

func lookupBreaker(name string) (strategy.Breaker, error) {
	b, ok := strategy.Breakers[name]
	if !ok {
		return strategy.Breaker{}, fmt.Errorf("unknown codebreaker strategy %q", name)
	}
	return b, nil
}

func checkInteractive(names ...string) error {
	for _, n := range names {
		if n == "interactive" && !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("interactive strategy requires a terminal on stdin")
		}
	}
	return nil
}

func breakerNames() string { return joinNames(keys(strategy.Breakers)) }
func makerNames() string   { return joinNames(keys(strategy.Makers)) }

func keys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func joinNames(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += ", "
		}
		s += n
	}
	return s
}

func printHead(name string) {
	fmt.Printf("\n===== %s =====\n", name)
}

// printStats prints the game overview and runs the well-formedness check.
func printStats(g *game.Game, filename string, fileSize int) error {
	printHead("GAME OVERVIEW")
	fmt.Printf("Num of variables: %d\n", g.NumVars())
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	models := s.NumModels()
	fmt.Printf("Num of possible codes: %d\n\n", models)

	nodes, branching, numExp := 0, 0, 0
	for _, e := range g.ExpTypes() {
		for _, o := range e.Outcomes() {
			nodes += o.Formula.Size()
		}
		if len(e.Outcomes()) > branching {
			branching = len(e.Outcomes())
		}
		numExp += e.NumParametrizations()
	}

	fmt.Printf("Read from file: %s\n", filename)
	fmt.Printf("File size: %d\n", fileSize)
	fmt.Printf("Num of nodes in formulas: %d\n\n", nodes)

	fmt.Printf("Num of types of experiments: %d\n", len(g.ExpTypes()))
	fmt.Printf("Alphabet size: %d\n", len(g.Alphabet()))
	fmt.Printf("Total num of experiments: %d\n", numExp)
	if len(g.ExpTypes()) > 0 {
		fmt.Printf("Avg num of parametrizations per type: %.2f\n",
			float64(numExp)/float64(len(g.ExpTypes())))
	}
	fmt.Printf("Maximal branching: %d\n", branching)
	if branching > 1 && models > 0 {
		d := math.Log(float64(models)) / math.Log(float64(branching))
		fmt.Printf("Trivial lower bound (expected): %.2f\n", d)
		fmt.Printf("Trivial lower bound (worst-case): %.0f\n\n", math.Ceil(d))
	}

	fmt.Print("Well-formed check...")
	t1 := time.Now()
	if v := experiment.CheckWellFormed(g, s); v != nil {
		fmt.Println(" failed!")
		fmt.Printf("EXPERIMENT: %s %s\n", v.Type.Name(), g.ParamsToString(v.Params))
		fmt.Println("PROBLEMATIC ASSIGNMENT:")
		printAssignment(g, v.Assignment)
		return fmt.Errorf("game is not well-formed")
	}
	fmt.Printf(" ok [%.2fs]\n", time.Since(t1).Seconds())
	return nil
}

// simulate plays one game between the configured strategies.
func simulate(g *game.Game, env *strategy.Env, breaker strategy.Breaker, maker strategy.Maker) {
	printHead("SIMULATION")
	knowledge := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	var history []experiment.PlayedExp

	for expNum := 1; ; expNum++ {
		gen := experiment.NewGenerator(g, knowledge, history)
		opts := gen.Options()

		chosen := opts[breaker.Fn(env, opts)]
		fmt.Printf("EXPERIMENT: %s\n", chosen.Pretty())

		oid := maker.Fn(env, chosen)
		outcome := chosen.Type().Outcomes()[oid]
		fmt.Printf("OUTCOME: %s\n", outcome.Name)
		fmt.Printf("  ->     %s\n\n", outcome.Formula.Pretty(true, chosen.ParamCtx()))

		knowledge.AddParamConstraint(outcome.Formula, chosen.Params())
		if knowledge.NumModels() == 1 {
			fmt.Printf("SOLVED in %d experiments!\n", expNum)
			knowledge.Satisfiable()
			printAssignment(g, knowledge.Assignment())
			return
		}
		history = append(history, experiment.PlayedExp{
			Type:    chosen.Type(),
			Params:  chosen.Params(),
			Outcome: oid,
		})
	}
}

// analyzeStrategy walks every outcome branch of the heuristic strategy and
// reports the worst and average number of experiments over all codes.
func analyzeStrategy(g *game.Game, env *strategy.Env, breaker strategy.Breaker) {
	printHead("STRATEGY ANALYSIS")
	s := solver.NewCnfSolver(g.NumVars(), g, g.Restriction())
	max, sum := 0, 0
	var walk func(history []experiment.PlayedExp, depth int)
	walk = func(history []experiment.PlayedExp, depth int) {
		gen := experiment.NewGenerator(g, s, history)
		opts := gen.Options()
		chosen := opts[breaker.Fn(env, opts)]
		for i := range chosen.Type().Outcomes() {
			s.OpenContext()
			s.AddParamConstraint(chosen.Type().Outcomes()[i].Formula, chosen.Params())
			sat := s.Satisfiable()
			one := false
			if sat {
				one = s.OnlyOneModel()
			}
			if one {
				sum += depth
				if depth > max {
					max = depth
				}
			} else if sat {
				walk(append(history, experiment.PlayedExp{
					Type:    chosen.Type(),
					Params:  chosen.Params(),
					Outcome: i,
				}), depth+1)
			}
			s.CloseContext()
		}
	}
	walk(nil, 1)
	models := s.NumModels()
	fmt.Printf("Worst-case: %d\n", max)
	fmt.Printf("Average-case: %.2f (%d)\n", float64(sum)/float64(models), sum)
}

// analyzeOptimal runs the exact analysis on the enumerating solver.
func analyzeOptimal(g *game.Game, worst bool) {
	printHead("OPTIMAL STRATEGY")
	s := solver.NewSimpleSolver(g.NumVars(), g, g.Restriction())
	models := s.NumModels()
	opt := strategy.AnalyzeOptimal(g, s, worst, float64(models)+2)
	if !opt.Success() {
		fmt.Println("No strategy found within the bound.")
		return
	}
	kind := "Average-case"
	if worst {
		kind = "Worst-case"
	}
	fmt.Printf("%s optimum: %.2f\n", kind, opt.Value())
	fmt.Printf("Distinct knowledge states: %d\n", opt.NumStates())
}

func printAssignment(g *game.Game, assignment []bool) {
	var trueVars, falseVars []string
	for _, v := range g.Vars() {
		if assignment[v.ID] {
			trueVars = append(trueVars, v.Name)
		} else {
			falseVars = append(falseVars, v.Name)
		}
	}
	fmt.Print("TRUE:")
	for _, n := range trueVars {
		fmt.Printf(" %s", n)
	}
	fmt.Print("\nFALSE:")
	for _, n := range falseVars {
		fmt.Printf(" %s", n)
	}
	fmt.Println()
}

// timeOverview prints the per-solver statistics accumulated during the run.
func timeOverview(start time.Time) {
	printHead("TIME OVERVIEW")
	fmt.Printf("Total time: %.2fs\n", time.Since(start).Seconds())
	printSolverStats("CnfSolver", solver.CnfStats())
	printSolverStats("SimpleSolver", solver.SimpleStats())
}

func printSolverStats(name string, st *solver.Stats) {
	fmt.Printf("%s (calls/time): sat %d/%.2fs fixed %d/%.2fs models %d/%.2fs\n",
		name,
		st.SatCalls, st.SatTime.Seconds(),
		st.FixedCalls, st.FixedTime.Seconds(),
		st.ModelsCalls, st.ModelsTime.Seconds())
}
