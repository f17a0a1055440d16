// Package strategy implements the code-breaker and code-maker heuristics and
// the optimal-strategy analyzer.
package strategy

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/breakerlab/deduce/internal/experiment"
	"github.com/breakerlab/deduce/internal/game"
	"github.com/breakerlab/deduce/internal/model"
)

// Env is the environment strategies run in: the game for rendering, a
// random source, and the streams used by the interactive strategies.
type Env struct {
	Game *game.Game
	Rand *rand.Rand
	In   *bufio.Reader
	Out  io.Writer
}

// Breaker selects the next experiment to perform from the generated options.
type Breaker struct {
	Desc string
	Fn   func(env *Env, options []*experiment.Option) int
}

// Maker selects the outcome of a chosen experiment.
type Maker struct {
	Desc string
	Fn   func(env *Env, option *experiment.Option) int
}

// Breakers is the registry of code-breaker strategies.
var Breakers = map[string]Breaker{
	"interactive": {
		Desc: "Asks the user which experiment to perform next.",
		Fn:   breakerInteractive,
	},
	"random": {
		Desc: "Picks the next experiment by random.",
		Fn:   breakerRandom,
	},
	"minnum": {
		Desc: "Minimizes the worst-case number of remaining codes in the next step.",
		Fn:   breakerMinNum,
	},
	"expnum": {
		Desc: "Minimizes the expected number of remaining codes in the next step.",
		Fn:   breakerExpNum,
	},
	"entropy": {
		Desc: "Maximizes the entropy of the numbers of remaining codes.",
		Fn:   breakerEntropy,
	},
	"parts": {
		Desc: "Selects the experiment with the maximal number of possible outcomes.",
		Fn:   breakerParts,
	},
	"fixed": {
		Desc: "Maximizes the worst-case number of fixed variables in the next step.",
		Fn:   breakerFixed,
	},
}

// Makers is the registry of code-maker strategies.
var Makers = map[string]Maker{
	"interactive": {
		Desc: "Asks the user what the outcome of the experiment is.",
		Fn:   makerInteractive,
	},
	"random": {
		Desc: "Picks the outcome of the experiment by random.",
		Fn:   makerRandom,
	},
	"maxnum": {
		Desc: "Maximizes the number of remaining codes.",
		Fn:   makerMaxNum,
	},
	"fixed": {
		Desc: "Minimizes the number of fixed variables.",
		Fn:   makerFixed,
	},
}

// ----------------------------------------------------------------------------
// Breaker strategies
// ----------------------------------------------------------------------------

func breakerInteractive(env *Env, options []*experiment.Option) int {
	fmt.Fprintln(env.Out, "Select an experiment:")
	for _, o := range options {
		if o.NumSatOutcomes() <= 1 {
			continue
		}
		fmt.Fprintf(env.Out, "%d) %s - M:", o.Index(), o.Pretty())
		for i := range o.Type().Outcomes() {
			fmt.Fprintf(env.Out, " %d", o.NumModelsForOutcome(i))
		}
		fmt.Fprintf(env.Out, " F:")
		for i := range o.Type().Outcomes() {
			fmt.Fprintf(env.Out, " %d", o.NumFixedVarsForOutcome(i))
		}
		fmt.Fprintln(env.Out)
	}
	for {
		choice, ok := env.prompt()
		if ok && choice >= 0 && choice < len(options) &&
			options[choice].NumSatOutcomes() > 1 {
			return choice
		}
	}
}

func breakerRandom(env *Env, options []*experiment.Option) int {
	return env.Rand.Intn(len(options))
}

func breakerParts(env *Env, options []*experiment.Option) int {
	result, max := 0, 0
	for _, o := range options {
		if v := o.NumSatOutcomes(); v > max {
			max = v
			result = o.Index()
		}
	}
	return result
}

func breakerMinNum(env *Env, options []*experiment.Option) int {
	result, min := 0, 0
	for _, o := range options {
		value := o.MaxNumModels()
		if min == 0 || value < min {
			min = value
			result = o.Index()
		}
	}
	return result
}

func breakerExpNum(env *Env, options []*experiment.Option) int {
	result, min := 0, -1.0
	for _, o := range options {
		sumsq := 0
		for i := range o.Type().Outcomes() {
			v := o.NumModelsForOutcome(i)
			sumsq += v * v
		}
		value := float64(sumsq) / float64(o.TotalNumModels())
		if min == -1 || value < min {
			min = value
			result = o.Index()
		}
	}
	return result
}

func breakerEntropy(env *Env, options []*experiment.Option) int {
	result, max := 0, 0.0
	for _, o := range options {
		total := float64(o.TotalNumModels())
		p := make([]float64, len(o.Type().Outcomes()))
		for i := range p {
			p[i] = float64(o.NumModelsForOutcome(i)) / total
		}
		value := stat.Entropy(p) / math.Ln2
		if value > max {
			max = value
			result = o.Index()
		}
	}
	return result
}

func breakerFixed(env *Env, options []*experiment.Option) int {
	result, max := 0, 0
	for _, o := range options {
		value := -1
		for i := range o.Type().Outcomes() {
			f := o.NumFixedVarsForOutcome(i)
			if value == -1 || f < value {
				value = f
			}
		}
		if value > max {
			max = value
			result = o.Index()
		}
	}
	return result
}

// ----------------------------------------------------------------------------
// Maker strategies
// ----------------------------------------------------------------------------

func makerInteractive(env *Env, option *experiment.Option) int {
	fmt.Fprintln(env.Out, "Select an outcome:")
	outcomes := option.Type().Outcomes()
	ctx := &model.ParamCtx{Params: option.Params(), Source: env.Game}
	for i, o := range outcomes {
		if option.IsOutcomeSat(i) {
			fmt.Fprintf(env.Out, "%d) ", i)
		} else {
			fmt.Fprintf(env.Out, "-) ")
		}
		note := ""
		if !option.IsOutcomeSat(i) {
			note = " (unsatisfiable)"
		}
		fmt.Fprintf(env.Out, "%s - %s%s\n", o.Name, o.Formula.Pretty(true, ctx), note)
	}
	for {
		choice, ok := env.prompt()
		if ok && choice >= 0 && choice < len(outcomes) && option.IsOutcomeSat(choice) {
			return choice
		}
	}
}

func makerRandom(env *Env, option *experiment.Option) int {
	p := env.Rand.Intn(option.NumSatOutcomes())
	i := -1
	for p >= 0 {
		i++
		if option.IsOutcomeSat(i) {
			p--
		}
	}
	return i
}

func makerMaxNum(env *Env, option *experiment.Option) int {
	result, max := 0, -1
	for i := range option.Type().Outcomes() {
		if !option.IsOutcomeSat(i) {
			continue
		}
		if v := option.NumModelsForOutcome(i); v > max {
			max = v
			result = i
		}
	}
	return result
}

func makerFixed(env *Env, option *experiment.Option) int {
	result, min := 0, -1
	for i := range option.Type().Outcomes() {
		if !option.IsOutcomeSat(i) {
			continue
		}
		if v := option.NumFixedVarsForOutcome(i); min == -1 || v < min {
			min = v
			result = i
		}
	}
	return result
}

// prompt reads one choice from the interactive input.
func (env *Env) prompt() (int, bool) {
	fmt.Fprint(env.Out, "> ")
	line, err := env.In.ReadString('\n')
	if err != nil && line == "" {
		panic("strategy: end of interactive input")
	}
	v, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil {
		return 0, false
	}
	return v, true
}
