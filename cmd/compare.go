package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/spsaopt/internal/opt"
	"github.com/cwbudde/spsaopt/internal/problem"
	"github.com/cwbudde/spsaopt/internal/store"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
)

var (
	compareProblem string
	compareDim     int
	compareIters   int
	compareSeed    int64
	compareNoise   float64
	comparePop     int
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare spsa and mayfly on the same problem",
	Long: `Runs spsa and the mayfly population optimizer on one problem with the
same output noise and prints value, distance to the known optimum and
evaluation counts side by side.`,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&compareProblem, "problem", "paraboloid", "Test problem (see \"problems\")")
	compareCmd.Flags().IntVar(&compareDim, "dim", 0, "Dimension (0 = problem default)")
	compareCmd.Flags().IntVar(&compareIters, "iters", 1000, "Iterations per method")
	compareCmd.Flags().Int64Var(&compareSeed, "seed", 1, "Random seed")
	compareCmd.Flags().Float64Var(&compareNoise, "noise", 0, "Uniform noise amplitude added to function values")
	compareCmd.Flags().IntVar(&comparePop, "pop", opt.DefaultPopSize, "Population size (mayfly)")

	rootCmd.AddCommand(compareCmd)
}

// comparison is one row of the compare table.
type comparison struct {
	method   string
	result   *opt.Result
	distance float64 // NaN when the optimum is unknown
	elapsed  time.Duration
}

// compareMethods runs every method on the same problem configuration.
func compareMethods(ctx context.Context, base store.JobConfig) ([]comparison, error) {
	if base.Dim <= 0 {
		d, err := problem.DefaultDim(base.Problem)
		if err != nil {
			return nil, err
		}
		base.Dim = d
	}

	var rows []comparison
	for _, m := range []string{store.MethodSPSA, store.MethodMayfly} {
		cfg := base
		cfg.Method = m
		if m != store.MethodMayfly {
			cfg.PopSize = 0
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		setup, err := opt.FromConfig(cfg, slog.Default().With("method", m))
		if err != nil {
			return nil, err
		}

		out, err := execute(ctx, execution{
			config:       cfg,
			setup:        setup,
			initialValue: setup.Problem.Eval(setup.Task.Start),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}

		row := comparison{method: m, result: out.result, distance: math.NaN(), elapsed: out.elapsed}
		if setup.Problem.Optimum != nil && validPoint(out.result.Point, out.result.Value) {
			row.distance = floats.Distance(out.result.Point, setup.Problem.Optimum, 2)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	rows, err := compareMethods(context.Background(), store.JobConfig{
		Problem:     compareProblem,
		Dim:         compareDim,
		Iters:       compareIters,
		Seed:        compareSeed,
		OutputNoise: compareNoise,
		PopSize:     comparePop,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tVALUE\tDISTANCE\tEVALUATIONS\tSTOP\tELAPSED")
	fmt.Fprintln(w, "------\t-----\t--------\t-----------\t----\t-------")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%.6g\t%.3g\t%d\t%s\t%s\n",
			r.method,
			r.result.Value,
			r.distance,
			r.result.Evaluations,
			r.result.Stop,
			r.elapsed.Round(time.Millisecond),
		)
	}
	return w.Flush()
}
