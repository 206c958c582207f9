package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/cwbudde/spsaopt/internal/opt"
	"github.com/cwbudde/spsaopt/internal/problem"
	"github.com/cwbudde/spsaopt/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	problemName  string
	dim          int
	method       string
	iters        int
	seed         int64
	learningRate float64
	noAdam       bool
	momentum     float64
	beta         float64
	outputNoise  float64
	oversample   int
	inputNoise   float64
	patience     int
	dataDir      string
	jobID        string
	traceEvery   int
	popSize      int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long: `Maximizes one of the built-in test problems and prints the result.
With --data-dir the final state is saved as a checkpoint that "resume" can
continue from, and --trace-every writes a JSONL progress trace next to it.`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&problemName, "problem", "paraboloid", "Test problem (see \"problems\")")
	runCmd.Flags().IntVar(&dim, "dim", 0, "Dimension (0 = problem default)")
	runCmd.Flags().StringVar(&method, "method", store.MethodSPSA, "Optimizer: spsa, mayfly")
	runCmd.Flags().IntVar(&iters, "iters", 10_000, "Max iterations")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	runCmd.Flags().Float64Var(&learningRate, "lr", 0, "Initial learning rate (0 = line search)")
	runCmd.Flags().BoolVar(&noAdam, "no-adam", false, "Disable Adam normalization")
	runCmd.Flags().Float64Var(&momentum, "momentum", 0, "Gradient EMA weight (0 = default)")
	runCmd.Flags().Float64Var(&beta, "beta", 0, "Squared-gradient EMA weight (0 = default)")
	runCmd.Flags().Float64Var(&outputNoise, "noise", 0, "Uniform noise amplitude added to function values")
	runCmd.Flags().IntVar(&oversample, "oversample", 0, "Extra evaluations averaged per point")
	runCmd.Flags().Float64Var(&inputNoise, "input-noise", 0, "Uniform noise amplitude added to coordinates")
	runCmd.Flags().IntVar(&patience, "patience", 0, "Stop after N progress reports without improvement (0 = off)")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "", "Checkpoint directory (empty = no checkpoint)")
	runCmd.Flags().StringVar(&jobID, "job-id", "", "Checkpoint job ID (default: random UUID)")
	runCmd.Flags().IntVar(&traceEvery, "trace-every", 0, "Write a trace entry every N iterations (0 = no trace)")
	runCmd.Flags().IntVar(&popSize, "pop", opt.DefaultPopSize, "Population size (mayfly)")

	rootCmd.AddCommand(runCmd)
}

// configFromFlags builds the job configuration described by the run flags.
func configFromFlags() (store.JobConfig, error) {
	cfg := store.JobConfig{
		Problem:      problemName,
		Dim:          dim,
		Method:       method,
		Iters:        iters,
		Seed:         seed,
		LearningRate: learningRate,
		NoAdam:       noAdam,
		Momentum:     momentum,
		Beta:         beta,
		OutputNoise:  outputNoise,
		Oversample:   oversample,
		InputNoise:   inputNoise,
	}
	if cfg.Method == store.MethodMayfly {
		cfg.PopSize = popSize
	}
	if cfg.Dim <= 0 {
		d, err := problem.DefaultDim(cfg.Problem)
		if err != nil {
			return cfg, err
		}
		cfg.Dim = d
	}
	return cfg, cfg.Validate()
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags()
	if err != nil {
		return err
	}

	setup, err := opt.FromConfig(cfg, slog.Default())
	if err != nil {
		return err
	}

	initial := setup.Problem.Eval(setup.Task.Start)
	slog.Info("Starting optimization",
		"problem", setup.Problem.Name,
		"dim", setup.Problem.Dim,
		"method", setup.Optimizer.Name(),
		"iters", cfg.Iters,
		"initial_value", initial,
	)

	var checkpointStore *store.FSStore
	id := jobID
	if dataDir != "" {
		checkpointStore, err = store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		if id == "" {
			id = uuid.New().String()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := execute(ctx, execution{
		jobID:        id,
		config:       cfg,
		setup:        setup,
		store:        checkpointStore,
		traceEvery:   traceEvery,
		patience:     patience,
		initialValue: initial,
	})
	if out != nil {
		slog.Info("Optimization complete",
			"elapsed", out.elapsed,
			"best_value", out.result.Value,
			"iterations", out.result.Iterations,
			"evaluations", out.result.Evaluations,
			"stop", out.result.Stop,
		)
		printOutcome(id, setup.Problem, initial, out)
	}
	return err
}
