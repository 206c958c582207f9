package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/cwbudde/spsaopt/internal/opt"
	"github.com/cwbudde/spsaopt/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeDataDir    string
	resumeIters      int
	resumeTraceEvery int
	resumePatience   int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume an optimization from its checkpoint",
	Long: `Continues a checkpointed job from its saved point and learning rate.
By default the job runs the iterations left in its original budget; --iters
runs that many more instead. Gradient statistics are re-estimated on resume.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().IntVar(&resumeIters, "iters", 0, "Additional iterations (0 = rest of the original budget)")
	resumeCmd.Flags().IntVar(&resumeTraceEvery, "trace-every", 0, "Append a trace entry every N iterations (0 = no trace)")
	resumeCmd.Flags().IntVar(&resumePatience, "patience", 0, "Stop after N progress reports without improvement (0 = off)")

	rootCmd.AddCommand(resumeCmd)
}

// resumeSetup prepares the continuation of cp. The returned config carries
// the learning rate of the checkpoint and the number of iterations to run.
func resumeSetup(cp *store.Checkpoint, extra int) (store.JobConfig, *opt.Setup, error) {
	if err := cp.Validate(); err != nil {
		return store.JobConfig{}, nil, fmt.Errorf("invalid checkpoint: %w", err)
	}

	cfg := cp.Config
	remaining := cfg.Iters - cp.Iteration
	if extra > 0 {
		remaining = extra
	}
	if remaining <= 0 {
		return cfg, nil, fmt.Errorf("job %s already ran %d of %d iterations; use --iters to continue", cp.JobID, cp.Iteration, cfg.Iters)
	}

	run := cfg
	run.Iters = remaining
	if cfg.Method == store.MethodSPSA && cp.LearningRate > 0 {
		run.LearningRate = cp.LearningRate
	}
	if err := cp.IsCompatible(run); err != nil {
		return cfg, nil, err
	}

	setup, err := opt.FromConfig(run, slog.Default().With("job_id", cp.JobID))
	if err != nil {
		return cfg, nil, err
	}
	setup.Task.Start = append([]float64(nil), cp.Point...)

	// The stored config keeps the full budget so later resumes count from it
	cfg.Iters = cp.Iteration + remaining
	cfg.LearningRate = run.LearningRate
	return cfg, setup, nil
}

func runResume(cmd *cobra.Command, args []string) error {
	id := args[0]

	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	cp, err := checkpointStore.LoadCheckpoint(id)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	cfg, setup, err := resumeSetup(cp, resumeIters)
	if err != nil {
		return err
	}

	slog.Info("Resuming optimization",
		"job_id", id,
		"problem", cfg.Problem,
		"method", cfg.Method,
		"iteration", cp.Iteration,
		"best_value", cp.BestValue,
		"iters", setup.Task.Iterations,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := execute(ctx, execution{
		jobID:        id,
		config:       cfg,
		setup:        setup,
		store:        checkpointStore,
		traceEvery:   resumeTraceEvery,
		patience:     resumePatience,
		offset:       cp.Iteration,
		initialValue: cp.InitialValue,
	})
	if out != nil {
		printOutcome(id, setup.Problem, cp.BestValue, out)
	}
	return err
}
