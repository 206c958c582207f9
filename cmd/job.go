package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/spsaopt/internal/opt"
	"github.com/cwbudde/spsaopt/internal/problem"
	"github.com/cwbudde/spsaopt/internal/store"
)

// execution describes one CLI optimization run.
type execution struct {
	jobID  string
	config store.JobConfig
	setup  *opt.Setup

	// store and traceEvery are optional; a nil store skips checkpoints
	// and traces.
	store      *store.FSStore
	traceEvery int

	// patience > 0 stops the run after that many progress reports without
	// a relative improvement of the default convergence threshold.
	patience int

	// offset is the iteration count already spent by a resumed job
	offset       int
	initialValue float64
}

// outcome is what a finished execution reports.
type outcome struct {
	result    *opt.Result
	converged bool
	elapsed   time.Duration
}

// execute runs e.setup to completion, an early convergence stop or
// cancellation of ctx, and saves the final checkpoint.
func execute(ctx context.Context, e execution) (*outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tracker *problem.ConvergenceTracker
	if e.patience > 0 {
		config := problem.DefaultConvergenceConfig()
		config.Patience = e.patience
		tracker = problem.NewConvergenceTracker(config)
	}

	var trace *store.TraceWriter
	if e.store != nil && e.traceEvery > 0 {
		var err error
		trace, err = store.NewTraceWriter(e.store.BaseDir(), e.jobID, e.offset > 0)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace: %w", err)
		}
		defer trace.Close()
	}

	converged := false
	task := e.setup.Task
	task.ReportEvery = e.traceEvery
	if task.ReportEvery <= 0 {
		task.ReportEvery = max(task.Iterations/100, 1)
	}
	task.Progress = func(p opt.Progress) {
		iteration := e.offset + p.Iteration
		slog.Debug("Progress", "job_id", e.jobID, "iteration", iteration, "value", p.Value, "learning_rate", p.LearningRate)

		if trace != nil {
			if err := trace.Write(store.TraceEntry{
				Iteration:    iteration,
				Value:        p.Value,
				LearningRate: p.LearningRate,
				Timestamp:    time.Now(),
				Point:        p.Point,
			}); err != nil {
				slog.Warn("Failed to write trace entry", "job_id", e.jobID, "error", err)
			}
		}

		if tracker != nil && !converged && tracker.Update(p.Value) {
			converged = true
			slog.Info("Converged", "job_id", e.jobID, "iteration", iteration, "best_value", tracker.Best())
			cancel()
		}
	}

	start := time.Now()
	result, err := e.setup.Optimizer.Run(ctx, task)
	elapsed := time.Since(start)
	if result == nil {
		return nil, err
	}

	if e.store != nil && validPoint(result.Point, result.Value) {
		cp := store.NewCheckpoint(e.jobID, result.Point, result.Value, e.initialValue,
			e.offset+result.Iterations, result.LearningRate, e.config)
		if saveErr := e.store.SaveCheckpoint(e.jobID, cp); saveErr != nil {
			slog.Error("Failed to save checkpoint", "job_id", e.jobID, "error", saveErr)
		} else {
			slog.Info("Checkpoint saved", "job_id", e.jobID, "iteration", cp.Iteration)
		}
	}

	return &outcome{result: result, converged: converged, elapsed: elapsed}, err
}

// validPoint reports whether a result can be stored as a checkpoint.
func validPoint(x []float64, value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return len(x) > 0
}

func printOutcome(jobID string, p *problem.Problem, initial float64, o *outcome) {
	r := o.result
	stop := r.Stop
	if o.converged {
		stop = "converged"
	}

	fmt.Printf("Method:      %s\n", r.Method)
	fmt.Printf("Problem:     %s (dim %d)\n", p.Name, p.Dim)
	if jobID != "" {
		fmt.Printf("Job ID:      %s\n", jobID)
	}
	fmt.Printf("Stop:        %s\n", stop)
	fmt.Printf("Value:       %.6g -> %.6g\n", initial, r.Value)
	if p.Optimum != nil {
		fmt.Printf("Optimum:     %.6g (gap %.3g)\n", p.Value, p.Value-r.Value)
	}
	fmt.Printf("Point:       %s\n", formatPoint(r.Point))
	fmt.Printf("Iterations:  %d\n", r.Iterations)
	fmt.Printf("Evaluations: %d\n", r.Evaluations)
	if r.LearningRate > 0 {
		fmt.Printf("Step size:   %.4g\n", r.LearningRate)
	}
	fmt.Printf("Elapsed:     %s\n", o.elapsed.Round(time.Millisecond))
}

// formatPoint prints at most eight coordinates.
func formatPoint(x []float64) string {
	const limit = 8
	s := "["
	for i, v := range x {
		if i == limit {
			s += fmt.Sprintf(" ... (%d more)", len(x)-limit)
			break
		}
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.6g", v)
	}
	return s + "]"
}
