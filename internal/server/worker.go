package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/spsaopt/internal/opt"
	"github.com/cwbudde/spsaopt/internal/store"
)

// traceDir is implemented by stores that keep per-job directories on disk.
type traceDir interface {
	BaseDir() string
}

// runJob executes an optimization job in the background.
// If checkpointStore is not nil and job has checkpointInterval > 0, periodic checkpoints are saved.
// A store that exposes BaseDir also receives a JSONL progress trace.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string) error {
	defer jm.release(jobID)

	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "problem", job.Config.Problem, "method", job.Config.Method)

	setup, err := opt.FromConfig(job.Config, slog.Default().With("job_id", jobID))
	if err != nil {
		markJobFailed(jm, jobID, err)
		broadcastFinal(jm, jobID)
		return err
	}

	initialValue := setup.Problem.Eval(setup.Task.Start)
	if !finite(initialValue) {
		err := fmt.Errorf("starting point of %s is infeasible", setup.Problem.Name)
		markJobFailed(jm, jobID, err)
		broadcastFinal(jm, jobID)
		return err
	}

	jm.UpdateJob(jobID, func(j *Job) {
		j.InitialValue = initialValue
		j.BestValue = initialValue
		j.Point = append([]float64(nil), setup.Task.Start...)
	})

	// Check for cancellation before starting expensive operation
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		broadcastFinal(jm, jobID)
		return ctx.Err()
	default:
	}

	var trace *store.TraceWriter
	if td, ok := checkpointStore.(traceDir); ok {
		trace, err = store.NewTraceWriter(td.BaseDir(), jobID, false)
		if err != nil {
			slog.Warn("Trace disabled", "job_id", jobID, "error", err)
		} else {
			defer trace.Close()
		}
	}

	setup.Task.ReportEvery = reportEvery(job.Config.Iters)
	setup.Task.Progress = func(p opt.Progress) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Point = p.Point
			j.BestValue = p.Value
			j.Iterations = p.Iteration
			j.LearningRate = p.LearningRate
		})
		if trace != nil {
			if err := trace.Write(store.TraceEntry{
				Iteration:    p.Iteration,
				Value:        p.Value,
				LearningRate: p.LearningRate,
				Timestamp:    time.Now(),
			}); err != nil {
				slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
			}
		}
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	checkpointDone := make(chan struct{})
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, checkpointStore, jobID, checkpointDone)
	}

	start := time.Now()
	result, runErr := setup.Optimizer.Run(ctx, setup.Task)
	elapsed := time.Since(start)

	close(progressDone)
	close(checkpointDone)

	if result != nil {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Iterations = result.Iterations
			j.LearningRate = result.LearningRate
			j.Stop = result.Stop
			// JSON cannot carry NaN; an infeasible result keeps the last report
			if finite(result.Value) && finitePoint(result.Point) {
				j.Point = result.Point
				j.BestValue = result.Value
			}
		})
	}

	if runErr != nil {
		markJobFailed(jm, jobID, runErr)
		broadcastFinal(jm, jobID)
		return runErr
	}

	// Keep the final state so the job can be resumed or inspected
	if checkpointStore != nil {
		if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
			slog.Error("Failed to save final checkpoint", "job_id", jobID, "error", err)
		}
	}

	if ctx.Err() != nil {
		markJobCancelled(jm, jobID)
		broadcastFinal(jm, jobID)
		return ctx.Err()
	}

	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"initial_value", initialValue,
		"best_value", result.Value,
		"iterations", result.Iterations,
		"evaluations", result.Evaluations,
		"stop", result.Stop,
	)

	broadcastFinal(jm, jobID)
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePoint(x []float64) bool {
	for _, v := range x {
		if !finite(v) {
			return false
		}
	}
	return true
}

// reportEvery spreads about a hundred progress reports over a run.
func reportEvery(iters int) int {
	return max(iters/100, 1)
}

// broadcastFinal sends the terminal state of a job to stream clients.
func broadcastFinal(jm *JobManager, jobID string) {
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(progressEvent(job))
	}
}

// monitorProgress periodically broadcasts progress events during optimization
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			jm.broadcaster.Broadcast(progressEvent(job))
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves checkpoints during optimization
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	interval := time.Duration(job.Config.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if len(job.Point) == 0 {
		slog.Debug("Skipping checkpoint, no point yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		job.Point,
		job.BestValue,
		job.InitialValue,
		job.Iterations,
		job.LearningRate,
		job.Config,
	)

	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"iteration", job.Iterations,
		"best_value", job.BestValue,
	)
	return nil
}
