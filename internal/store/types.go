package store

import (
	"fmt"
	"math"
	"time"
)

// Methods accepted in a JobConfig.
const (
	MethodSPSA   = "spsa"
	MethodMayfly = "mayfly"
)

// JobConfig holds configuration for an optimization job (checkpoint copy).
// This avoids import cycles with server package. Zero-valued optimizer
// settings mean "use the library default".
type JobConfig struct {
	Problem string `json:"problem"`
	Dim     int    `json:"dim"`
	Method  string `json:"method"` // spsa, mayfly
	Iters   int    `json:"iters"`
	Seed    int64  `json:"seed"`

	LearningRate float64 `json:"learningRate,omitempty"` // 0 = estimate
	NoAdam       bool    `json:"noAdam,omitempty"`
	Momentum     float64 `json:"momentum,omitempty"`
	Beta         float64 `json:"beta,omitempty"`

	OutputNoise float64 `json:"outputNoise,omitempty"`
	Oversample  int     `json:"oversample,omitempty"`
	InputNoise  float64 `json:"inputNoise,omitempty"`

	PopSize int `json:"popSize,omitempty"` // mayfly only

	CheckpointInterval int `json:"checkpointInterval,omitempty"` // Checkpoint every N seconds (0 = disabled)
}

// Checkpoint is a saved optimization state that can be resumed later.
//
// Only the point and the learning rate are saved. The smoothed gradient,
// noise estimate and other internal statistics are rebuilt by a fresh
// warm-up on resume, so a resumed run is not a bit-exact continuation of an
// uninterrupted one. For mayfly jobs Point is the best individual and the
// population is reinitialized.
type Checkpoint struct {
	// JobID is the unique identifier for this optimization job
	JobID string `json:"jobId"`

	// Point is the current (spsa) or best (mayfly) point
	Point []float64 `json:"point"`

	// BestValue is the noise-free objective at Point
	BestValue float64 `json:"bestValue"`

	// InitialValue is the objective at the starting point, for tracking improvement
	InitialValue float64 `json:"initialValue"`

	// Iteration is the number of completed iterations
	Iteration int `json:"iteration"`

	// LearningRate is the step size at checkpoint time (spsa only)
	LearningRate float64 `json:"learningRate,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Config is needed to validate that a resumed job is compatible
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the point.
type CheckpointInfo struct {
	JobID     string    `json:"jobId"`
	BestValue float64   `json:"bestValue"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Problem   string    `json:"problem"`
	Dim       int       `json:"dim"`
	Method    string    `json:"method"`
}

// NewCheckpoint creates a checkpoint from job state. The point is copied.
func NewCheckpoint(jobID string, point []float64, bestValue, initialValue float64, iteration int, learningRate float64, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:        jobID,
		Point:        append([]float64(nil), point...),
		BestValue:    bestValue,
		InitialValue: initialValue,
		Iteration:    iteration,
		LearningRate: learningRate,
		Timestamp:    time.Now(),
		Config:       config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		BestValue: c.BestValue,
		Iteration: c.Iteration,
		Timestamp: c.Timestamp,
		Problem:   c.Config.Problem,
		Dim:       c.Config.Dim,
		Method:    c.Config.Method,
	}
}

// Validate checks that the job configuration is runnable.
func (c JobConfig) Validate() error {
	if c.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if c.Dim <= 0 {
		return &ValidationError{Field: "Config.Dim", Reason: "must be positive"}
	}
	if c.Iters <= 0 {
		return &ValidationError{Field: "Config.Iters", Reason: "must be positive"}
	}
	switch c.Method {
	case MethodSPSA:
	case MethodMayfly:
		if c.PopSize <= 0 {
			return &ValidationError{Field: "Config.PopSize", Reason: "must be positive for mayfly"}
		}
	default:
		return &ValidationError{Field: "Config.Method", Reason: fmt.Sprintf("unknown method %q", c.Method)}
	}
	if c.LearningRate < 0 {
		return &ValidationError{Field: "Config.LearningRate", Reason: "cannot be negative"}
	}
	if c.OutputNoise < 0 || c.InputNoise < 0 || c.Oversample < 0 {
		return &ValidationError{Field: "Config.Noise", Reason: "cannot be negative"}
	}
	if c.CheckpointInterval < 0 {
		return &ValidationError{Field: "Config.CheckpointInterval", Reason: "cannot be negative"}
	}
	return nil
}

// Validate checks if the checkpoint has valid data.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.Point) == 0 {
		return &ValidationError{Field: "Point", Reason: "cannot be empty"}
	}
	for i, v := range c.Point {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "Point", Reason: fmt.Sprintf("coordinate %d is not finite", i)}
		}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.LearningRate < 0 {
		return &ValidationError{Field: "LearningRate", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if len(c.Point) != c.Config.Dim {
		return &ValidationError{
			Field:  "Point",
			Reason: fmt.Sprintf("length mismatch: expected %d coordinates, got %d", c.Config.Dim, len(c.Point)),
		}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.Problem != config.Problem {
		return &CompatibilityError{Field: "Problem", Expected: c.Config.Problem, Actual: config.Problem}
	}
	if c.Config.Dim != config.Dim {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", c.Config.Dim),
			Actual:   fmt.Sprintf("%d", config.Dim),
		}
	}
	if c.Config.Method != config.Method {
		return &CompatibilityError{Field: "Method", Expected: c.Config.Method, Actual: config.Method}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
