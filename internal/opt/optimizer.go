package opt

import (
	"context"

	"github.com/cwbudde/spsaopt/spsa"
)

// Optimizer defines an optimization algorithm interface. All methods
// maximize.
type Optimizer interface {
	// Name identifies the method in logs, checkpoints and reports
	Name() string

	// Run executes the optimization. Cancelling ctx ends the run early; the
	// best point found so far is still returned.
	Run(ctx context.Context, task Task) (*Result, error)
}

// Task describes one optimization run.
type Task struct {
	// Target is what the optimizer evaluates. It may be noisy.
	Target spsa.Target

	// Objective is the noise-free function used for progress reports and
	// the final value. nil reports Target values instead.
	Objective func(x []float64) float64

	// Start is the starting point. Population methods ignore it.
	Start []float64

	// Lower and Upper bound the search box for population methods
	Lower []float64
	Upper []float64

	// Iterations is the iteration budget
	Iterations int

	// Progress is called every ReportEvery iterations. It may be nil.
	Progress    func(Progress)
	ReportEvery int
}

// Progress is a snapshot of a running optimization.
type Progress struct {
	Iteration    int
	Value        float64
	Point        []float64 // copy, owned by the receiver
	LearningRate float64   // 0 for methods without a step size
}

// Result is the outcome of a run.
type Result struct {
	Method       string
	Point        []float64
	Value        float64
	Iterations   int
	Evaluations  int
	LearningRate float64
	Stop         string
}

func (t Task) objective(x []float64) float64 {
	if t.Objective != nil {
		return t.Objective(x)
	}
	return t.Target.Evaluate(x)
}

func (t Task) reportEvery() int {
	if t.ReportEvery > 0 {
		return t.ReportEvery
	}
	return 100
}
