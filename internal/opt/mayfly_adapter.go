package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer
// interface. Mayfly minimizes, so the target is negated and infeasible points
// cost +Inf.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter. popSize must be at least
// 20 for mayfly v0.1.0.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

func (m *MayflyAdapter) Name() string {
	return "mayfly"
}

// Run executes the Mayfly optimization using the external library.
//
// The library only supports scalar bounds, so it searches the smallest cube
// containing the task box and points outside the per-dimension box cost
// +Inf. Mayfly has no cancellation hook: after ctx is cancelled every
// evaluation returns +Inf immediately and the remaining iterations are cheap.
func (m *MayflyAdapter) Run(ctx context.Context, task Task) (*Result, error) {
	if task.Target == nil {
		return nil, errors.New("mayfly: task has no target")
	}
	dim := len(task.Lower)
	if dim == 0 || len(task.Upper) != dim {
		return nil, fmt.Errorf("mayfly: bounds must be non-empty and equal length (lower %d, upper %d)", len(task.Lower), len(task.Upper))
	}

	iters := m.maxIters
	if task.Iterations > 0 {
		iters = task.Iterations
	}

	lo, hi := task.Lower[0], task.Upper[0]
	for i := 1; i < dim; i++ {
		lo = math.Min(lo, task.Lower[i])
		hi = math.Max(hi, task.Upper[i])
	}

	config := mayfly.NewDefaultConfig()
	config.ProblemSize = dim
	config.MaxIterations = iters
	config.NPop = m.popSize
	config.LowerBound = lo
	config.UpperBound = hi
	config.Rand = rand.New(rand.NewSource(m.seed))

	// Mayfly exposes no iteration boundaries, so progress and cancelled runs
	// derive iterations from the evaluation count.
	initEvals, perIter := evaluationBudget(config)

	var (
		evals int
		best  = math.Inf(1)
		bestX []float64
		every = task.reportEvery() * perIter
	)

	cost := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		evals++

		for i, v := range x {
			if v < task.Lower[i] || v > task.Upper[i] {
				return math.Inf(1)
			}
		}

		c := -task.Target.Evaluate(x)
		if math.IsNaN(c) {
			return math.Inf(1)
		}

		if c < best {
			best = c
			bestX = append(bestX[:0], x...)
		}
		if task.Progress != nil && bestX != nil && evals%every == 0 {
			task.Progress(Progress{
				Iteration: completedIterations(evals, initEvals, perIter, iters),
				Value:     task.objective(bestX),
				Point:     append([]float64(nil), bestX...),
			})
		}
		return c
	}
	config.ObjectiveFunc = cost

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, fmt.Errorf("mayfly: %w", err)
	}

	point := append([]float64(nil), result.GlobalBest.Position...)
	if bestX != nil && best < result.GlobalBest.Cost {
		point = bestX
	}

	stop, done := "completed", iters
	if ctx.Err() != nil {
		stop = "cancelled"
		// The library keeps iterating after cancellation, so its own count
		// covers the whole budget and gives the exact per-iteration rate.
		if rate := (result.FuncEvalCount - initEvals) / iters; rate > 0 {
			perIter = rate
		}
		done = completedIterations(evals, initEvals, perIter, iters)
	}

	return &Result{
		Method:      m.Name(),
		Point:       point,
		Value:       task.objective(point),
		Iterations:  done,
		Evaluations: evals,
		Stop:        stop,
	}, nil
}

// evaluationBudget returns the evaluations Mayfly spends on its initial
// population and, approximately, on each iteration: one per male and
// female, one per offspring and one per mutant.
func evaluationBudget(config *mayfly.Config) (initEvals, perIter int) {
	nm := config.NM
	if nm == 0 {
		nm = int(math.Round(0.05 * float64(config.NPop)))
	}
	initEvals = config.NPop + config.NPopF
	return initEvals, max(initEvals+config.NC+nm, 1)
}

// completedIterations converts an evaluation count into whole iterations,
// capped at the budget.
func completedIterations(evals, initEvals, perIter, iters int) int {
	if evals <= initEvals || perIter <= 0 {
		return 0
	}
	return min((evals-initEvals)/perIter, iters)
}
