package spsa

import (
	"context"
	"fmt"
	"math"
)

// StopReason tells why the main loop ended.
type StopReason int

const (
	StopCompleted         StopReason = iota // All iterations ran
	StopInfeasibleStart                     // The starting point evaluated to NaN
	StopNonFiniteGradient                   // A gradient sample was not finite
	StopCancelled                           // The context was cancelled
)

func (s StopReason) String() string {
	switch s {
	case StopCompleted:
		return "completed"
	case StopInfeasibleStart:
		return "infeasible_start"
	case StopNonFiniteGradient:
		return "non_finite_gradient"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result summarizes an optimization run. The optimized point itself is
// written into the slice passed to Optimize.
type Result struct {
	Stop          StopReason
	Iterations    int     // completed main-loop iterations
	Evaluations   int     // calls to Target.Evaluate
	Recoveries    int     // soft restarts from the best point
	Rollbacks     int     // steps undone because they left the feasible region
	MomentumFails int     // gradient samples that disagreed with the average
	LearningRate  float64 // learning rate after the last iteration
	BestValue     float64 // best bias-corrected average of the target
	NoiseLevel    float64 // estimated standard deviation of evaluations
	UsedBest      bool    // the best averaged point replaced the live point
}

// Optimizer maximizes targets with simultaneous perturbation stochastic
// approximation. The zero value is ready to use.
type Optimizer struct {
	pool pool
}

// New returns an Optimizer.
func New() *Optimizer {
	return &Optimizer{}
}

// Optimize maximizes t starting from x and stores the result in x.
// See OptimizeContext.
func (o *Optimizer) Optimize(t Target, x []float64, opts Options) (*Result, error) {
	return o.OptimizeContext(context.Background(), t, x, opts)
}

// OptimizeContext maximizes t starting from x and stores the result in x.
//
// If t evaluates to NaN at x, every coordinate of x is set to NaN and the
// result reports StopInfeasibleStart with a nil error. Cancelling ctx ends
// the main loop early; the best point found so far is still selected and the
// result reports StopCancelled.
//
// A *FatalError is returned when the run gets stuck outside the feasible
// region; x then holds the last feasible point.
func (o *Optimizer) OptimizeContext(ctx context.Context, t Target, x []float64, opts Options) (*Result, error) {
	if len(x) == 0 {
		return nil, ErrEmptyPoint
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: coordinate %d is %v", ErrNonFinitePoint, i, v)
		}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	o.pool.reset(len(x))

	r := newRun(t, x, opts, &o.pool)
	return r.execute(ctx)
}

// Optimize maximizes t starting from x with a fresh Optimizer.
func Optimize(t Target, x []float64, opts Options) (*Result, error) {
	return New().Optimize(t, x, opts)
}

// OptimizeContext is Optimize with cancellation.
func OptimizeContext(ctx context.Context, t Target, x []float64, opts Options) (*Result, error) {
	return New().OptimizeContext(ctx, t, x, opts)
}
