package opt

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/spsaopt/spsa"
)

// SPSAAdapter runs the spsa optimizer behind the Optimizer interface.
type SPSAAdapter struct {
	opts spsa.Options
	opt  *spsa.Optimizer
}

// NewSPSA creates an SPSA optimizer. opts.Iterations is overridden by the
// task budget when the task sets one.
func NewSPSA(opts spsa.Options) *SPSAAdapter {
	return &SPSAAdapter{opts: opts, opt: spsa.New()}
}

func (s *SPSAAdapter) Name() string {
	return "spsa"
}

// Run optimizes from task.Start. The start slice is not modified.
func (s *SPSAAdapter) Run(ctx context.Context, task Task) (*Result, error) {
	if task.Target == nil {
		return nil, errors.New("spsa: task has no target")
	}

	opts := s.opts
	if task.Iterations > 0 {
		opts.Iterations = task.Iterations
	}

	x := append([]float64(nil), task.Start...)
	target := spsa.Target(task.Target)

	if task.Progress != nil {
		every := task.reportEvery()
		target = spsa.WithObserver(task.Target, func(it *spsa.Iteration) {
			if (it.Index+1)%every != 0 {
				return
			}
			point := append([]float64(nil), it.Point...)
			task.Progress(Progress{
				Iteration:    it.Index + 1,
				Value:        task.objective(point),
				Point:        point,
				LearningRate: *it.LearningRate,
			})
		})
	}

	res, err := s.opt.OptimizeContext(ctx, target, x, opts)
	if err != nil {
		if res == nil {
			return nil, fmt.Errorf("spsa: %w", err)
		}
		return s.result(task, x, res), err
	}

	return s.result(task, x, res), nil
}

func (s *SPSAAdapter) result(task Task, x []float64, res *spsa.Result) *Result {
	return &Result{
		Method:       s.Name(),
		Point:        x,
		Value:        task.objective(x),
		Iterations:   res.Iterations,
		Evaluations:  res.Evaluations,
		LearningRate: res.LearningRate,
		Stop:         res.Stop.String(),
	}
}
