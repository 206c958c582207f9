package opt

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/spsaopt/internal/problem"
	"github.com/cwbudde/spsaopt/internal/store"
	"github.com/cwbudde/spsaopt/spsa"
)

// DefaultPopSize is the mayfly population used when a config leaves it unset.
const DefaultPopSize = 20

// Setup is a ready-to-run job: the problem, the optimizer and its task.
type Setup struct {
	Problem   *problem.Problem
	Optimizer Optimizer
	Task      Task
}

// FromConfig builds the problem, optimizer and task described by cfg.
// Zero-valued optimizer settings keep the spsa defaults. The task starts at
// the problem's default start point; callers resuming a job overwrite
// Task.Start.
func FromConfig(cfg store.JobConfig, logger *slog.Logger) (*Setup, error) {
	p, err := problem.Lookup(cfg.Problem, cfg.Dim)
	if err != nil {
		return nil, err
	}

	var o Optimizer
	switch cfg.Method {
	case store.MethodSPSA, "":
		opts, err := SPSAOptions(cfg, logger)
		if err != nil {
			return nil, err
		}
		o = NewSPSA(opts)
	case store.MethodMayfly:
		pop := cfg.PopSize
		if pop <= 0 {
			pop = DefaultPopSize
		}
		o = NewMayfly(cfg.Iters, pop, cfg.Seed)
	default:
		return nil, fmt.Errorf("unknown method %q (available: %s, %s)", cfg.Method, store.MethodSPSA, store.MethodMayfly)
	}

	target := p.Target(problem.Noise{
		Output:     cfg.OutputNoise,
		Oversample: cfg.Oversample,
		Input:      cfg.InputNoise,
		Seed:       cfg.Seed,
	})

	return &Setup{
		Problem:   p,
		Optimizer: o,
		Task: Task{
			Target:     target,
			Objective:  p.Eval,
			Start:      append([]float64(nil), p.Start...),
			Lower:      p.Lower,
			Upper:      p.Upper,
			Iterations: cfg.Iters,
		},
	}, nil
}

// SPSAOptions maps the spsa fields of cfg onto spsa.DefaultOptions.
func SPSAOptions(cfg store.JobConfig, logger *slog.Logger) (spsa.Options, error) {
	opts := spsa.DefaultOptions()
	opts.Seed = cfg.Seed
	opts.Logger = logger
	opts.Adam = !cfg.NoAdam

	if cfg.Iters > 0 {
		opts.Iterations = cfg.Iters
	}
	if cfg.LearningRate > 0 {
		opts.LearningRate = cfg.LearningRate
	}
	if cfg.Momentum > 0 {
		opts.Momentum = cfg.Momentum
	}
	if cfg.Beta > 0 {
		opts.Beta = cfg.Beta
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
