package opt

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/spsaopt/internal/problem"
	"github.com/cwbudde/spsaopt/internal/store"
	"github.com/cwbudde/spsaopt/spsa"
)

func TestFromConfig_SPSA(t *testing.T) {
	setup, err := FromConfig(store.JobConfig{Problem: "paraboloid", Dim: 2, Method: store.MethodSPSA, Iters: 300}, nil)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	if setup.Optimizer.Name() != "spsa" {
		t.Errorf("Expected spsa, got %s", setup.Optimizer.Name())
	}
	if setup.Task.Iterations != 300 || len(setup.Task.Start) != 2 {
		t.Errorf("Unexpected task: %+v", setup.Task)
	}

	// The start point is a copy
	setup.Task.Start[0] = 42
	if setup.Problem.Start[0] == 42 {
		t.Error("Task start must not alias the problem start")
	}

	setup.Task.Start[0] = 0
	res, err := setup.Optimizer.Run(context.Background(), setup.Task)
	if err != nil {
		t.Fatal(err)
	}
	if res.Iterations != 300 {
		t.Errorf("Expected 300 iterations, got %d", res.Iterations)
	}
	if res.Value <= setup.Problem.Eval(setup.Problem.Start) {
		t.Errorf("Expected improvement, got %v", res.Value)
	}
}

func TestFromConfig_Mayfly(t *testing.T) {
	setup, err := FromConfig(store.JobConfig{Problem: "sphere", Dim: 3, Method: store.MethodMayfly, Iters: 20}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if setup.Optimizer.Name() != "mayfly" {
		t.Errorf("Expected mayfly, got %s", setup.Optimizer.Name())
	}
	if m := setup.Optimizer.(*MayflyAdapter); m.popSize != DefaultPopSize {
		t.Errorf("Expected default population %d, got %d", DefaultPopSize, m.popSize)
	}
}

func TestFromConfig_Errors(t *testing.T) {
	_, err := FromConfig(store.JobConfig{Problem: "missing", Method: store.MethodSPSA}, nil)
	if !errors.Is(err, &problem.UnknownError{}) {
		t.Errorf("Expected UnknownError, got %v", err)
	}

	_, err = FromConfig(store.JobConfig{Problem: "sphere", Method: "newton"}, nil)
	if err == nil {
		t.Error("Expected error for unknown method")
	}

	_, err = FromConfig(store.JobConfig{Problem: "sphere", Method: store.MethodSPSA, Beta: 1.5}, nil)
	if !errors.Is(err, spsa.ErrInvalidOptions) {
		t.Errorf("Expected invalid options, got %v", err)
	}
}

func TestSPSAOptions(t *testing.T) {
	opts, err := SPSAOptions(store.JobConfig{
		Iters:        50,
		Seed:         9,
		LearningRate: 0.01,
		NoAdam:       true,
		Momentum:     0.5,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if opts.Iterations != 50 || opts.Seed != 9 || opts.LearningRate != 0.01 || opts.Adam || opts.Momentum != 0.5 {
		t.Errorf("Options not mapped: %+v", opts)
	}
	if opts.Beta != spsa.DefaultOptions().Beta {
		t.Errorf("Unset beta should keep the default, got %v", opts.Beta)
	}
}
