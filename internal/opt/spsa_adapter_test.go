package opt

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/spsaopt/spsa"
)

func paraboloid(x []float64) float64 {
	return 1 - (x[0]+1)*(x[0]+1) - (x[1]-1)*(x[1]-1)
}

func TestSPSAAdapterOnParaboloid(t *testing.T) {
	optimizer := NewSPSA(spsa.DefaultOptions())
	start := []float64{0, 0}

	res, err := optimizer.Run(context.Background(), Task{
		Target: spsa.Func(paraboloid),
		Start:  start,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if math.Abs(res.Point[0]+1) > 1e-6 || math.Abs(res.Point[1]-1) > 1e-6 {
		t.Errorf("Expected (-1, 1), got %v", res.Point)
	}
	if start[0] != 0 || start[1] != 0 {
		t.Errorf("Start point must not be modified, got %v", start)
	}
	if res.Method != "spsa" {
		t.Errorf("Unexpected method %s", res.Method)
	}
	// A noiseless target may end early once the perturbation vanishes
	if res.Stop != "completed" && res.Stop != "non_finite_gradient" {
		t.Errorf("Unexpected stop %s", res.Stop)
	}
	if res.Iterations <= 0 || res.Iterations > 10_000 {
		t.Errorf("Expected at most 10000 iterations, got %d", res.Iterations)
	}
}

func TestSPSAAdapterProgress(t *testing.T) {
	var reports []Progress
	res, err := NewSPSA(spsa.DefaultOptions()).Run(context.Background(), Task{
		Target:      spsa.Func(paraboloid),
		Start:       []float64{0, 0},
		Iterations:  500,
		ReportEvery: 100,
		Progress:    func(p Progress) { reports = append(reports, p) },
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Iterations != 500 {
		t.Errorf("Task budget should override options, got %d iterations", res.Iterations)
	}
	if len(reports) != 5 {
		t.Fatalf("Expected 5 progress reports, got %d", len(reports))
	}
	for i, p := range reports {
		if p.Iteration != (i+1)*100 {
			t.Errorf("Report %d at iteration %d", i, p.Iteration)
		}
		if p.LearningRate <= 0 {
			t.Errorf("Report %d has learning rate %v", i, p.LearningRate)
		}
		if p.Value != paraboloid(p.Point) {
			t.Errorf("Report %d value %v does not match its point", i, p.Value)
		}
	}
}

func TestSPSAAdapterObjectiveIsNoiseFree(t *testing.T) {
	noisy := spsa.OutputNoise(spsa.Func(paraboloid), 0.01, spsa.NewSource(2))

	res, err := NewSPSA(spsa.DefaultOptions()).Run(context.Background(), Task{
		Target:     noisy,
		Objective:  paraboloid,
		Start:      []float64{0, 0},
		Iterations: 200,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != paraboloid(res.Point) {
		t.Errorf("Expected noise-free value %v, got %v", paraboloid(res.Point), res.Value)
	}
}

func TestSPSAAdapterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	res, err := NewSPSA(spsa.DefaultOptions()).Run(ctx, Task{
		Target:      spsa.Func(paraboloid),
		Start:       []float64{0, 0},
		ReportEvery: 10,
		Progress:    func(Progress) { cancel() },
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stop != "cancelled" || res.Iterations != 10 {
		t.Errorf("Expected cancel after 10 iterations, got %s after %d", res.Stop, res.Iterations)
	}
}

func TestSPSAAdapterErrors(t *testing.T) {
	o := NewSPSA(spsa.DefaultOptions())

	if _, err := o.Run(context.Background(), Task{Start: []float64{0}}); err == nil {
		t.Error("Expected error for missing target")
	}

	_, err := o.Run(context.Background(), Task{Target: spsa.Func(paraboloid)})
	if !errors.Is(err, spsa.ErrEmptyPoint) {
		t.Errorf("Expected ErrEmptyPoint, got %v", err)
	}
}

func TestOptimizersImplementInterface(t *testing.T) {
	for _, o := range []Optimizer{NewSPSA(spsa.DefaultOptions()), NewMayfly(10, 20, 1)} {
		if o.Name() == "" {
			t.Error("Optimizer must have a name")
		}
	}
}
