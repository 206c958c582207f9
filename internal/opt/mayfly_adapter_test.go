package opt

import (
	"context"
	"math"
	"testing"

	"github.com/cwbudde/spsaopt/spsa"
)

// Negated sphere: maximum 0 at the origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return -sum
}

func box(dim int, lo, hi float64) ([]float64, []float64) {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < dim; i++ {
		lower[i] = lo
		upper[i] = hi
	}
	return lower, upper
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42) // maxIters, popSize, seed

	lower, upper := box(3, -10, 10)
	res, err := optimizer.Run(context.Background(), Task{
		Target: spsa.Func(sphere),
		Lower:  lower,
		Upper:  upper,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Point) != 3 {
		t.Fatalf("Expected 3 parameters, got %d", len(res.Point))
	}
	if res.Value < -0.1 {
		t.Errorf("Expected value near 0, got %f", res.Value)
	}
	for i, v := range res.Point {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
	if res.Method != "mayfly" || res.Stop != "completed" {
		t.Errorf("Unexpected method/stop: %s/%s", res.Method, res.Stop)
	}
	if res.Evaluations == 0 {
		t.Error("Expected evaluations to be counted")
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	lower, upper := box(2, -5, 5)
	task := Task{Target: spsa.Func(sphere), Lower: lower, Upper: upper}

	// popSize must be >=20 for mayfly v0.1.0
	res1, err := NewMayfly(50, 20, 123).Run(context.Background(), task)
	if err != nil {
		t.Fatal(err)
	}
	res2, err := NewMayfly(50, 20, 123).Run(context.Background(), task)
	if err != nil {
		t.Fatal(err)
	}

	if res1.Value != res2.Value {
		t.Errorf("Non-deterministic: value1=%f, value2=%f", res1.Value, res2.Value)
	}
}

func TestMayflyAdapterRespectsFeasibleRegion(t *testing.T) {
	// x + y on x, y >= 0, x + y <= 10
	bounded := func(x []float64) float64 {
		if x[0] < 0 || x[1] < 0 || x[0]+x[1] > 10 {
			return math.NaN()
		}
		return x[0] + x[1]
	}

	res, err := NewMayfly(100, 20, 7).Run(context.Background(), Task{
		Target: spsa.Func(bounded),
		Lower:  []float64{0, 0},
		Upper:  []float64{10, 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(res.Value) {
		t.Fatalf("Result must be feasible, got %v", res.Point)
	}
	if res.Value < 9 {
		t.Errorf("Expected value near 10, got %f", res.Value)
	}
}

func TestMayflyAdapterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lower, upper := box(2, -5, 5)
	res, err := NewMayfly(50, 20, 1).Run(ctx, Task{Target: spsa.Func(sphere), Lower: lower, Upper: upper})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stop != "cancelled" {
		t.Errorf("Expected cancelled stop, got %s", res.Stop)
	}
	if res.Evaluations != 0 {
		t.Errorf("Expected no evaluations after cancel, got %d", res.Evaluations)
	}
}

func TestMayflyAdapterCancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	target := spsa.Func(func(x []float64) float64 {
		calls++
		if calls == 400 {
			cancel()
		}
		return sphere(x)
	})

	lower, upper := box(2, -5, 5)
	res, err := NewMayfly(50, 20, 3).Run(ctx, Task{Target: target, Lower: lower, Upper: upper})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stop != "cancelled" {
		t.Errorf("Expected cancelled stop, got %s", res.Stop)
	}
	if res.Evaluations != 400 {
		t.Errorf("Expected 400 evaluations before the cancel, got %d", res.Evaluations)
	}
	if res.Iterations <= 0 || res.Iterations >= 50 {
		t.Errorf("Expected a partial iteration count, got %d of 50", res.Iterations)
	}
}

func TestCompletedIterations(t *testing.T) {
	tests := []struct {
		evals, init, perIter, iters int
		want                        int
	}{
		{evals: 0, init: 40, perIter: 60, iters: 10, want: 0},
		{evals: 40, init: 40, perIter: 60, iters: 10, want: 0},
		{evals: 99, init: 40, perIter: 60, iters: 10, want: 0},
		{evals: 100, init: 40, perIter: 60, iters: 10, want: 1},
		{evals: 400, init: 40, perIter: 60, iters: 10, want: 6},
		{evals: 10000, init: 40, perIter: 60, iters: 10, want: 10},
		{evals: 100, init: 40, perIter: 0, iters: 10, want: 0},
	}
	for _, tt := range tests {
		if got := completedIterations(tt.evals, tt.init, tt.perIter, tt.iters); got != tt.want {
			t.Errorf("completedIterations(%d, %d, %d, %d) = %d, want %d",
				tt.evals, tt.init, tt.perIter, tt.iters, got, tt.want)
		}
	}
}

func TestMayflyAdapterCompletedRunReportsBudget(t *testing.T) {
	lower, upper := box(2, -5, 5)
	var last int
	res, err := NewMayfly(30, 20, 5).Run(context.Background(), Task{
		Target:      spsa.Func(sphere),
		Lower:       lower,
		Upper:       upper,
		ReportEvery: 1,
		Progress:    func(p Progress) { last = p.Iteration },
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Iterations != 30 {
		t.Errorf("Expected 30 iterations, got %d", res.Iterations)
	}
	if last > 30 {
		t.Errorf("Progress iteration %d exceeds the budget", last)
	}
}

func TestMayflyAdapterBoundsValidation(t *testing.T) {
	_, err := NewMayfly(10, 20, 1).Run(context.Background(), Task{
		Target: spsa.Func(sphere),
		Lower:  []float64{0, 0},
		Upper:  []float64{1},
	})
	if err == nil {
		t.Error("Expected error for mismatched bounds")
	}

	_, err = NewMayfly(10, 20, 1).Run(context.Background(), Task{Lower: []float64{0}, Upper: []float64{1}})
	if err == nil {
		t.Error("Expected error for missing target")
	}
}
