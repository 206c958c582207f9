package problem

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/spsaopt/spsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"bounded", "paraboloid", "rastrigin", "rosenbrock", "sphere"}, Names())
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("nope", 0)
	require.Error(t, err)

	var unknown *UnknownError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nope", unknown.Name)
	assert.ErrorIs(t, err, &UnknownError{})
	assert.Contains(t, err.Error(), "paraboloid")

	_, err = Describe("nope")
	assert.ErrorIs(t, err, &UnknownError{})
	_, err = DefaultDim("nope")
	assert.ErrorIs(t, err, &UnknownError{})
}

func TestLookup_Dimensions(t *testing.T) {
	_, err := Lookup("paraboloid", 3)
	var dimErr *DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, "problem paraboloid requires dimension 2, got 3", err.Error())

	_, err = Lookup("rosenbrock", 1)
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Min)

	p, err := Lookup("sphere", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Dim)

	p, err = Lookup("rastrigin", 7)
	require.NoError(t, err)
	assert.Len(t, p.Start, 7)
	assert.Len(t, p.Lower, 7)
	assert.Len(t, p.Upper, 7)
	assert.Len(t, p.Optimum, 7)
}

func TestProblems_OptimumValue(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := Lookup(name, 0)
			require.NoError(t, err)

			assert.Equal(t, name, p.Name)
			assert.NotEmpty(t, p.Description)
			assert.InDelta(t, p.Value, p.Eval(p.Optimum), 1e-12)

			start := p.Eval(p.Start)
			require.False(t, math.IsNaN(start), "start point must be feasible")
			assert.Less(t, start, p.Value)

			for i := range p.Start {
				assert.GreaterOrEqual(t, p.Start[i], p.Lower[i])
				assert.LessOrEqual(t, p.Start[i], p.Upper[i])
			}
		})
	}
}

func TestBounded_Infeasible(t *testing.T) {
	assert.True(t, math.IsNaN(bounded([]float64{-0.1, 1})))
	assert.True(t, math.IsNaN(bounded([]float64{1, -0.1})))
	assert.True(t, math.IsNaN(bounded([]float64{6, 5})))
	assert.Equal(t, 10.0, bounded([]float64{4, 6}))
}

func TestRosenbrock(t *testing.T) {
	assert.Equal(t, -(100.0 + 1), rosenbrock([]float64{0, 1}))
	assert.Equal(t, -4.0, rosenbrock([]float64{-1, 1}))
}

func TestNoise_Active(t *testing.T) {
	assert.False(t, Noise{Seed: 3}.Active())
	assert.True(t, Noise{Output: 0.1}.Active())
	assert.True(t, Noise{Oversample: 1}.Active())
	assert.True(t, Noise{Input: 0.1}.Active())
}

func TestTarget_NoNoiseIsExact(t *testing.T) {
	p, err := Lookup("paraboloid", 0)
	require.NoError(t, err)

	target := p.Target(Noise{})
	assert.Equal(t, p.Eval([]float64{0.3, 0.7}), target.Evaluate([]float64{0.3, 0.7}))
}

func TestTarget_NoiseIsDeterministic(t *testing.T) {
	p, err := Lookup("sphere", 3)
	require.NoError(t, err)

	n := Noise{Output: 0.5, Oversample: 2, Input: 0.1, Seed: 4}
	a, b := p.Target(n), p.Target(n)

	x := []float64{1, 2, 3}
	for i := 0; i < 10; i++ {
		va, vb := a.Evaluate(x), b.Evaluate(x)
		require.Equal(t, va, vb)
		assert.NotEqual(t, p.Eval(x), va)
	}
}

func TestTarget_NoiseDoesNotRepeatOptimizerStream(t *testing.T) {
	p, err := Lookup("paraboloid", 0)
	require.NoError(t, err)

	x := []float64{0.25, 0.5}
	for _, seed := range []int64{0, 1, -1, 42} {
		target := p.Target(Noise{Output: 1, Seed: seed})
		perturbations := spsa.NewSource(seed)

		same := 0
		for i := 0; i < 1000; i++ {
			noise := target.Evaluate(x) - p.Eval(x)
			if math.Abs(noise-perturbations.Uniform(-1, 1)) < 1e-12 {
				same++
			}
		}
		assert.Less(t, same, 10, "seed %d: output noise follows the optimizer stream", seed)
	}
}

func TestTarget_OversampleReducesNoise(t *testing.T) {
	p, err := Lookup("sphere", 2)
	require.NoError(t, err)

	spread := func(n Noise) float64 {
		target := p.Target(n)
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < 500; i++ {
			v := target.Evaluate([]float64{0, 0})
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		return hi - lo
	}

	plain := spread(Noise{Output: 1, Seed: 1})
	averaged := spread(Noise{Output: 1, Oversample: 15, Seed: 1})
	assert.Less(t, averaged, plain)
}

func TestProblems_SPSAImproves(t *testing.T) {
	for _, name := range []string{"paraboloid", "bounded", "sphere"} {
		t.Run(name, func(t *testing.T) {
			p, err := Lookup(name, 0)
			require.NoError(t, err)

			x := append([]float64(nil), p.Start...)
			_, err = spsa.Optimize(p.Target(Noise{}), x, spsa.DefaultOptions())
			require.NoError(t, err)

			v := p.Eval(x)
			require.False(t, math.IsNaN(v), "result must be feasible: %v", x)
			assert.Greater(t, v, p.Eval(p.Start))
			assert.InDelta(t, p.Value, v, 0.05)
		})
	}
}
