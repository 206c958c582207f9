package spsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns successive values and records how often it was called.
type sequence struct {
	values []float64
	calls  int
	seen   []int
}

func (s *sequence) Evaluate([]float64) float64 {
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return v
}

func (s *sequence) Iteration(it *Iteration) {
	s.seen = append(s.seen, it.Index)
}

func TestOversample_Mean(t *testing.T) {
	s := &sequence{values: []float64{1, 2, 6}}
	o := Oversample(s, 2)

	assert.Equal(t, 3.0, o.Evaluate([]float64{0}))
	assert.Equal(t, 3, s.calls)
}

func TestOversample_NegativeCount(t *testing.T) {
	s := &sequence{values: []float64{4}}
	assert.Equal(t, 4.0, Oversample(s, -3).Evaluate(nil))
	assert.Equal(t, 1, s.calls)
}

func TestOutputNoise_Bounded(t *testing.T) {
	o := OutputNoise(Func(func([]float64) float64 { return 10 }), 0.5, NewSource(3))

	for i := 0; i < 1000; i++ {
		v := o.Evaluate(nil)
		require.GreaterOrEqual(t, v, 9.5)
		require.Less(t, v, 10.5)
	}
}

func TestInputNoise_SymmetricOnLinearTarget(t *testing.T) {
	var points [][]float64
	linear := Func(func(x []float64) float64 {
		points = append(points, append([]float64(nil), x...))
		return 3*x[0] - 2*x[1]
	})

	o := InputNoise(linear, 0.25, NewSource(11))
	x := []float64{1, 4}

	v := o.Evaluate(x)
	assert.InDelta(t, 3*1.0-2*4.0, v, 1e-12)

	require.Len(t, points, 2)
	for i := range x {
		assert.InDelta(t, x[i], (points[0][i]+points[1][i])/2, 1e-12, "perturbed points must mirror around x")
		assert.LessOrEqual(t, points[0][i]-x[i], 0.25)
		assert.GreaterOrEqual(t, points[0][i]-x[i], -0.25)
	}
	assert.Equal(t, []float64{1, 4}, x, "input must not be modified")
}

func TestDecorators_ForwardIteration(t *testing.T) {
	s := &sequence{values: []float64{0}}
	var outer []int

	target := WithObserver(
		InputNoise(OutputNoise(Oversample(s, 1), 0.1, nil), 0.1, nil),
		func(it *Iteration) { outer = append(outer, it.Index) },
	)

	lr := 1.0
	for i := 0; i < 3; i++ {
		target.Iteration(&Iteration{Index: i, LearningRate: &lr})
	}

	assert.Equal(t, []int{0, 1, 2}, s.seen)
	assert.Equal(t, []int{0, 1, 2}, outer)
}

func TestFunc_NoObserver(t *testing.T) {
	f := Func(func(x []float64) float64 { return x[0] })
	notify(f, &Iteration{})
	assert.Equal(t, 2.0, f.Evaluate([]float64{2}))
}

func TestSource_Deterministic(t *testing.T) {
	a, b := NewSource(0), NewSource(defaultSeed)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Sign(), b.Sign())
		require.Equal(t, a.Uniform(-1, 1), b.Uniform(-1, 1))
	}
}

func TestSource_SignBalanced(t *testing.T) {
	src := NewSource(17)
	var plus int
	for i := 0; i < 10000; i++ {
		s := src.Sign()
		require.Contains(t, []float64{-1, 1}, s)
		if s > 0 {
			plus++
		}
	}
	assert.InDelta(t, 5000, plus, 300)
}

func TestNormalizeSeed(t *testing.T) {
	assert.Equal(t, defaultSeed, normalizeSeed(0))
	assert.Equal(t, defaultSeed, normalizeSeed(seedModulus))
	assert.Equal(t, int64(42), normalizeSeed(42))
	assert.Equal(t, seedModulus-1, normalizeSeed(-1))
}

func TestDeriveSeed_StreamsDiffer(t *testing.T) {
	for _, seed := range []int64{0, 1, -1, 42, seedModulus - 1} {
		streams := []Source{NewSource(seed), NewSource(DeriveSeed(seed, 1)), NewSource(DeriveSeed(seed, 2))}

		draws := make([][]float64, len(streams))
		for i, src := range streams {
			for j := 0; j < 1000; j++ {
				draws[i] = append(draws[i], src.Uniform(-1, 1))
			}
		}

		for a := 0; a < len(draws); a++ {
			for b := a + 1; b < len(draws); b++ {
				same := 0
				for j := range draws[a] {
					if draws[a][j] == draws[b][j] {
						same++
					}
				}
				assert.Less(t, same, 10, "seed %d: streams %d and %d repeat each other", seed, a, b)
			}
		}
	}
}

func TestDeriveSeed_Deterministic(t *testing.T) {
	assert.Equal(t, DeriveSeed(7, 1), DeriveSeed(7, 1))
	assert.Equal(t, DeriveSeed(0, 1), DeriveSeed(defaultSeed, 1))
	assert.NotEqual(t, DeriveSeed(7, 1), DeriveSeed(7, 2))
}
