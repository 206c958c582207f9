package spsa

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// warmUp seeds the running mean and noise estimate from repeated evaluations
// at the starting point. It reports false when the start is infeasible.
func (r *run) warmUp() bool {
	for i := 0; i < r.rounds; i++ {
		v := r.eval(r.x)
		if i == 0 && math.IsNaN(v) {
			return false
		}

		r.bn = ema(r.bn, r.m2, 1)
		r.y = ema(r.y, r.m2, v)

		d := v - r.eval(r.x)
		r.noise = ema(r.noise, r.m2, float64(d*d))
	}

	return !math.IsNaN(r.y)
}

// estimateGradient seeds the gradient averages with shrinking random-sign
// perturbations around the starting point.
func (r *run) estimateGradient() {
	p := r.p
	dx, trial := p.dx, p.scratch

	for i := 0; i < r.rounds; i++ {
		for j := range dx {
			dx[j] = r.src.Sign() / (1 + float64(i))
		}

		y1 := r.eval(floats.AddTo(trial, r.x, dx))
		y2 := r.eval(floats.SubTo(trial, r.x, dx))

		df := r.symmetricDifference(y1, y2)
		for j := range dx {
			dx[j] = df / dx[j]
		}

		r.foldGradient(dx)
	}
}

// initLearningRate picks the starting step size. Unless one is configured it
// starts tiny and grows it geometrically while a step of that size along the
// warm-up gradient keeps beating the current point.
func (r *run) initLearningRate() {
	if r.opts.LearningRate > 0 {
		r.lr = r.opts.LearningRate
		return
	}

	p := r.p
	lr := 1e-5

	floats.ScaleTo(p.dx, 3/r.b1, p.gx)
	r.normalize(p.dx)

	for k := 0; k < 5; k++ {
		floats.AddScaledTo(p.scratch, r.x, -lr, p.dx)

		a := fmax(r.eval(p.scratch), r.eval(p.scratch))
		b := fmax(r.eval(r.x), r.eval(r.x))

		if !(a > b) {
			break
		}
		lr *= 1.4
	}

	r.lr = lr
}
