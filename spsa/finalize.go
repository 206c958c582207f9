package spsa

import "math"

// finalize keeps the live point unless the best averaged point beats two
// fresh evaluations of it by more than the noise margin.
func (r *run) finalize() {
	a := r.eval(r.x)
	b := r.eval(r.x)

	if r.yBest+0.25*math.Sqrt(r.noise/r.bn) > fmax(a, b) {
		copy(r.x, r.p.xBest)
		r.res.UsedBest = true
	}
}
