package spsa

import "gonum.org/v1/gonum/floats"

// restart resumes from the best averaged point. The running statistics are
// scaled back to the weight of a single fresh observation of the best value,
// so they re-adapt quickly, and the learning rate is cut hard. The best point
// and value are kept.
func (r *run) restart(i int) {
	p := r.p

	r.consecutiveFails = 0
	r.improvementFails++

	copy(r.x, p.xBest)
	r.bx = r.mx * (1 - r.mx)
	floats.ScaleTo(p.xAvg, r.bx, r.x)

	fresh := r.m2 * (1 - r.m2)

	r.noise *= fresh / r.bn
	r.y = fresh * r.yBest
	r.bn = fresh
	r.b1 = r.m1 * (1 - r.m1)

	fa := fresh / r.b2
	floats.ScaleTo(p.gx, r.b1/r.b2, p.slowGx)
	floats.Scale(fa, p.slowGx)
	floats.Scale(fa, p.squareGx)

	r.b2 = fresh
	r.lr /= 64 * float64(r.improvementFails)

	r.res.Recoveries++

	r.log.Debug("Recovered from best point",
		"iteration", i,
		"recoveries", r.improvementFails,
		"best_value", r.yBest,
		"learning_rate", r.lr,
	)
}
