package spsa

import (
	"context"
	"math"

	"github.com/cwbudde/spsaopt/internal/vec"
	"gonum.org/v1/gonum/floats"
)

// iterate runs the main loop. It returns a non-nil error only for fatal
// failures; early stops are recorded in r.res.Stop.
func (r *run) iterate(ctx context.Context) error {
	p, o := r.p, r.opts

	r.mx = math.Sqrt(r.m1 * r.m2)
	r.bx = r.mx
	floats.ScaleTo(p.xAvg, r.mx, r.x)

	r.yBest = r.y / r.bn
	copy(p.xBest, r.x)

	for j, g := range p.gx {
		p.dx[j] = g / r.b1
	}
	r.normalize(p.dx)

	r.y3 = r.eval(r.x)
	r.y6 = r.eval(r.x)

	for i := 0; i < o.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			r.res.Stop = StopCancelled
			r.log.Debug("Optimization cancelled", "iteration", i, "reason", err)
			break
		}

		if !r.sampleGradient(i) {
			r.res.Stop = StopNonFiniteGradient
			r.log.Debug("Non-finite gradient sample, stopping early", "iteration", i)
			break
		}

		r.checkMomentum()
		r.foldGradient(p.ndx)

		fa := 1 / (r.b1 * math.Pow(1+o.LRDecay*float64(i), o.LRPower))
		floats.ScaleTo(p.dx, fa, p.gx)
		r.normalize(p.dx)

		r.adaptLearningRate(i)

		if err := r.step(i); err != nil {
			return err
		}

		r.average(i)

		r.it = Iteration{
			Index:        i,
			Point:        r.x,
			Gradient:     p.gx,
			BestValue:    r.yBest,
			Recoveries:   r.res.Recoveries,
			LearningRate: &r.lr,
		}
		notify(r.target, &r.it)

		r.res.Iterations = i + 1

		if r.consecutiveFails >= 128*(r.improvementFails+r.rounds) {
			r.restart(i)
		}
	}

	return nil
}

// sampleGradient evaluates the target on both sides of the next candidate point
// and leaves the gradient sample in ndx. It reports false when the sample is
// not finite.
func (r *run) sampleGradient(i int) bool {
	p, o := r.p, r.opts

	floats.AddScaledTo(p.scratch, r.x, r.lr, p.dx)

	size := (r.lr / r.m1 * o.Perturbation / math.Pow(1+o.PerturbationDecay*float64(i), o.PerturbationPower)) * vec.Norm(p.dx)
	for j := range p.ndx {
		p.ndx[j] = r.src.Sign() * size
	}
	r.normalize(p.ndx)

	floats.Add(p.scratch, p.ndx)
	y1 := r.eval(p.scratch)

	floats.AddScaled(p.scratch, -2, p.ndx)
	y2 := r.eval(p.scratch)

	df := r.symmetricDifference(y1, y2) * r.sqrtN / vec.Norm2(p.ndx)
	if !finite(df) {
		return false
	}

	floats.Scale(df, p.ndx)
	return true
}

// checkMomentum makes the fast average more reactive when the new sample
// points away from it. The tolerated disagreement shrinks with every failure.
func (r *run) checkMomentum() {
	threshold := 0.5/math.Pow(1+0.1*float64(r.momentumFails), 0.3) - 1

	if vec.Cosine(r.p.ndx, r.p.gx) < threshold {
		r.momentumFails++
		r.m1 = (1 - r.opts.Momentum) / math.Sqrt(1+0.1*float64(r.momentumFails))
	}
}

// adaptLearningRate compares no step, a half step and an enlarged step and
// moves the learning rate towards whichever is not beaten by the others by
// more than the noise margin. The three checks are independent and may
// compound within one iteration.
func (r *run) adaptLearningRate(i int) {
	p, m2 := r.p, r.m2

	floats.AddScaledTo(p.scratch, r.x, r.lr*0.5, p.dx)
	y4 := r.eval(p.scratch)

	floats.AddScaledTo(p.scratch, r.x, r.lr/math.Sqrt(r.m1), p.dx)
	y5 := r.eval(p.scratch)

	r.bn = ema(r.bn, m2, 1)
	r.y = ema(r.y, m2, r.y3)

	d := r.y3 - r.y6
	r.noise = ema(r.noise, m2, float64(d*d)+float64(1e-64*(math.Abs(r.y3)+math.Abs(r.y6))))

	margin := 0.25 * math.Sqrt(r.noise/r.bn)

	if r.y3+margin > fmax(y4, y5) {
		r.lr /= 1.3
	}
	if y4+margin > fmax(r.y3, y5) {
		r.lr *= 1.3 / 1.4
	}
	if y5+margin > fmax(r.y3, y4) {
		r.lr *= 1.4
	}

	floor := r.opts.Epsilon / math.Sqrt(1+0.01*float64(i)) * (1 + 0.25*vec.Norm(r.x))
	r.lr = fmax(r.lr, floor)
}

// step moves x along dx and re-measures it. A step into infeasible territory
// is undone; if the previous point fails as well the run is stuck.
func (r *run) step(i int) error {
	p := r.p

	copy(p.prev, r.x)
	floats.AddScaled(r.x, r.lr, p.dx)

	r.y3 = r.eval(r.x)
	r.y6 = r.eval(r.x)

	if finite(r.y3) && finite(r.y6) {
		return nil
	}

	copy(r.x, p.prev)

	r.y3 = r.eval(r.x)
	r.y6 = r.eval(r.x)

	r.consecutiveFails += 10
	r.res.Rollbacks++

	if !finite(r.y3) || !finite(r.y6) {
		r.log.Debug("Stuck out of bounds", "iteration", i, "y3", r.y3, "y6", r.y6)
		return &FatalError{Iteration: i, Err: ErrStuckOutOfBounds}
	}

	return nil
}

// average folds x into the trajectory average and records a new best when
// the running mean of the target improved.
func (r *run) average(i int) {
	p := r.p

	fa := r.mx / math.Pow(1+0.01*float64(i), 0.303)
	r.bx = ema(r.bx, fa, 1)
	for j, v := range r.x {
		p.xAvg[j] = ema(p.xAvg[j], fa, v)
	}

	r.consecutiveFails++

	if r.y/r.bn > r.yBest {
		r.yBest = r.y / r.bn
		for j, v := range p.xAvg {
			p.xBest[j] = v / r.bx
		}
		r.consecutiveFails = 0
	}
}
