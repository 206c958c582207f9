package spsa

import (
	"context"
	"log/slog"
	"math"

	"github.com/cwbudde/spsaopt/internal/vec"
)

// run holds the state of one optimization call.
type run struct {
	target Target
	opts   Options
	src    Source
	log    *slog.Logger

	x      []float64
	p      *pool
	rounds int     // warm-up rounds, also the base of the recovery threshold
	sqrtN  float64 // sqrt of the dimension

	m1, m2 float64 // fast and slow averaging rates
	mx     float64 // trajectory averaging rate

	y, bn  float64 // running mean of the target and its weight
	noise  float64 // running mean of squared differences between repeats
	b1, b2 float64 // weights of the fast and slow gradient averages
	bx     float64 // weight of the trajectory average
	lr     float64

	y3, y6 float64 // two evaluations at the current point
	yBest  float64

	momentumFails    int
	consecutiveFails int
	improvementFails int

	it  Iteration
	res Result
}

func newRun(t Target, x []float64, opts Options, p *pool) *run {
	n := len(x)
	return &run{
		target: t,
		opts:   opts,
		src:    opts.source(),
		log:    opts.logger(),
		x:      x,
		p:      p,
		rounds: warmupRounds(n),
		sqrtN:  math.Sqrt(float64(n)),
		m1:     1 - opts.Momentum,
		m2:     1 - opts.Beta,
	}
}

// warmupRounds returns round(sqrt(n + 100)).
func warmupRounds(n int) int {
	return int(math.Round(math.Sqrt(float64(n) + 100)))
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	if !r.warmUp() {
		for i := range r.x {
			r.x[i] = math.NaN()
		}
		r.res.Stop = StopInfeasibleStart
		r.log.Debug("Infeasible starting point", "dim", len(r.x))
		return &r.res, nil
	}

	r.estimateGradient()
	r.initLearningRate()

	r.log.Debug("Warm-up complete",
		"dim", len(r.x),
		"rounds", r.rounds,
		"mean", r.y/r.bn,
		"noise", math.Sqrt(r.noise/r.bn),
		"learning_rate", r.lr,
	)

	if err := r.iterate(ctx); err != nil {
		r.summarize()
		return &r.res, err
	}

	r.finalize()
	r.summarize()

	return &r.res, nil
}

func (r *run) summarize() {
	r.res.LearningRate = r.lr
	r.res.BestValue = r.yBest
	r.res.NoiseLevel = math.Sqrt(r.noise / r.bn)
	r.res.MomentumFails = r.momentumFails
}

// eval calls the target and counts the evaluation.
func (r *run) eval(x []float64) float64 {
	r.res.Evaluations++
	return r.target.Evaluate(x)
}

// normalize divides v element-wise by sqrt(squareGx/b2 + epsilon) when Adam
// mode is enabled.
func (r *run) normalize(v []float64) {
	if !r.opts.Adam {
		return
	}
	sq := r.p.squareGx
	for i := range v {
		v[i] *= 1 / math.Sqrt(sq[i]/r.b2+r.opts.Epsilon)
	}
}

// foldGradient advances the bias-correction weights and folds a gradient
// sample into the fast, slow and second-moment averages.
func (r *run) foldGradient(sample []float64) {
	p := r.p

	r.b1 = ema(r.b1, r.m1, 1)
	r.b2 = ema(r.b2, r.m2, 1)

	for i, g := range sample {
		p.gx[i] = ema(p.gx[i], r.m1, g)
		p.slowGx[i] = ema(p.slowGx[i], r.m2, g)
		s := p.slowGx[i] / r.b2
		p.squareGx[i] = ema(p.squareGx[i], r.m2, float64(s*s))
	}
}

// ema moves avg towards v by rate. The conversion rounds the product so the
// compiler cannot fuse it into a multiply-add, matching internal/vec.
func ema(avg, rate, v float64) float64 {
	return avg + float64(rate*(v-avg))
}

// symmetricDifference returns half the difference of two perturbed evaluations around the
// running mean. NaN evaluations contribute nothing.
func (r *run) symmetricDifference(up, down float64) float64 {
	return vec.NaNToZero((up-r.y)*0.5) - vec.NaNToZero((down-r.y)*0.5)
}

// fmax returns the larger of a and b, ignoring a NaN operand.
func fmax(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	case a > b:
		return a
	default:
		return b
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
