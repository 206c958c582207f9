package spsa

// OversampleTarget evaluates its source several times and returns the mean,
// trading evaluations for lower output noise.
type OversampleTarget struct {
	source Target
	count  int
}

// Oversample returns a target that calls t count+1 times per evaluation and
// averages the results. Negative counts behave like 0.
func Oversample(t Target, count int) *OversampleTarget {
	if count < 0 {
		count = 0
	}
	return &OversampleTarget{source: t, count: count}
}

func (o *OversampleTarget) Evaluate(x []float64) float64 {
	n := o.count + 1

	var v float64
	for i := 0; i < n; i++ {
		v += o.source.Evaluate(x)
	}

	return v / float64(n)
}

func (o *OversampleTarget) Iteration(it *Iteration) {
	notify(o.source, it)
}

// OutputNoiseTarget adds uniform noise to the output of its source.
type OutputNoiseTarget struct {
	source    Target
	src       Source
	amplitude float64
}

// OutputNoise returns a target that adds noise drawn uniformly from
// [-amplitude, amplitude) to every evaluation of t.
// A nil src uses NewSource(0).
func OutputNoise(t Target, amplitude float64, src Source) *OutputNoiseTarget {
	if src == nil {
		src = NewSource(0)
	}
	return &OutputNoiseTarget{source: t, src: src, amplitude: amplitude}
}

func (o *OutputNoiseTarget) Evaluate(x []float64) float64 {
	return o.source.Evaluate(x) + o.src.Uniform(-o.amplitude, o.amplitude)
}

func (o *OutputNoiseTarget) Iteration(it *Iteration) {
	notify(o.source, it)
}

// InputNoiseTarget blurs the input domain of its source.
//
// Functions with many local optima trap perturbation methods in the nearest
// basin. Evaluating at x+δ and x-δ for a random δ and averaging smooths out
// narrow basins: with enough noise and a general trend towards the best basin
// the optimizer moves across neighbouring basins instead of settling in the
// first one.
type InputNoiseTarget struct {
	source    Target
	src       Source
	amplitude float64
	buffer    []float64
}

// InputNoise returns a target that evaluates t at x+δ and x-δ, δ drawn
// uniformly from [-amplitude, amplitude) per coordinate, and returns the
// mean. A nil src uses NewSource(0).
func InputNoise(t Target, amplitude float64, src Source) *InputNoiseTarget {
	if src == nil {
		src = NewSource(0)
	}
	return &InputNoiseTarget{source: t, src: src, amplitude: amplitude}
}

func (o *InputNoiseTarget) Evaluate(x []float64) float64 {
	if cap(o.buffer) < len(x) {
		o.buffer = make([]float64, len(x))
	}
	buf := o.buffer[:len(x)]

	for i := range buf {
		buf[i] = o.src.Uniform(-1, 1) * o.amplitude
	}

	for i := range buf {
		buf[i] += x[i]
	}
	up := o.source.Evaluate(buf)

	for i := range buf {
		buf[i] = 2*x[i] - buf[i]
	}
	down := o.source.Evaluate(buf)

	return (up + down) * 0.5
}

func (o *InputNoiseTarget) Iteration(it *Iteration) {
	notify(o.source, it)
}
