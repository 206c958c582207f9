package problem

import "github.com/cwbudde/spsaopt/spsa"

// Noise describes the decorators applied around an objective.
type Noise struct {
	// Output is the amplitude of uniform noise added to every evaluation.
	Output float64 `json:"output,omitempty"`

	// Oversample is the number of extra evaluations averaged per call.
	Oversample int `json:"oversample,omitempty"`

	// Input is the amplitude of the symmetric input blur.
	Input float64 `json:"input,omitempty"`

	// Seed initializes the noise sources. Output and input noise draw from
	// separate streams derived from it, neither of which repeats the
	// perturbation stream of an optimizer given the same seed.
	Seed int64 `json:"seed,omitempty"`
}

// Streams derived from Noise.Seed. Stream 0 belongs to the optimizer.
const (
	outputNoiseStream = 1
	inputNoiseStream  = 2
)

// Active reports whether any decorator is configured.
func (n Noise) Active() bool {
	return n.Output > 0 || n.Oversample > 0 || n.Input > 0
}

// Target returns the problem's objective as an spsa.Target with the noise
// decorators applied. Output noise is innermost, so oversampling averages it
// away; the input blur is outermost.
func (p *Problem) Target(n Noise) spsa.Target {
	var t spsa.Target = spsa.Func(p.Eval)

	if n.Output > 0 {
		t = spsa.OutputNoise(t, n.Output, spsa.NewSource(spsa.DeriveSeed(n.Seed, outputNoiseStream)))
	}
	if n.Oversample > 0 {
		t = spsa.Oversample(t, n.Oversample)
	}
	if n.Input > 0 {
		t = spsa.InputNoise(t, n.Input, spsa.NewSource(spsa.DeriveSeed(n.Seed, inputNoiseStream)))
	}

	return t
}
