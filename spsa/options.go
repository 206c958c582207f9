package spsa

import (
	"log/slog"
	"math"
)

// Options controls an optimization run. Start from DefaultOptions and
// override individual fields; the zero value is not a usable configuration.
type Options struct {
	// Adam normalizes step directions by the square root of a smoothed
	// second moment of the gradient estimate.
	Adam bool

	// Iterations is the maximum number of main-loop iterations.
	Iterations int

	// LearningRate is the starting step size. 0 estimates one with a short
	// geometric search. Either way the rate is retuned every iteration:
	//
	//	lr = lr / (1 + LRDecay*i)^LRPower
	//	x += lr * gradient_estimate
	LearningRate float64

	// LRDecay and LRPower shape the learning-rate decay.
	LRDecay float64
	LRPower float64

	// Perturbation controls how large a change in x is used to measure
	// changes in the target, relative to the previous step length:
	//
	//	dx = Perturbation / (1 + PerturbationDecay*i)^PerturbationPower * norm(lr*step) * signs
	Perturbation      float64
	PerturbationDecay float64
	PerturbationPower float64

	// Momentum is how much of the fast gradient average is kept between
	// iterations. It is reduced automatically while successive gradient
	// samples disagree.
	Momentum float64

	// Beta is the slow averaging factor used for the second moment and for
	// noise tracking. It should be much closer to 1 than Momentum.
	Beta float64

	// Epsilon avoids division by zero in the Adam normalization and sets
	// the learning-rate floor.
	Epsilon float64

	// Seed initializes the perturbation source when Source is nil.
	// 0 selects a fixed default seed.
	Seed int64

	// Source overrides the perturbation source.
	Source Source

	// Logger receives debug output. nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the recommended configuration.
func DefaultOptions() Options {
	return Options{
		Adam:              true,
		Iterations:        10_000,
		LearningRate:      0,
		LRDecay:           1e-3,
		LRPower:           0.5,
		Perturbation:      2.0,
		PerturbationDecay: 1e-2,
		PerturbationPower: 0.161,
		Momentum:          0.9,
		Beta:              0.999,
		Epsilon:           1e-7,
	}
}

// Validate checks that the options describe a runnable configuration.
func (o Options) Validate() error {
	if o.Iterations < 0 {
		return &OptionError{Field: "Iterations", Reason: "cannot be negative"}
	}
	if o.LearningRate < 0 || math.IsNaN(o.LearningRate) || math.IsInf(o.LearningRate, 0) {
		return &OptionError{Field: "LearningRate", Reason: "must be finite and non-negative"}
	}
	if !(o.Momentum >= 0 && o.Momentum < 1) {
		return &OptionError{Field: "Momentum", Reason: "must be in [0, 1)"}
	}
	if !(o.Beta >= 0 && o.Beta < 1) {
		return &OptionError{Field: "Beta", Reason: "must be in [0, 1)"}
	}
	if !(o.Epsilon > 0) {
		return &OptionError{Field: "Epsilon", Reason: "must be positive"}
	}
	if !(o.Perturbation > 0) {
		return &OptionError{Field: "Perturbation", Reason: "must be positive"}
	}
	if o.LRDecay < 0 {
		return &OptionError{Field: "LRDecay", Reason: "cannot be negative"}
	}
	if o.PerturbationDecay < 0 {
		return &OptionError{Field: "PerturbationDecay", Reason: "cannot be negative"}
	}
	return nil
}

func (o Options) source() Source {
	if o.Source != nil {
		return o.Source
	}
	return NewSource(o.Seed)
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
