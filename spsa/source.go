package spsa

import "math/rand"

// Source supplies the randomness used for perturbations and noise decorators.
// Implementations are not required to be safe for concurrent use.
type Source interface {
	// Uniform returns a value in [lo, hi).
	Uniform(lo, hi float64) float64

	// Sign returns +1 or -1 with equal probability.
	Sign() float64
}

// defaultSeed is used when callers pass seed 0, so default runs are
// reproducible.
const defaultSeed int64 = 1

// seedModulus is the period of math/rand seeds: seeds congruent modulo it
// produce the same stream.
const seedModulus int64 = 1<<31 - 1

type randSource struct {
	rng *rand.Rand
}

// NewSource returns a deterministic Source seeded with seed.
// Seed 0 selects a fixed default seed.
func NewSource(seed int64) Source {
	return &randSource{rng: rand.New(rand.NewSource(normalizeSeed(seed)))}
}

// normalizeSeed maps seed to the value in [1, seedModulus) that math/rand
// would effectively use, with 0 replaced by defaultSeed.
func normalizeSeed(seed int64) int64 {
	seed %= seedModulus
	if seed < 0 {
		seed += seedModulus
	}
	if seed == 0 {
		seed = defaultSeed
	}
	return seed
}

// DeriveSeed returns the seed of stream number stream derived from seed.
// Stream 0 is the stream NewSource(seed) draws, and streams 1 and up never
// repeat it, including for seed 0. Use it to seed noise decorators that run
// next to an optimizer seeded with the same value.
func DeriveSeed(seed int64, stream int) int64 {
	return (normalizeSeed(seed) + int64(stream)) % seedModulus
}

func (s *randSource) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

func (s *randSource) Sign() float64 {
	if s.rng.Int63()&1 == 0 {
		return -1
	}
	return 1
}
