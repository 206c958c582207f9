// Package spsa implements a gradient-free stochastic optimizer that maximizes
// a scalar, possibly noisy, possibly partially infeasible black-box function.
//
// The gradient is estimated from simultaneous random perturbations (SPSA):
// two evaluations per iteration regardless of dimension. The estimate is
// smoothed with bias-corrected fast and slow moving averages, optionally
// normalized by a second-moment estimate (Adam style), and followed with a
// learning rate that tunes itself every iteration by comparing no step, a
// half step and an enlarged step against the measured evaluation noise.
//
// Infeasible points are signalled by the target returning NaN. A NaN sample
// carries no gradient information and contributes nothing; a step that lands
// outside the feasible region is rolled back. If the starting point itself is
// infeasible the point is overwritten with NaN values.
//
// Long stretches without improvement trigger a soft restart from the best
// averaged point seen so far, with the smoothing statistics and learning rate
// scaled back down.
//
// Basic usage:
//
//	x := []float64{0, 0}
//	f := spsa.Func(func(p []float64) float64 {
//		return 1 - (p[0]+1)*(p[0]+1) - (p[1]-1)*(p[1]-1)
//	})
//	res, err := spsa.Optimize(f, x, spsa.DefaultOptions())
//
// Runs are reproducible: the same target, start, options and seed give
// bit-identical results on one architecture. The running averages are kept
// free of fused multiply-adds, but the gonum vector kernels and the decay
// schedules are not, so results on arm64, ppc64le or s390x may differ from
// amd64 in the last bits and drift apart over long runs.
//
// An Optimizer keeps its scratch buffers between runs and can be reused for
// repeated optimizations of the same dimension. It is not safe for
// concurrent use.
package spsa
