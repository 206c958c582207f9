package spsa

// Target is a function to maximize.
//
// Evaluate must return NaN for points outside the feasible region instead of
// panicking. The slice passed in is a scratch snapshot owned by the
// optimizer: it must not be modified or retained after Evaluate returns.
// Targets may keep internal state (for example their own random source);
// the optimizer calls them in a fixed order so runs stay reproducible.
type Target interface {
	Evaluate(x []float64) float64
}

// Observer is implemented by targets that want to be told about every
// iteration of the main loop. Targets that do not implement it are simply not
// notified.
type Observer interface {
	Iteration(it *Iteration)
}

// Iteration describes one completed main-loop iteration.
type Iteration struct {
	// Index is the zero-based iteration number
	Index int

	// Point is the current point. Read only.
	Point []float64

	// Gradient is the smoothed gradient estimate. Read only.
	Gradient []float64

	// BestValue is the best bias-corrected running mean of the target so
	// far. It never decreases, not even across a recovery.
	BestValue float64

	// Recoveries counts the soft restarts before this iteration
	Recoveries int

	// LearningRate may be overwritten to change the step size used by the
	// next iteration.
	LearningRate *float64
}

// Func adapts an ordinary function to the Target interface.
type Func func(x []float64) float64

// Evaluate calls f(x).
func (f Func) Evaluate(x []float64) float64 {
	return f(x)
}

// notify forwards it to t when t observes iterations.
func notify(t Target, it *Iteration) {
	if o, ok := t.(Observer); ok {
		o.Iteration(it)
	}
}

// ObservedTarget wraps a target with an extra iteration callback.
type ObservedTarget struct {
	source Target
	fn     func(it *Iteration)
}

// WithObserver returns a target that evaluates like t and calls fn after t
// has been notified of each iteration.
func WithObserver(t Target, fn func(it *Iteration)) *ObservedTarget {
	return &ObservedTarget{source: t, fn: fn}
}

func (o *ObservedTarget) Evaluate(x []float64) float64 {
	return o.source.Evaluate(x)
}

func (o *ObservedTarget) Iteration(it *Iteration) {
	notify(o.source, it)
	if o.fn != nil {
		o.fn(it)
	}
}
