package problem

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines parameters for detecting that a run has stopped
// making progress.
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool

	// Patience is the number of consecutive checks with no significant
	// improvement before stopping
	Patience int

	// Threshold is the minimum relative improvement required to count as progress.
	// Relative improvement = (value - lastSignificant) / max(|lastSignificant|, 1)
	Threshold float64
}

// DefaultConvergenceConfig returns sensible defaults for convergence detection
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  5,
		Threshold: 1e-6,
	}
}

// ConvergenceTracker tracks objective values of a maximization and detects
// when progress has stalled.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	best            float64 // Best value ever seen
	lastSignificant float64 // Last value that was a significant improvement
	staleCount      int     // Number of checks without significant improvement
}

// NewConvergenceTracker creates a new convergence tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		best:            math.Inf(-1),
		lastSignificant: math.Inf(-1),
	}
}

// Update records a new value and returns true if convergence is detected.
// NaN values count as stale checks.
func (c *ConvergenceTracker) Update(value float64) bool {
	if !c.config.Enabled {
		return false
	}

	if value > c.best {
		c.best = value
	}

	if math.IsInf(c.lastSignificant, -1) && !math.IsNaN(value) {
		c.lastSignificant = value
		return false
	}

	improvement := (value - c.lastSignificant) / math.Max(math.Abs(c.lastSignificant), 1)

	if improvement >= c.config.Threshold {
		c.lastSignificant = value
		c.staleCount = 0
		slog.Debug("Improvement detected",
			"value", value,
			"relative_improvement", improvement,
		)
		return false
	}

	c.staleCount++
	slog.Debug("No significant improvement",
		"value", value,
		"last_significant", c.lastSignificant,
		"relative_improvement", improvement,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_value", c.best,
		)
		return true
	}

	return false
}

// Best returns the best value seen so far
func (c *ConvergenceTracker) Best() float64 {
	return c.best
}
