package spsa

import (
	"errors"
	"fmt"
)

var (
	// ErrStuckOutOfBounds is reported when a step was rolled back and the
	// previous point evaluates to a non-finite value as well. The run cannot
	// continue from there.
	ErrStuckOutOfBounds = errors.New("spsa: stuck out of bounds")

	// ErrEmptyPoint is returned for zero-length inputs.
	ErrEmptyPoint = errors.New("spsa: empty point")

	// ErrNonFinitePoint is returned when the starting point has a NaN or
	// infinite coordinate.
	ErrNonFinitePoint = errors.New("spsa: point has non-finite coordinates")

	// ErrInvalidOptions matches every *OptionError via errors.Is.
	ErrInvalidOptions = &OptionError{}
)

// FatalError reports an unrecoverable failure in the main loop. The point
// passed to the optimizer is left at the last feasible position.
type FatalError struct {
	Iteration int
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("spsa: fatal at iteration %d: %v", e.Iteration, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// OptionError describes an invalid Options field.
type OptionError struct {
	Field  string
	Reason string
}

func (e *OptionError) Error() string {
	if e.Field == "" {
		return "spsa: invalid options"
	}
	return "spsa: invalid option " + e.Field + ": " + e.Reason
}

func (e *OptionError) Is(target error) bool {
	_, ok := target.(*OptionError)
	return ok
}
