package gravity

import (
	"errors"
	"fmt"
)

// Conditions the stepper itself never rejects. Callers that want to warn
// about them use Validate.
var (
	// ErrInvalidState indicates a snapshot containing NaN or Inf components.
	ErrInvalidState = errors.New("gravity: invalid state (NaN or Inf detected)")

	// ErrNonPositiveMass indicates an entity whose mass is zero or negative.
	ErrNonPositiveMass = errors.New("gravity: entity mass must be positive")

	// ErrCoincident indicates two entities sharing the exact same position.
	ErrCoincident = errors.New("gravity: entities share a position")

	// ErrNonPositiveStep indicates a step size that does not advance the clock.
	ErrNonPositiveStep = errors.New("gravity: step_s must be positive")
)

// EntityError ties a validation failure to the entity that caused it.
type EntityError struct {
	Index   int
	Wrapped error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("entity %d: %v", e.Index, e.Wrapped)
}

func (e *EntityError) Unwrap() error {
	return e.Wrapped
}

// Validate reports every condition in s that will make the next Step produce
// non-finite or non-physical values. It never modifies s.
func Validate(s State) []error {
	var errs []error
	if s.StepS <= 0 {
		errs = append(errs, ErrNonPositiveStep)
	}
	if !s.IsValid() {
		errs = append(errs, ErrInvalidState)
	}
	for i, e := range s.Entities {
		if e.MassKg <= 0 {
			errs = append(errs, &EntityError{Index: i, Wrapped: ErrNonPositiveMass})
		}
		for j := i + 1; j < len(s.Entities); j++ {
			if s.Entities[j].PositionM == e.PositionM {
				errs = append(errs, &EntityError{Index: j, Wrapped: ErrCoincident})
			}
		}
	}
	return errs
}
