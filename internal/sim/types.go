package sim

import (
	"fmt"

	"github.com/san-kum/gravsim/internal/gravity"
)

// Stepper advances a snapshot by one step.
type Stepper func(gravity.State) gravity.State

type Metric interface {
	Name() string
	Observe(s gravity.State)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s gravity.State)
}

type Config struct {
	Steps int
	// StopOnInvalid ends the run at the first snapshot with NaN or Inf.
	StopOnInvalid bool
}

func DefaultConfig() Config {
	return Config{
		Steps:         1000,
		StopOnInvalid: true,
	}
}

type Result struct {
	States     []gravity.State
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

// Final returns the last recorded snapshot.
func (r *Result) Final() gravity.State {
	if len(r.States) == 0 {
		return gravity.State{}
	}
	return r.States[len(r.States)-1]
}

type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
