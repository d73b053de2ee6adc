// Package sim drives a stepper for a fixed number of steps, feeding metrics
// and observers along the way.
package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/gravsim/internal/gravity"
)

type Simulator struct {
	step      Stepper
	metrics   []Metric
	observers []Observer
}

// New returns a simulator around step; nil means gravity.Step.
func New(step Stepper) *Simulator {
	if step == nil {
		step = gravity.Step
	}
	return &Simulator{
		step:      step,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run applies the stepper cfg.Steps times starting from x0. The result holds
// x0 followed by every produced snapshot. Cancelling ctx returns the partial
// result with ctx.Err().
func (s *Simulator) Run(ctx context.Context, x0 gravity.State, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	result := &Result{
		States:  make([]gravity.State, 0, cfg.Steps+1),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	result.States = append(result.States, x)
	s.observe(x)

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			s.collect(result)
			return result, ctx.Err()
		default:
		}

		x = s.step(x)
		result.StepsTaken++
		result.States = append(result.States, x)
		s.observe(x)

		if cfg.StopOnInvalid && !x.IsValid() {
			result.Errors = append(result.Errors, &StepError{Step: i, Time: x.TimeS, Wrapped: gravity.ErrInvalidState})
			break
		}
	}

	s.collect(result)
	return result, nil
}

func (s *Simulator) observe(x gravity.State) {
	for _, m := range s.metrics {
		m.Observe(x)
	}
	for _, o := range s.observers {
		o.OnStep(x)
	}
}

func (s *Simulator) collect(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func validateConfig(cfg Config) error {
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	return nil
}
