// Package app holds the single served simulation snapshot.
package app

import (
	"sync"

	"github.com/san-kum/gravsim/internal/gravity"
)

// DefaultStepS is the step size of a freshly created simulation.
const DefaultStepS = 10.0

// Listener is told about every snapshot the simulation installs. It runs
// inside the critical section and must not block.
type Listener func(gravity.State)

// Simulation owns the only mutable copy of the snapshot. Setup and Step each
// run as one read-modify-write under a single lock.
type Simulation struct {
	mu        sync.Mutex
	state     gravity.State
	listeners []Listener
}

func New() *Simulation {
	return NewWithState(gravity.State{
		StepS:    DefaultStepS,
		TimeS:    0,
		Entities: []gravity.Entity{},
	})
}

func NewWithState(s gravity.State) *Simulation {
	return &Simulation{state: s.Clone()}
}

func (s *Simulation) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Setup replaces the held snapshot wholesale and returns it. The input is not
// validated.
func (s *Simulation) Setup(next gravity.State) gravity.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.install(next.Clone())
}

// Step advances the held snapshot by one step, installs and returns it.
func (s *Simulation) Step() gravity.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.install(gravity.Step(s.state))
}

func (s *Simulation) Snapshot() gravity.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// WithSnapshot calls fn with the current snapshot while holding the lock, so
// no step can install between fn seeing the snapshot and returning. A
// listener registered before the call sees every later snapshot; fn runs
// under the same lock as listeners and must not block or call back into s.
func (s *Simulation) WithSnapshot(fn func(gravity.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state.Clone())
}

func (s *Simulation) install(next gravity.State) gravity.State {
	s.state = next
	for _, l := range s.listeners {
		l(next.Clone())
	}
	return next.Clone()
}
