// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Check is one named readiness condition.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

type Status struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentStatus `json:"checks"`
}

type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
}

func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

// AddCheck registers c, replacing any check with the same name.
func (hc *Checker) AddCheck(c Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[c.Name()] = c
}

func (hc *Checker) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs every check. The overall status is healthy only when all
// of them pass.
func (hc *Checker) CheckHealth(ctx context.Context) Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := Status{Status: "healthy", Checks: make(map[string]ComponentStatus)}
	for name, c := range hc.checks {
		if err := c.Check(ctx); err != nil {
			status.Status = "unhealthy"
			status.Checks[name] = ComponentStatus{Status: "unhealthy", Message: err.Error()}
			continue
		}
		status.Checks[name] = ComponentStatus{Status: "healthy"}
	}
	return status
}

func (hc *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// ReadinessHandler responds 503 when any check fails.
func (hc *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := hc.CheckHealth(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// FuncCheck adapts a plain function to Check.
type FuncCheck struct {
	name string
	fn   func(ctx context.Context) error
}

func NewFuncCheck(name string, fn func(ctx context.Context) error) *FuncCheck {
	return &FuncCheck{name: name, fn: fn}
}

func (f *FuncCheck) Name() string                    { return f.name }
func (f *FuncCheck) Check(ctx context.Context) error { return f.fn(ctx) }

// ErrNonFinite is reported by a snapshot check once the served state holds
// NaN or Inf values.
var ErrNonFinite = errors.New("health: snapshot contains non-finite values")

// NewSnapshotCheck reports unhealthy when valid returns false.
func NewSnapshotCheck(valid func() bool) *FuncCheck {
	return NewFuncCheck("snapshot", func(ctx context.Context) error {
		if !valid() {
			return ErrNonFinite
		}
		return nil
	})
}
