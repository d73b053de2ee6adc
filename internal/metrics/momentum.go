package metrics

import (
	"math"

	"github.com/san-kum/gravsim/internal/geom"
	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/sim"
)

// MomentumDrift is the largest change in total linear momentum seen since the
// first observation, in kg·m/s.
type MomentumDrift struct {
	name     string
	initial  geom.Vec2
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift"}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(s gravity.State) {
	p := gravity.Momentum(s)
	if !p.IsFinite() {
		return
	}
	if m.samples == 0 {
		m.initial = p
	}
	m.samples++
	m.maxDrift = math.Max(m.maxDrift, p.Sub(m.initial).Magnitude())
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = geom.Vec2{}
	m.maxDrift = 0
	m.samples = 0
}

// AngularMomentumDrift is the largest change in total angular momentum about
// the origin seen since the first observation, in kg·m²/s.
type AngularMomentumDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewAngularMomentumDrift() *AngularMomentumDrift {
	return &AngularMomentumDrift{name: "angular_momentum_drift"}
}

func (m *AngularMomentumDrift) Name() string { return m.name }

func (m *AngularMomentumDrift) Observe(s gravity.State) {
	l := gravity.AngularMomentum(s)
	if math.IsNaN(l) || math.IsInf(l, 0) {
		return
	}
	if m.samples == 0 {
		m.initial = l
	}
	m.samples++
	m.maxDrift = math.Max(m.maxDrift, math.Abs(l-m.initial))
}

func (m *AngularMomentumDrift) Value() float64 { return m.maxDrift }

func (m *AngularMomentumDrift) Reset() {
	m.initial = 0
	m.maxDrift = 0
	m.samples = 0
}

// Default returns the metrics recorded for every stored run.
func Default() []sim.Metric {
	return []sim.Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewMomentumDrift(),
		NewAngularMomentumDrift(),
		NewStability(),
	}
}
