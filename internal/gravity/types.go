package gravity

import "github.com/san-kum/gravsim/internal/geom"

// Entity is a point mass.
type Entity struct {
	MassKg     float64   `json:"mass_kg" yaml:"mass_kg"`
	PositionM  geom.Vec2 `json:"position_m" yaml:"position_m"`
	VelocityMs geom.Vec2 `json:"velocity_ms" yaml:"velocity_ms"`
}

// State is a full simulation snapshot: the clock, the fixed step and every
// body in a stable order.
type State struct {
	StepS    float64  `json:"step_s" yaml:"step_s"`
	TimeS    float64  `json:"time_s" yaml:"time_s"`
	Entities []Entity `json:"entities" yaml:"entities"`
}

func (s State) Clone() State {
	c := s
	c.Entities = make([]Entity, len(s.Entities))
	copy(c.Entities, s.Entities)
	return c
}

// IsValid reports whether every position and velocity component is finite.
func (s State) IsValid() bool {
	for _, e := range s.Entities {
		if !e.PositionM.IsFinite() || !e.VelocityMs.IsFinite() {
			return false
		}
	}
	return true
}

// Flatten lays the bodies out as x, y, vx, vy per entity.
func (s State) Flatten() []float64 {
	out := make([]float64, 0, len(s.Entities)*4)
	for _, e := range s.Entities {
		out = append(out, e.PositionM.X, e.PositionM.Y, e.VelocityMs.X, e.VelocityMs.Y)
	}
	return out
}
