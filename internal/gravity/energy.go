package gravity

import (
	"math"

	"github.com/san-kum/gravsim/internal/geom"
)

// Energy returns kinetic plus gravitational potential energy in joules.
func Energy(s State) float64 {
	ke := 0.0
	pe := 0.0

	for i, e := range s.Entities {
		v := e.VelocityMs.Magnitude()
		ke += 0.5 * e.MassKg * v * v

		for j := i + 1; j < len(s.Entities); j++ {
			other := s.Entities[j]
			r := other.PositionM.Sub(e.PositionM).Magnitude()
			pe -= G * e.MassKg * other.MassKg / r
		}
	}

	return ke + pe
}

// Momentum returns total linear momentum in kg·m/s.
func Momentum(s State) geom.Vec2 {
	var p geom.Vec2
	for _, e := range s.Entities {
		p = p.Add(e.VelocityMs.Scale(e.MassKg))
	}
	return p
}

// AngularMomentum returns the z component of total angular momentum about the
// origin.
func AngularMomentum(s State) float64 {
	L := 0.0
	for _, e := range s.Entities {
		L += e.MassKg * (e.PositionM.X*e.VelocityMs.Y - e.PositionM.Y*e.VelocityMs.X)
	}
	return L
}

// CenterOfMass returns the mass-weighted mean position. An empty or massless
// state returns the origin.
func CenterOfMass(s State) geom.Vec2 {
	total := 0.0
	var weighted geom.Vec2
	for _, e := range s.Entities {
		total += e.MassKg
		weighted = weighted.Add(e.PositionM.Scale(e.MassKg))
	}
	if total == 0 || math.IsNaN(total) {
		return geom.Vec2{}
	}
	return weighted.Div(total)
}
