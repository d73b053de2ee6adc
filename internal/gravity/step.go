// Package gravity advances a set of point masses under pairwise Newtonian
// gravity. Everything here is a pure function of its input snapshot.
package gravity

import "github.com/san-kum/gravsim/internal/geom"

// G is the gravitational constant in m³ kg⁻¹ s⁻².
const G = 6.67430e-11

// Forces returns the net force on every entity, in input order.
//
// Self interaction is excluded by index, so two distinct bodies with identical
// fields still attract each other. There is no softening: coincident bodies
// yield NaN components.
func Forces(s State) []geom.Vec2 {
	forces := make([]geom.Vec2, len(s.Entities))
	for i, e := range s.Entities {
		contributions := make([]geom.Vec2, 0, len(s.Entities)-1)
		for j, other := range s.Entities {
			if i == j {
				continue
			}
			contributions = append(contributions, pairForce(e, other))
		}
		forces[i] = geom.Sum(contributions...)
	}
	return forces
}

// pairForce is the force exerted on e by other.
func pairForce(e, other Entity) geom.Vec2 {
	r := other.PositionM.Sub(e.PositionM)
	d := r.Magnitude()
	magnitude := G * e.MassKg * other.MassKg / (d * d)
	return r.Unit().Scale(magnitude)
}

// Step advances s by one step of semi-implicit Euler: velocity is updated
// from the net force first and the new velocity moves the position.
func Step(s State) State {
	forces := Forces(s)

	next := State{
		StepS:    s.StepS,
		TimeS:    s.TimeS + s.StepS,
		Entities: make([]Entity, len(s.Entities)),
	}
	for i, e := range s.Entities {
		velocity := e.VelocityMs.Add(forces[i].Div(e.MassKg).Scale(s.StepS))
		position := e.PositionM.Add(velocity.Scale(s.StepS))
		next.Entities[i] = Entity{
			MassKg:     e.MassKg,
			PositionM:  position,
			VelocityMs: velocity,
		}
	}
	return next
}
