package gravity

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/gravsim/internal/geom"
)

func body(mass, x, y float64) Entity {
	return Entity{MassKg: mass, PositionM: geom.Vec2{X: x, Y: y}}
}

func TestStep_SingleBody(t *testing.T) {
	s := State{
		StepS:    10.0,
		Entities: []Entity{body(1.0, 0, 0)},
	}

	next := Step(s)

	if next.TimeS != 10.0 {
		t.Errorf("time_s = %v, want 10", next.TimeS)
	}
	if next.StepS != 10.0 {
		t.Errorf("step_s = %v, want 10", next.StepS)
	}
	got := next.Entities[0]
	if got.PositionM != (geom.Vec2{}) || got.VelocityMs != (geom.Vec2{}) {
		t.Errorf("single body moved: %+v", got)
	}
}

func TestStep_SingleBodyKeepsDrift(t *testing.T) {
	s := State{
		StepS: 2.0,
		TimeS: 4.0,
		Entities: []Entity{{
			MassKg:     3.0,
			PositionM:  geom.Vec2{X: 1, Y: 1},
			VelocityMs: geom.Vec2{X: 0.5, Y: -1},
		}},
	}

	forces := Forces(s)
	if forces[0] != (geom.Vec2{}) {
		t.Errorf("net force on lone body = %v, want zero", forces[0])
	}

	next := Step(s)
	got := next.Entities[0]
	if got.VelocityMs != s.Entities[0].VelocityMs {
		t.Errorf("velocity changed: %v", got.VelocityMs)
	}
	if got.PositionM != (geom.Vec2{X: 2, Y: -1}) {
		t.Errorf("position = %v, want (2, -1)", got.PositionM)
	}
	if next.TimeS != 6.0 {
		t.Errorf("time_s = %v, want 6", next.TimeS)
	}
}

func TestStep_EmptyState(t *testing.T) {
	next := Step(State{StepS: 1.5})
	if len(next.Entities) != 0 {
		t.Errorf("expected no entities, got %d", len(next.Entities))
	}
	if next.TimeS != 1.5 {
		t.Errorf("time_s = %v, want 1.5", next.TimeS)
	}
}

func TestStep_PreservesCountAndOrder(t *testing.T) {
	s := State{
		StepS: 1.0,
		Entities: []Entity{
			body(1e3, 0, 0),
			body(2e3, 100, 0),
			body(3e3, 0, 100),
			body(4e3, -50, -50),
		},
	}

	next := Step(s)

	if len(next.Entities) != len(s.Entities) {
		t.Fatalf("entity count %d, want %d", len(next.Entities), len(s.Entities))
	}
	for i := range s.Entities {
		if next.Entities[i].MassKg != s.Entities[i].MassKg {
			t.Errorf("entity %d: mass %v, want %v", i, next.Entities[i].MassKg, s.Entities[i].MassKg)
		}
	}
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	s := State{
		StepS:    1.0,
		Entities: []Entity{body(1e6, 0, 0), body(1e6, 10, 0)},
	}
	before := s.Clone()

	_ = Step(s)

	for i := range s.Entities {
		if s.Entities[i] != before.Entities[i] {
			t.Errorf("entity %d mutated: %+v", i, s.Entities[i])
		}
	}
	if s.TimeS != before.TimeS {
		t.Error("input clock mutated")
	}
}

func TestForces_Symmetry(t *testing.T) {
	s := State{
		StepS:    1.0,
		Entities: []Entity{body(1, 0, 0), body(1, 10, 0)},
	}

	for step := 0; step < 5; step++ {
		f := Forces(s)
		if f[0].Add(f[1]) != (geom.Vec2{}) {
			t.Errorf("step %d: forces not opposite: %v, %v", step, f[0], f[1])
		}
		if f[0].Magnitude() != f[1].Magnitude() {
			t.Errorf("step %d: magnitudes differ: %v, %v", step, f[0].Magnitude(), f[1].Magnitude())
		}
		if f[0].X <= 0 {
			t.Errorf("step %d: body A not pulled toward B: %v", step, f[0])
		}
		s = Step(s)
	}
}

func TestForces_IdenticalBodiesBothCount(t *testing.T) {
	s := State{
		StepS: 1.0,
		Entities: []Entity{
			body(5, 0, 0),
			body(7, 3, 4),
			body(7, 3, 4),
		},
	}

	f := Forces(s)

	single := G * 5 * 7 / 25
	want := 2 * single
	if math.Abs(f[0].Magnitude()-want)/want > 1e-12 {
		t.Errorf("|F0| = %v, want %v", f[0].Magnitude(), want)
	}
}

func TestStep_TimeMonotonic(t *testing.T) {
	s := State{
		StepS:    0.1,
		TimeS:    3.0,
		Entities: []Entity{body(1e10, 0, 0), body(1, 1000, 0)},
	}

	expected := s.TimeS
	for k := 1; k <= 100; k++ {
		prev := s.TimeS
		s = Step(s)
		expected += 0.1
		if s.TimeS != expected {
			t.Fatalf("after %d steps time_s = %v, want %v", k, s.TimeS, expected)
		}
		if s.TimeS < prev {
			t.Fatalf("time went backwards at step %d", k)
		}
	}
}

func TestStep_CoincidentBodiesProduceNaN(t *testing.T) {
	s := State{
		StepS:    1.0,
		Entities: []Entity{body(1, 5, 5), body(1, 5, 5)},
	}

	next := Step(s)

	for i, e := range next.Entities {
		if !math.IsNaN(e.VelocityMs.X) || !math.IsNaN(e.VelocityMs.Y) {
			t.Errorf("entity %d velocity = %v, want NaN", i, e.VelocityMs)
		}
		if !math.IsNaN(e.PositionM.X) || !math.IsNaN(e.PositionM.Y) {
			t.Errorf("entity %d position = %v, want NaN", i, e.PositionM)
		}
	}
	if next.IsValid() {
		t.Error("NaN state reported valid")
	}
}

func TestStep_EarthProbe(t *testing.T) {
	const (
		earthMass = 5.972e24
		distance  = 1.0e7
	)
	s := State{
		StepS: 1.0,
		Entities: []Entity{
			body(earthMass, 0, 0),
			body(100, distance, 0),
		},
	}

	next := Step(s)
	probe := next.Entities[1]

	wantVx := -(G * earthMass / (distance * distance)) * 1.0
	if math.Abs(probe.VelocityMs.X-wantVx) > 1e-12*math.Abs(wantVx) {
		t.Errorf("probe vx = %.17g, want %.17g", probe.VelocityMs.X, wantVx)
	}
	if probe.VelocityMs.Y != 0 {
		t.Errorf("probe vy = %v, want 0", probe.VelocityMs.Y)
	}
	if want := distance + probe.VelocityMs.X*1.0; probe.PositionM.X != want {
		t.Errorf("probe x = %.17g, want %.17g", probe.PositionM.X, want)
	}
}

func TestStep_UsesNewVelocityForPosition(t *testing.T) {
	s := State{
		StepS:    2.0,
		Entities: []Entity{body(1e12, 0, 0), body(1, 100, 0)},
	}

	next := Step(s)
	e := next.Entities[1]

	want := 100 + e.VelocityMs.X*2.0
	if e.PositionM.X != want {
		t.Errorf("x = %v, want %v (position must use the updated velocity)", e.PositionM.X, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  []error
	}{
		{"clean", State{StepS: 1, Entities: []Entity{body(1, 0, 0), body(1, 1, 0)}}, nil},
		{"zero step", State{StepS: 0}, []error{ErrNonPositiveStep}},
		{"negative mass", State{StepS: 1, Entities: []Entity{body(-1, 0, 0)}}, []error{ErrNonPositiveMass}},
		{"coincident", State{StepS: 1, Entities: []Entity{body(1, 2, 2), body(1, 2, 2)}}, []error{ErrCoincident}},
		{"nan", State{StepS: 1, Entities: []Entity{body(1, math.NaN(), 0)}}, []error{ErrInvalidState}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.state)
			if len(errs) != len(tt.want) {
				t.Fatalf("Validate() = %v, want %v", errs, tt.want)
			}
			for i := range errs {
				if !errors.Is(errs[i], tt.want[i]) {
					t.Errorf("error %d = %v, want %v", i, errs[i], tt.want[i])
				}
			}
		})
	}
}

func TestEntityError(t *testing.T) {
	err := &EntityError{Index: 3, Wrapped: ErrCoincident}
	if err.Error() != "entity 3: gravity: entities share a position" {
		t.Errorf("Error() = %q", err.Error())
	}
}
