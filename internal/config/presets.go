package config

import (
	"sort"

	"github.com/san-kum/gravsim/internal/geom"
	"github.com/san-kum/gravsim/internal/gravity"
)

const (
	earthMassKg   = 5.972e24
	moonMassKg    = 7.348e22
	earthMoonM    = 3.844e8
	moonOrbitalMs = 1022.0
	solarMassKg   = 1.989e30
)

var Presets = map[string]*Scenario{
	"empty": {
		Name:        "empty",
		Description: "no bodies, ten second step",
		State:       gravity.State{StepS: 10},
	},
	"single": {
		Name:        "single",
		Description: "one kilogram at rest at the origin",
		State: gravity.State{StepS: 10, Entities: []gravity.Entity{
			{MassKg: 1.0},
		}},
	},
	"earth_probe": {
		Name:        "earth_probe",
		Description: "100 kg probe released at rest 10,000 km from Earth's centre",
		State: gravity.State{StepS: 1, Entities: []gravity.Entity{
			{MassKg: earthMassKg},
			{MassKg: 100, PositionM: geom.Vec2{X: 1.0e7}},
		}},
	},
	"earth_moon": {
		Name:        "earth_moon",
		Description: "Earth and Moon on a near-circular orbit",
		State: gravity.State{StepS: 60, Entities: []gravity.Entity{
			{MassKg: earthMassKg, VelocityMs: geom.Vec2{Y: -moonOrbitalMs * moonMassKg / earthMassKg}},
			{MassKg: moonMassKg, PositionM: geom.Vec2{X: earthMoonM}, VelocityMs: geom.Vec2{Y: moonOrbitalMs}},
		}},
	},
	"binary": {
		Name:        "binary",
		Description: "two solar masses circling their barycentre",
		State: gravity.State{StepS: 3600, Entities: []gravity.Entity{
			{MassKg: solarMassKg, PositionM: geom.Vec2{X: -1.5e11}, VelocityMs: geom.Vec2{Y: -14874}},
			{MassKg: solarMassKg, PositionM: geom.Vec2{X: 1.5e11}, VelocityMs: geom.Vec2{Y: 14874}},
		}},
	},
	"triple": {
		Name:        "triple",
		Description: "three equal masses released at rest on a triangle",
		State: gravity.State{StepS: 10, Entities: []gravity.Entity{
			{MassKg: 1e24, PositionM: geom.Vec2{X: 0, Y: 1e7}},
			{MassKg: 1e24, PositionM: geom.Vec2{X: -8.66e6, Y: -5e6}},
			{MassKg: 1e24, PositionM: geom.Vec2{X: 8.66e6, Y: -5e6}},
		}},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Scenario {
	sc, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *sc
	c.State = sc.State.Clone()
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
