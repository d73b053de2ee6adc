package gravity

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/san-kum/gravsim/internal/geom"
)

// wireFloat is a float64 that travels as JSON null when it is NaN or Inf.
// A null reads back as NaN; an absent field keeps its zero value.
type wireFloat float64

func (f wireFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *wireFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = wireFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = wireFloat(v)
	return nil
}

type wireEntity struct {
	MassKg     wireFloat `json:"mass_kg"`
	PositionM  geom.Vec2 `json:"position_m"`
	VelocityMs geom.Vec2 `json:"velocity_ms"`
}

type wireState struct {
	StepS    wireFloat    `json:"step_s"`
	TimeS    wireFloat    `json:"time_s"`
	Entities []wireEntity `json:"entities"`
}

// MarshalJSON encodes every non-finite number as null, so a snapshot that has
// overflowed or gone NaN still produces a complete document.
func (s State) MarshalJSON() ([]byte, error) {
	w := wireState{
		StepS:    wireFloat(s.StepS),
		TimeS:    wireFloat(s.TimeS),
		Entities: make([]wireEntity, len(s.Entities)),
	}
	for i, e := range s.Entities {
		w.Entities[i] = wireEntity{
			MassKg:     wireFloat(e.MassKg),
			PositionM:  e.PositionM,
			VelocityMs: e.VelocityMs,
		}
	}
	return json.Marshal(w)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	s.StepS = float64(w.StepS)
	s.TimeS = float64(w.TimeS)
	s.Entities = nil
	if w.Entities != nil {
		s.Entities = make([]Entity, len(w.Entities))
		for i, e := range w.Entities {
			s.Entities[i] = Entity{
				MassKg:     float64(e.MassKg),
				PositionM:  e.PositionM,
				VelocityMs: e.VelocityMs,
			}
		}
	}
	return nil
}
