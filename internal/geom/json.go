package geom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// wireVec2 uses pointers so non-finite components travel as JSON null.
type wireVec2 struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func finiteOrNil(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// MarshalJSON writes NaN and Inf components as null, since JSON has no
// representation for them.
func (v Vec2) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireVec2{X: finiteOrNil(v.X), Y: finiteOrNil(v.Y)})
}

// UnmarshalJSON requires both components. A null component reads as NaN.
func (v *Vec2) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	x, err := component(raw, "x")
	if err != nil {
		return err
	}
	y, err := component(raw, "y")
	if err != nil {
		return err
	}
	v.X, v.Y = x, y
	return nil
}

func component(raw map[string]json.RawMessage, key string) (float64, error) {
	msg, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("geom: missing %q component", key)
	}
	var f *float64
	if err := json.Unmarshal(msg, &f); err != nil {
		return 0, fmt.Errorf("geom: component %q: %w", key, err)
	}
	if f == nil {
		return math.NaN(), nil
	}
	return *f, nil
}
