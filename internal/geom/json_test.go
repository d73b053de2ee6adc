package geom

import (
	"encoding/json"
	"math"
	"testing"
)

func TestVec2_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Vec2{X: 1.5, Y: -2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"x":1.5,"y":-2}` {
		t.Errorf("got %s", data)
	}
}

func TestVec2_JSONNonFiniteAsNull(t *testing.T) {
	data, err := json.Marshal(Vec2{X: math.NaN(), Y: math.Inf(1)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"x":null,"y":null}` {
		t.Errorf("got %s", data)
	}

	var v Vec2
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsNaN(v.X) || !math.IsNaN(v.Y) {
		t.Errorf("expected NaN components, got %v", v)
	}
}

func TestVec2_JSONRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"string component", `{"x":"a","y":1}`},
		{"missing y", `{"x":1}`},
		{"array", `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Vec2
			if err := json.Unmarshal([]byte(tt.input), &v); err == nil {
				t.Errorf("expected error for %s", tt.input)
			}
		})
	}
}
