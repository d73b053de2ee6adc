package geom

import "math"

// Vec2 is an immutable 2-D vector. Every method returns a new value.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func New(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Scale(k float64) Vec2 {
	return Vec2{X: v.X * k, Y: v.Y * k}
}

// Div divides componentwise. A zero divisor yields Inf/NaN components.
func (v Vec2) Div(k float64) Vec2 {
	return Vec2{X: v.X / k, Y: v.Y / k}
}

func (v Vec2) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Unit returns v scaled to length one. The zero vector has no direction and
// produces NaN components.
func (v Vec2) Unit() Vec2 {
	return v.Div(v.Magnitude())
}

func (v Vec2) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Sum adds vectors left to right. The empty sum is the zero vector.
func Sum(vs ...Vec2) Vec2 {
	var total Vec2
	for _, v := range vs {
		total = total.Add(v)
	}
	return total
}
