package viz

import (
	"math"

	"github.com/san-kum/gravsim/internal/geom"
	"github.com/san-kum/gravsim/internal/gravity"
)

// margin is the fraction of the span left empty around the bodies.
const margin = 0.1

// Viewport maps world metres onto canvas dots with one scale for both axes.
type Viewport struct {
	Min, Max geom.Vec2
}

// FitViewport returns the smallest square viewport holding every finite body
// position of s, padded by margin.
func FitViewport(s gravity.State) Viewport {
	var v Viewport
	first := true
	for _, e := range s.Entities {
		p := e.PositionM
		if !p.IsFinite() {
			continue
		}
		if first {
			v.Min, v.Max = p, p
			first = false
			continue
		}
		v.Min = geom.New(math.Min(v.Min.X, p.X), math.Min(v.Min.Y, p.Y))
		v.Max = geom.New(math.Max(v.Max.X, p.X), math.Max(v.Max.Y, p.Y))
	}
	return v.square()
}

// Grow widens v until it holds every finite body position of s. It never
// shrinks, so the picture does not jitter as bodies move.
func (v Viewport) Grow(s gravity.State) Viewport {
	grown := false
	for _, e := range s.Entities {
		p := e.PositionM
		if !p.IsFinite() {
			continue
		}
		if p.X < v.Min.X || p.Y < v.Min.Y || p.X > v.Max.X || p.Y > v.Max.Y {
			v.Min = geom.New(math.Min(v.Min.X, p.X), math.Min(v.Min.Y, p.Y))
			v.Max = geom.New(math.Max(v.Max.X, p.X), math.Max(v.Max.Y, p.Y))
			grown = true
		}
	}
	if !grown {
		return v
	}
	return v.square()
}

func (v Viewport) square() Viewport {
	centre := v.Min.Add(v.Max).Scale(0.5)
	span := math.Max(v.Max.X-v.Min.X, v.Max.Y-v.Min.Y)
	if span == 0 {
		span = math.Max(2*centre.Magnitude(), 1)
	}
	half := span * (1 + 2*margin) / 2
	return Viewport{
		Min: centre.Sub(geom.New(half, half)),
		Max: centre.Add(geom.New(half, half)),
	}
}

// Project maps p onto a cw x ch dot grid. World y grows upwards, dot y grows
// downwards. ok is false for non-finite positions.
func (v Viewport) Project(p geom.Vec2, cw, ch int) (x, y int, ok bool) {
	if !p.IsFinite() {
		return 0, 0, false
	}
	span := math.Max(v.Max.X-v.Min.X, v.Max.Y-v.Min.Y)
	if span <= 0 {
		return cw / 2, ch / 2, true
	}
	scale := float64(min(cw, ch)-1) / span
	offX := float64(cw-min(cw, ch)) / 2
	offY := float64(ch-min(cw, ch)) / 2

	x = int(math.Round(offX + (p.X-v.Min.X)*scale))
	y = int(math.Round(offY + (v.Max.Y-p.Y)*scale))
	return x, y, true
}
