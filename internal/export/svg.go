// Package export renders stored runs to SVG.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/viz"
)

var ErrNoStates = errors.New("export: no states")

var palette = []string{"#00ffff", "#ff00ff", "#ffff00", "#00ff88", "#ff8800", "#8888ff"}

// TrajectoriesSVG draws every body's path through states as a polyline on a
// size x size square, with a dot at its last position. All bodies share one
// scale. Non-finite positions break the path.
func TrajectoriesSVG(w io.Writer, states []gravity.State, size int) error {
	if len(states) == 0 {
		return ErrNoStates
	}

	view := viz.FitViewport(states[0])
	for _, s := range states[1:] {
		view = view.Grow(s)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, size, size, size, size)

	bodies := len(states[0].Entities)
	for body := 0; body < bodies; body++ {
		color := palette[body%len(palette)]

		var d strings.Builder
		pen := false
		last := [2]int{-1, -1}
		for _, s := range states {
			if body >= len(s.Entities) {
				break
			}
			x, y, ok := view.Project(s.Entities[body].PositionM, size, size)
			if !ok {
				pen = false
				continue
			}
			if pen {
				fmt.Fprintf(&d, " L%d,%d", x, y)
			} else {
				fmt.Fprintf(&d, " M%d,%d", x, y)
				pen = true
			}
			last = [2]int{x, y}
		}

		if d.Len() > 0 {
			fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="%s"/>
`, color, strings.TrimSpace(d.String()))
		}
		if last[0] >= 0 {
			fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="3" fill="%s"/>
`, last[0], last[1], color)
		}
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
