// Package viz renders a running simulation in the terminal.
//
// Bodies are drawn on a braille [Canvas] whose viewport grows to keep every
// body in frame. A side panel shows the clock and an energy sparkline.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset to the initial snapshot
//	T     - Toggle trails
//	+/-   - More or fewer steps per frame
//	Q     - Quit
package viz
