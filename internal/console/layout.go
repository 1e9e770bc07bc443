package console

import (
	"fmt"
	"math"
	"strings"

	"sweeptrace/internal/render"
	"sweeptrace/internal/sweep"
)

const (
	historyMark = '.'
	currentMark = '@'
)

// Plot rasterises the frame's points into a width x height grid. Row 0 is the top.
// The current point is drawn last so it is never hidden by history.
func Plot(f render.Frame, width, height int) [][]rune {
	if width <= 0 || height <= 0 {
		return nil
	}
	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	if f.Empty() {
		return grid
	}

	b := f.Bounds
	if b.Auto {
		all := append(append([]sweep.Point{}, f.History...), f.Current...)
		b = sweep.ComputeBounds(all)
	}
	b.X, b.Y = drawable(b.X), drawable(b.Y)

	put := func(p sweep.Point, mark rune) {
		col, ok := scale(p.X, b.X, width)
		if !ok {
			return
		}
		row, ok := scale(p.Y, b.Y, height)
		if !ok {
			return
		}
		grid[height-1-row][col] = mark
	}
	for _, p := range f.History {
		put(p, historyMark)
	}
	for _, p := range f.Current {
		put(p, currentMark)
	}
	return grid
}

// drawable orders r and widens it when it has no span. Padding far below the
// float spacing of large values can leave bounds equal or inverted.
func drawable(r sweep.Range) sweep.Range {
	lo, hi := math.Min(r.Min, r.Max), math.Max(r.Min, r.Max)
	if lo == hi {
		d := math.Abs(lo) * 0.1
		if d == 0 {
			d = 1
		}
		lo, hi = lo-d, hi+d
	}
	return sweep.Range{Min: lo, Max: hi}
}

// scale maps v inside r onto a cell index in [0, cells)
func scale(v float64, r sweep.Range, cells int) (int, bool) {
	span := r.Max - r.Min
	if span <= 0 || math.IsNaN(v) || v < r.Min || v > r.Max {
		return 0, false
	}
	i := int((v-r.Min)/span*float64(cells-1) + 0.5)
	if i < 0 || i >= cells {
		return 0, false
	}
	return i, true
}

// Readouts formats the four latest readings, or dashes before the first sample
func Readouts(f render.Frame) string {
	parts := make([]string, len(sweep.Channels))
	for i, c := range sweep.Channels {
		if f.Readings == nil {
			parts[i] = fmt.Sprintf("%s: --", c)
			continue
		}
		parts[i] = fmt.Sprintf("%s: %s", c, formatReading(f.Readings[i]))
	}
	return strings.Join(parts, "  ")
}

func formatReading(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

// StatusLine summarises the connection and port selection
func StatusLine(f render.Frame) string {
	var b strings.Builder
	switch {
	case f.Status.Connected:
		fmt.Fprintf(&b, "Connected to %s", f.Status.Port)
	case f.Status.Error != "":
		fmt.Fprintf(&b, "Disconnected (%s)", f.Status.Error)
	default:
		b.WriteString("Disconnected")
	}
	port := f.Selected
	if port == "" {
		port = "none"
	}
	fmt.Fprintf(&b, " | port: %s | %d ports", port, len(f.Ports))
	fmt.Fprintf(&b, " | %d points", len(f.History)+len(f.Current))
	return b.String()
}

// BoundsLabels returns the min and max labels for both axes
func BoundsLabels(f render.Frame) (xMin, xMax, yMin, yMax string) {
	if f.Bounds.Auto {
		return "auto", "auto", "auto", "auto"
	}
	return formatReading(f.Bounds.X.Min), formatReading(f.Bounds.X.Max),
		formatReading(f.Bounds.Y.Min), formatReading(f.Bounds.Y.Max)
}

// NextPort cycles through the listed ports starting after the selected one
func NextPort(ports []string, selected string) (string, bool) {
	if len(ports) == 0 {
		return "", false
	}
	for i, p := range ports {
		if p == selected {
			return ports[(i+1)%len(ports)], true
		}
	}
	return ports[0], true
}

// Help lists the key bindings
const Help = "x/y: axis  o: connect  d: disconnect  p: port  l: list  c: clear  e: export  r: reset  q: quit"

// KeyControl maps a key press to a session control. quit is set for q and Esc.
func KeyControl(ch rune, esc bool, f render.Frame) (action, value string, quit bool) {
	if esc {
		return "", "", true
	}
	switch ch {
	case 'q', 'Q':
		return "", "", true
	case 'x':
		return "x", "", false
	case 'y':
		return "y", "", false
	case 'o':
		return "connect", "", false
	case 'd':
		return "disconnect", "", false
	case 'p':
		if port, ok := NextPort(f.Ports, f.Selected); ok {
			return "port", port, false
		}
		return "ports", "", false
	case 'l':
		return "ports", "", false
	case 'c':
		return "clear", "", false
	case 'e':
		return "export", "", false
	case 'r':
		return "reset", "", false
	}
	return "", "", false
}
