package sweep

import "math"

const (
	padFraction = 0.1 // share of the data span added on each side
	minPad      = 0.1 // floor for the padding
)

// Range is the displayed extent of one axis
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Bounds are the chart limits. Auto means there is no data and the renderer should frame
// the chart itself.
type Bounds struct {
	Auto bool  `json:"auto"`
	X    Range `json:"x"`
	Y    Range `json:"y"`
}

// ComputeBounds derives padded axis ranges from the full point set
func ComputeBounds(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{Auto: true}
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return Bounds{X: paddedRange(xs), Y: paddedRange(ys)}
}

func paddedRange(values []float64) Range {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	span := math.Abs(hi - lo)
	if math.IsInf(span, 0) {
		span = math.MaxFloat64
	}
	pad := math.Max(minPad, span*padFraction)
	lo = math.Max(lo-pad, -math.MaxFloat64)
	hi = math.Min(hi+pad, math.MaxFloat64)

	// Only reachable once the padding vanishes below the float64 spacing of huge values.
	if lo == hi {
		lo = math.Max(0, lo-1)
		hi = hi + 1
	}
	return Range{Min: lo, Max: hi}
}
