package sweep

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAxis is returned for selector strings outside V1 I1 V2 I2 and their negations
var ErrUnknownAxis = errors.New("unknown axis")

// Axis selects the channel plotted on one chart axis, optionally sign-inverted
type Axis struct {
	Channel  Channel
	Inverted bool
}

// Default axes used at startup and after a reset
var (
	DefaultX = Axis{Channel: V1}
	DefaultY = Axis{Channel: I1}
)

// AllAxes lists the eight selectable axes in the order the selectors offer them
func AllAxes() []Axis {
	axes := make([]Axis, 0, 2*len(Channels))
	for _, c := range Channels {
		axes = append(axes, Axis{Channel: c})
	}
	for _, c := range Channels {
		axes = append(axes, Axis{Channel: c, Inverted: true})
	}
	return axes
}

// ParseAxis parses a selector such as "I1" or "-V2"
func ParseAxis(s string) (Axis, error) {
	s = strings.TrimSpace(s)
	inverted := strings.HasPrefix(s, "-")
	if inverted {
		s = s[1:]
	}
	c, err := ParseChannel(s)
	if err != nil {
		return Axis{}, err
	}
	return Axis{Channel: c, Inverted: inverted}, nil
}

// MustParseAxis is ParseAxis for constant selectors
func MustParseAxis(s string) Axis {
	a, err := ParseAxis(s)
	if err != nil {
		panic(fmt.Sprintf("sweep: %v", err))
	}
	return a
}

func (a Axis) String() string {
	if a.Inverted {
		return "-" + a.Channel.String()
	}
	return a.Channel.String()
}

// Next returns the selector following a in AllAxes order, wrapping around
func (a Axis) Next() Axis {
	axes := AllAxes()
	for i, candidate := range axes {
		if candidate == a {
			return axes[(i+1)%len(axes)]
		}
	}
	return axes[0]
}

// Project reads the axis channel from a sample, negated for inverted axes
func (a Axis) Project(s Sample) float64 {
	v := s.Value(a.Channel)
	if a.Inverted {
		return -v
	}
	return v
}

// Point is a sample projected onto the chart plane
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project maps a sample onto the plane spanned by the x and y axes
func Project(s Sample, x, y Axis) Point {
	return Point{X: x.Project(s), Y: y.Project(s)}
}

// ProjectAll maps samples in order
func ProjectAll(samples []Sample, x, y Axis) []Point {
	points := make([]Point, len(samples))
	for i, s := range samples {
		points[i] = Project(s, x, y)
	}
	return points
}

// DisplayValues returns the four readouts for a sample. A channel selected inverted on
// either axis is shown negated so the readouts match what is plotted.
func DisplayValues(s Sample, x, y Axis) [4]float64 {
	values := s.Values()
	for _, c := range Channels {
		if (x.Inverted && x.Channel == c) || (y.Inverted && y.Channel == c) {
			values[c] = -values[c]
		}
	}
	return values
}
