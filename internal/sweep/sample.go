// Package sweep holds the live measurement model: four-channel samples, signed axis
// selectors, the bounded sweep buffer and the chart scale calculation.
package sweep

import (
	"fmt"
	"strings"
)

// Channel identifies one of the four instrument readings
type Channel int

const (
	V1 Channel = iota // Source 1 voltage
	I1                // Source 1 current
	V2                // Source 2 voltage
	I2                // Source 2 current
)

// Channels lists every channel in wire order
var Channels = [...]Channel{V1, I1, V2, I2}

var channelNames = [...]string{"V1", "I1", "V2", "I2"}

func (c Channel) String() string {
	if c < V1 || c > I2 {
		return fmt.Sprintf("Channel(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel converts a channel name (case-insensitive) to a Channel
func ParseChannel(name string) (Channel, error) {
	for i, n := range channelNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAxis, name)
}

// Sample is one instrument reading
type Sample struct {
	V1 float64 `json:"v1"`
	I1 float64 `json:"i1"`
	V2 float64 `json:"v2"`
	I2 float64 `json:"i2"`
}

// Value returns the raw, unsigned reading of a channel
func (s Sample) Value(c Channel) float64 {
	switch c {
	case V1:
		return s.V1
	case I1:
		return s.I1
	case V2:
		return s.V2
	case I2:
		return s.I2
	default:
		panic(fmt.Sprintf("sweep: invalid channel %d", int(c)))
	}
}

// Values returns the readings in wire order
func (s Sample) Values() [4]float64 {
	return [4]float64{s.V1, s.I1, s.V2, s.I2}
}

// SampleFromValues builds a sample from readings in wire order
func SampleFromValues(v [4]float64) Sample {
	return Sample{V1: v[0], I1: v[1], V2: v[2], I2: v[3]}
}
