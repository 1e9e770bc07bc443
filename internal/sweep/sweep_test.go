package sweep

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAtV1(v float64) Sample {
	return Sample{V1: v, I1: v / 10, V2: -v, I2: 0}
}

func TestParseAxisRoundTrip(t *testing.T) {
	for _, s := range []string{"V1", "I1", "V2", "I2", "-V1", "-I1", "-V2", "-I2"} {
		a, err := ParseAxis(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, a.String())
	}

	a, err := ParseAxis(" -i2 ")
	require.NoError(t, err)
	assert.Equal(t, Axis{Channel: I2, Inverted: true}, a)

	for _, bad := range []string{"", "-", "V3", "--V1", "X"} {
		_, err := ParseAxis(bad)
		assert.ErrorIs(t, err, ErrUnknownAxis, bad)
	}
}

func TestAxisNextCyclesAllSelectors(t *testing.T) {
	seen := map[Axis]bool{}
	a := DefaultX
	for i := 0; i < 8; i++ {
		seen[a] = true
		a = a.Next()
	}
	assert.Len(t, seen, 8)
	assert.Equal(t, DefaultX, a)
}

func TestProjectSign(t *testing.T) {
	s := Sample{V1: 5, I1: 0.25, V2: -3, I2: 1}

	assert.Equal(t, 5.0, MustParseAxis("V1").Project(s))
	assert.Equal(t, -5.0, MustParseAxis("-V1").Project(s))
	assert.Equal(t, 3.0, MustParseAxis("-V2").Project(s))

	p := Project(s, MustParseAxis("-I1"), MustParseAxis("I2"))
	assert.Equal(t, Point{X: -0.25, Y: 1}, p)
}

func TestDisplayValuesNegateInvertedChannels(t *testing.T) {
	s := Sample{V1: 1, I1: 2, V2: 3, I2: 4}

	assert.Equal(t, [4]float64{1, 2, 3, 4}, DisplayValues(s, DefaultX, DefaultY))
	assert.Equal(t, [4]float64{-1, 2, 3, -4}, DisplayValues(s, MustParseAxis("-V1"), MustParseAxis("-I2")))
	// the same channel inverted on both axes is negated once
	assert.Equal(t, [4]float64{1, 2, -3, 4}, DisplayValues(s, MustParseAxis("-V2"), MustParseAxis("-V2")))
}

func TestBufferFirstPushBecomesCurrent(t *testing.T) {
	b := NewBuffer(0)
	assert.Equal(t, DefaultCapacity, b.Capacity())
	assert.True(t, b.Empty())

	trimmed := b.Push(sampleAtV1(3), V1)
	assert.Zero(t, trimmed)

	cur, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, sampleAtV1(3), cur)
	assert.Empty(t, b.History())
	assert.Equal(t, 1, b.Len())
}

func TestBufferCapacityEvictsOldest(t *testing.T) {
	const n = 10
	b := NewBuffer(n)
	for i := 1; i <= n+5; i++ {
		b.Push(sampleAtV1(float64(i)), V1)
	}

	history := b.History()
	require.Len(t, history, n)
	assert.Equal(t, sampleAtV1(5), history[0])
	assert.Equal(t, sampleAtV1(n+4), history[n-1])

	cur, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, sampleAtV1(n+5), cur)
	assert.Equal(t, n+1, b.Len())
}

func TestBufferBackwardSweepTrims(t *testing.T) {
	b := NewBuffer(100)
	for _, v := range []float64{1, 2, 3} {
		b.Push(sampleAtV1(v), V1)
	}

	// x=2 after current x=3: history {1,2} has nothing above 2, then 3 is demoted
	trimmed := b.Push(sampleAtV1(2), V1)
	assert.Zero(t, trimmed)
	assert.Equal(t, []Sample{sampleAtV1(1), sampleAtV1(2), sampleAtV1(3)}, b.History())

	// x=1 after current x=2: 2 and 3 are beyond 1
	trimmed = b.Push(sampleAtV1(1), V1)
	assert.Equal(t, 2, trimmed)
	assert.Equal(t, []Sample{sampleAtV1(1), sampleAtV1(2)}, b.History())
	for _, h := range b.History()[:1] {
		assert.LessOrEqual(t, h.V1, 1.0)
	}

	cur, _ := b.Current()
	assert.Equal(t, 1.0, cur.V1)
}

func TestBufferBackwardSweepRemovesEverythingAboveNewValue(t *testing.T) {
	b := NewBuffer(100)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		b.Push(sampleAtV1(v), V1)
	}
	trimmed := b.Push(sampleAtV1(2.5), V1)

	assert.Equal(t, 2, trimmed) // 3 and 4 leave history
	for _, h := range b.History()[:len(b.History())-1] {
		assert.LessOrEqual(t, h.V1, 2.5)
	}
	// the superseded current (5) is appended after the trim
	last := b.History()[len(b.History())-1]
	assert.Equal(t, 5.0, last.V1)
}

func TestBufferComparesRawBaseChannel(t *testing.T) {
	b := NewBuffer(100)
	// V2 = -V1 in these samples, so V2 decreases while V1 increases
	b.Push(sampleAtV1(1), V1)
	b.Push(sampleAtV1(2), V1)
	b.Push(sampleAtV1(3), V1)

	// comparing on V1 (raw) sees a forward sweep no matter how the axis is signed
	assert.Zero(t, b.Push(sampleAtV1(4), V1))
	assert.Len(t, b.History(), 3)

	// comparing on V2 (raw) sees each step as backward
	c := NewBuffer(100)
	c.Push(sampleAtV1(1), V2)
	c.Push(sampleAtV1(2), V2)
	assert.Equal(t, 1, c.Push(sampleAtV1(3), V2))
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(5)
	b.Push(sampleAtV1(1), V1)
	b.Push(sampleAtV1(2), V1)
	b.Clear()

	assert.True(t, b.Empty())
	_, ok := b.Current()
	assert.False(t, ok)
	assert.Empty(t, b.Samples())
}

func TestBufferSamplesOrder(t *testing.T) {
	b := NewBuffer(5)
	for _, v := range []float64{1, 2, 3} {
		b.Push(sampleAtV1(v), V1)
	}
	assert.Equal(t, []Sample{sampleAtV1(1), sampleAtV1(2), sampleAtV1(3)}, b.Samples())
}

func TestComputeBoundsEmptyIsAuto(t *testing.T) {
	assert.Equal(t, Bounds{Auto: true}, ComputeBounds(nil))
}

func TestComputeBoundsPadding(t *testing.T) {
	b := ComputeBounds([]Point{{X: 0, Y: -10}, {X: 10, Y: 10}, {X: 5, Y: 0}})
	require.False(t, b.Auto)

	assert.InDelta(t, -1.0, b.X.Min, 1e-12)
	assert.InDelta(t, 11.0, b.X.Max, 1e-12)
	assert.InDelta(t, -12.0, b.Y.Min, 1e-12)
	assert.InDelta(t, 12.0, b.Y.Max, 1e-12)
}

func TestComputeBoundsPaddingFloor(t *testing.T) {
	b := ComputeBounds([]Point{{X: 3, Y: 0.5}, {X: 3, Y: 0.51}, {X: 3, Y: 0.52}})

	assert.Greater(t, b.X.Max, b.X.Min)
	assert.InDelta(t, 2.9, b.X.Min, 1e-12)
	assert.InDelta(t, 3.1, b.X.Max, 1e-12)
	assert.InDelta(t, 0.4, b.Y.Min, 1e-12)
	assert.InDelta(t, 0.62, b.Y.Max, 1e-12)
}

func TestComputeBoundsDegenerateBranch(t *testing.T) {
	// 0.1 is far below the spacing of float64 values near 1e20
	b := ComputeBounds([]Point{{X: -1e20, Y: 1}})

	assert.Equal(t, 0.0, b.X.Min)
	assert.Equal(t, -1e20, b.X.Max)
	assert.InDelta(t, 0.9, b.Y.Min, 1e-12)
	assert.InDelta(t, 1.1, b.Y.Max, 1e-12)
}

func TestComputeBoundsStaysFiniteAtFloatLimits(t *testing.T) {
	b := ComputeBounds([]Point{{X: -1.7e308, Y: 0}, {X: 1.7e308, Y: math.MaxFloat64}})

	for _, v := range []float64{b.X.Min, b.X.Max, b.Y.Min, b.Y.Max} {
		assert.False(t, math.IsInf(v, 0), "bound %g", v)
	}
	assert.Equal(t, -math.MaxFloat64, b.X.Min)
	assert.Equal(t, math.MaxFloat64, b.X.Max)
	assert.Less(t, b.Y.Min, 0.0)
	assert.Equal(t, math.MaxFloat64, b.Y.Max)

	_, err := json.Marshal(b)
	assert.NoError(t, err)
}

func TestComputeBoundsFollowsProjection(t *testing.T) {
	samples := []Sample{{V1: 1, I1: 2}, {V1: 3, I1: 4}}

	plain := ComputeBounds(ProjectAll(samples, DefaultX, DefaultY))
	inverted := ComputeBounds(ProjectAll(samples, MustParseAxis("-V1"), DefaultY))

	assert.InDelta(t, plain.X.Min, -inverted.X.Max, 1e-12)
	assert.InDelta(t, plain.X.Max, -inverted.X.Min, 1e-12)
	assert.Equal(t, plain.Y, inverted.Y)
}
