package frame

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweeptrace/internal/sweep"
)

func TestParseLineValid(t *testing.T) {
	tests := []struct {
		line string
		want sweep.Sample
	}{
		{"1,2,3,4", sweep.Sample{V1: 1, I1: 2, V2: 3, I2: 4}},
		{" 1.5 , -0.002,3e-3,\t4 ", sweep.Sample{V1: 1.5, I1: -0.002, V2: 0.003, I2: 4}},
		{"-0,0,0,0", sweep.Sample{}},
	}
	for _, tt := range tests {
		got, ok := ParseLine(tt.line)
		require.True(t, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestParseLineRejects(t *testing.T) {
	for _, line := range []string{
		"",
		"1,2,3",
		"1,2,3,4,5",
		"1,2,,4",
		"1,2,x,4",
		"1,2,3,NaN",
		"1,Inf,3,4",
		"1,2,3,-Infinity",
		"1,2,3,1e400",
		"V1,I1,V2,I2",
	} {
		_, ok := ParseLine(line)
		assert.False(t, ok, "%q should be rejected", line)
	}
}

func TestParserReassemblesChunks(t *testing.T) {
	p := NewParser()

	first := p.Feed([]byte("1,2,3,4\n5,6,7"))
	require.Len(t, first, 1)
	assert.Equal(t, sweep.Sample{V1: 1, I1: 2, V2: 3, I2: 4}, first[0])
	assert.Equal(t, "5,6,7", p.Pending())

	second := p.Feed([]byte(",8\n"))
	require.Len(t, second, 1)
	assert.Equal(t, sweep.Sample{V1: 5, I1: 6, V2: 7, I2: 8}, second[0])
	assert.Empty(t, p.Pending())
}

func TestParserByteAtATime(t *testing.T) {
	p := NewParser()
	stream := "1,1,1,1\r\n2,2,2,2\r\n\r\ngarbage\n3,3,3,3\n"

	var got []sweep.Sample
	for i := 0; i < len(stream); i++ {
		got = append(got, p.Feed([]byte{stream[i]})...)
	}

	require.Len(t, got, 3)
	for i, s := range got {
		assert.Equal(t, float64(i+1), s.V1)
	}
	assert.Equal(t, 1, p.Dropped())
}

func TestParserDropsRunawayFragment(t *testing.T) {
	p := NewParser()
	p.Feed([]byte(strings.Repeat("x", MaxLineLength+1)))
	assert.Empty(t, p.Pending())

	got := p.Feed([]byte("\n1,2,3,4\n"))
	require.Len(t, got, 1)
	assert.Equal(t, 1, p.Dropped())
}

func TestParserSkipsTailOfOversizedLine(t *testing.T) {
	p := NewParser()

	// a numeric tail must not be mistaken for a frame once the head was dropped
	assert.Empty(t, p.Feed([]byte("0."+strings.Repeat("0", MaxLineLength))))
	assert.Empty(t, p.Feed([]byte("0000")))
	assert.Empty(t, p.Feed([]byte("00000001,2,3,4\n")))

	got := p.Feed([]byte("5,6,7,8\n"))
	require.Len(t, got, 1)
	assert.Equal(t, sweep.Sample{V1: 5, I1: 6, V2: 7, I2: 8}, got[0])
	assert.Equal(t, 1, p.Dropped(), "the oversized line counts once")
}

func TestParserOversizedLineEndsInSameChunk(t *testing.T) {
	p := NewParser()
	p.Feed([]byte(strings.Repeat("9", MaxLineLength+1)))

	got := p.Feed([]byte(",1,1,1\n2,2,2,2\n"))
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].V1)
}

func TestParserResetLeavesDiscardMode(t *testing.T) {
	p := NewParser()
	p.Feed([]byte(strings.Repeat("x", MaxLineLength+1)))
	p.Reset()

	got := p.Feed([]byte("1,2,3,4\n"))
	require.Len(t, got, 1)
}

func TestParserReset(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("9,9,"))
	p.Reset()

	got := p.Feed([]byte("1,2,3,4\n"))
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].V1)
}
