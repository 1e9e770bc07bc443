// Package frame turns the instrument's newline-delimited text stream into samples
package frame

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"sweeptrace/internal/sweep"
)

// MaxLineLength bounds the pending fragment kept between chunks. A fragment that grows
// past it without a newline is not a measurement frame: it is dropped along with the rest
// of its line, up to and including the next newline.
const MaxLineLength = 4096

// FieldCount is the number of comma-separated readings in a frame
const FieldCount = 4

// ParseLine parses "V1,I1,V2,I2". Lines without exactly four finite numbers are rejected.
func ParseLine(line string) (sweep.Sample, bool) {
	fields := strings.Split(line, ",")
	if len(fields) != FieldCount {
		return sweep.Sample{}, false
	}

	var values [FieldCount]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return sweep.Sample{}, false
		}
		values[i] = v
	}
	return sweep.SampleFromValues(values), true
}

// Parser reassembles lines from arbitrarily sized chunks
type Parser struct {
	pending    []byte
	dropped    int
	discarding bool // inside an oversized line, skipping to its newline
}

// NewParser creates an empty parser
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends a chunk and returns the samples of every completed line, in order.
// Malformed lines are skipped silently; they are expected at stream boundaries.
func (p *Parser) Feed(chunk []byte) []sweep.Sample {
	if p.discarding {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			return nil
		}
		chunk = chunk[idx+1:]
		p.discarding = false
	}
	p.pending = append(p.pending, chunk...)

	var samples []sweep.Sample
	for {
		idx := bytes.IndexByte(p.pending, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(string(p.pending[:idx]))
		p.pending = p.pending[idx+1:]

		if line == "" {
			continue
		}
		if s, ok := ParseLine(line); ok {
			samples = append(samples, s)
		} else {
			p.dropped++
		}
	}

	if len(p.pending) > MaxLineLength {
		p.pending = p.pending[:0]
		p.discarding = true
		p.dropped++
	}
	// compact so the pending slice does not pin old chunks
	if len(p.pending) == 0 {
		p.pending = nil
	} else if cap(p.pending) > 2*MaxLineLength {
		p.pending = append([]byte(nil), p.pending...)
	}
	return samples
}

// Pending returns the incomplete trailing fragment
func (p *Parser) Pending() string {
	return string(p.pending)
}

// Dropped counts lines that did not parse as frames
func (p *Parser) Dropped() int {
	return p.dropped
}

// Reset discards any partial line, used when a new connection starts
func (p *Parser) Reset() {
	p.pending = nil
	p.discarding = false
}
