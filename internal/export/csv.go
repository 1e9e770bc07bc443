// Package export serializes buffered samples to CSV and stores the result
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"sweeptrace/internal/sweep"
)

// ErrNothingToExport is returned when the buffer holds no samples
var ErrNothingToExport = errors.New("nothing to export")

// Header is the first CSV row
var Header = []string{"V1", "I1", "V2", "I2"}

// Source is the read side of a sweep buffer
type Source interface {
	History() []sweep.Sample
	Current() (sweep.Sample, bool)
}

// Serialize writes the header, then history in insertion order, then the current sample
func Serialize(src Source) ([]byte, error) {
	history := src.History()
	current, hasCurrent := src.Current()
	if len(history) == 0 && !hasCurrent {
		return nil, ErrNothingToExport
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, s := range history {
		if err := writer.Write(row(s)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	if hasCurrent {
		if err := writer.Write(row(current)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func row(s sweep.Sample) []string {
	values := s.Values()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = formatValue(v)
	}
	return out
}

// formatValue prints the shortest representation that parses back to v; plain decimal in
// the usual instrument range and exponent form for very large or very small magnitudes.
func formatValue(v float64) string {
	abs := math.Abs(v)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Filename returns data_export_<ISO-8601 seconds, colons replaced by hyphens>.csv
func Filename(t time.Time) string {
	return "data_export_" + t.UTC().Format("2006-01-02T15-04-05") + ".csv"
}
