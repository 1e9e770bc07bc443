package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sink stores one export and returns where it went
type Sink interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

// FileSink writes exports into a local directory
type FileSink struct {
	dir string
}

// NewFileSink creates a sink writing into dir, created on first use
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Store writes data to dir/name through a temp file so readers never see a partial export
func (f *FileSink) Store(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	filename := filepath.Join(f.dir, name)
	file, err := os.CreateTemp(f.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	tmp := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}
	return filename, nil
}

// Exporter serializes a source and hands the CSV to every sink
type Exporter struct {
	sinks []Sink
	now   func() time.Time
}

// NewExporter creates an exporter over the given sinks
func NewExporter(sinks ...Sink) *Exporter {
	return &Exporter{sinks: sinks, now: time.Now}
}

// Export stores the serialized source in every sink. All sinks are attempted; the
// locations that succeeded are returned together with any failures.
func (e *Exporter) Export(ctx context.Context, src Source) ([]string, error) {
	data, err := Serialize(src)
	if err != nil {
		return nil, err
	}
	if len(e.sinks) == 0 {
		return nil, fmt.Errorf("no export destination configured")
	}

	name := Filename(e.now())
	var locations []string
	var failures []error
	for _, sink := range e.sinks {
		location, err := sink.Store(ctx, name, data)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		locations = append(locations, location)
	}

	if err := errors.Join(failures...); err != nil {
		return locations, fmt.Errorf("export errors: %w", err)
	}
	return locations, nil
}
