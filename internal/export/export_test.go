package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweeptrace/internal/frame"
	"sweeptrace/internal/sweep"
)

func filledBuffer(samples ...sweep.Sample) *sweep.Buffer {
	b := sweep.NewBuffer(100)
	for _, s := range samples {
		b.Push(s, sweep.V1)
	}
	return b
}

func TestSerializeEmpty(t *testing.T) {
	_, err := Serialize(sweep.NewBuffer(10))
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestSerializeCurrentOnly(t *testing.T) {
	data, err := Serialize(filledBuffer(sweep.Sample{V1: 1.5, I1: -0.25, V2: 0, I2: 3}))
	require.NoError(t, err)
	assert.Equal(t, "V1,I1,V2,I2\n1.5,-0.25,0,3\n", string(data))
}

func TestSerializeHistoryThenCurrent(t *testing.T) {
	data, err := Serialize(filledBuffer(
		sweep.Sample{V1: 1},
		sweep.Sample{V1: 2},
		sweep.Sample{V1: 3},
	))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "V1,I1,V2,I2", lines[0])
	assert.Equal(t, "1,0,0,0", lines[1])
	assert.Equal(t, "3,0,0,0", lines[3])
}

func TestSerializeRoundTrip(t *testing.T) {
	samples := []sweep.Sample{
		{V1: 0.1, I1: 1e-9, V2: -12.000001, I2: 3.3333333333333335},
		{V1: 0.2, I1: 2.5e-7, V2: 1e22, I2: -0},
		{V1: 0.3, I1: 123456789.125, V2: -1e-300, I2: 42},
	}
	data, err := Serialize(filledBuffer(samples...))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")[1:]
	require.Len(t, lines, len(samples))
	for i, line := range lines {
		got, ok := frame.ParseLine(line)
		require.True(t, ok, line)
		assert.Equal(t, samples[i], got)
	}
}

func TestFilename(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)
	assert.Equal(t, "data_export_2026-03-04T05-06-07.csv", Filename(ts))
}

func TestFileSinkStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	sink := NewFileSink(dir)

	location, err := sink.Store(context.Background(), "a.csv", []byte("V1,I1,V2,I2\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.csv"), location)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "V1,I1,V2,I2\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3SinkStore(t *testing.T) {
	fake := &fakeS3{}
	sink := newS3Sink(fake, "lab-data", "bench/2612a")

	location, err := sink.Store(context.Background(), "x.csv", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "s3://lab-data/bench/2612a/x.csv", location)

	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "lab-data", aws.ToString(fake.inputs[0].Bucket))
	assert.Equal(t, "bench/2612a/x.csv", aws.ToString(fake.inputs[0].Key))
	assert.Equal(t, "payload", fake.bodies[0])
}

func TestExporterCollectsLocationsAndErrors(t *testing.T) {
	dir := t.TempDir()
	denied := errors.New("denied")
	failing := newS3Sink(&fakeS3{err: denied}, "b", "")
	exp := NewExporter(NewFileSink(dir), failing)
	exp.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	locations, err := exp.Export(context.Background(), filledBuffer(sweep.Sample{V1: 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
	assert.ErrorIs(t, err, denied, "sink causes stay reachable")
	assert.Equal(t, []string{filepath.Join(dir, "data_export_2026-01-02T03-04-05.csv")}, locations)
}

func TestExporterJoinsEverySinkFailure(t *testing.T) {
	first := errors.New("bucket missing")
	second := errors.New("throttled")
	exp := NewExporter(newS3Sink(&fakeS3{err: first}, "a", ""), newS3Sink(&fakeS3{err: second}, "b", ""))

	locations, err := exp.Export(context.Background(), filledBuffer(sweep.Sample{V1: 1}))
	assert.Empty(t, locations)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestExporterEmptyBuffer(t *testing.T) {
	exp := NewExporter(NewFileSink(t.TempDir()))
	_, err := exp.Export(context.Background(), sweep.NewBuffer(5))
	assert.ErrorIs(t, err, ErrNothingToExport)
}
