// sweeptrace-replay - feed a captured instrument stream through a session offline
// The capture is the raw byte stream as read from the serial port. It is replayed in
// fixed-size chunks so line reassembly behaves as it does on a live link.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sweeptrace/internal/config"
	"sweeptrace/internal/export"
	"sweeptrace/internal/logger"
	"sweeptrace/internal/render"
	"sweeptrace/internal/session"
	"sweeptrace/internal/sweep"
	"sweeptrace/internal/version"
)

var (
	showVersion bool
	chunkSize   int
	capacity    int
	xAxis       string
	yAxis       string
	chartPath   string
	chartWidth  int
	chartHeight int
	exportDir   string
	noExport    bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "sweeptrace-replay [capture]",
	Short: "Replay a captured sweep stream into a chart and CSV export",
	Long: `sweeptrace-replay reads a raw capture of V1,I1,V2,I2 lines, applies it to a sweep
buffer exactly as a live session would (capacity, backward-sweep trimming, axis
projection) and writes the resulting chart as PNG plus a CSV export.

Use "-" to read the capture from stdin.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.Get().Info("sweeptrace-replay"))
			return
		}

		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: capture file required\n")
			cmd.Usage()
			os.Exit(1)
		}

		if err := replay(args[0], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log trimmed history and other details")
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", 64, "bytes delivered per simulated read")
	rootCmd.Flags().IntVar(&capacity, "capacity", sweep.DefaultCapacity, "history samples kept, current point excluded")
	rootCmd.Flags().StringVar(&xAxis, "x-axis", "V1", "x axis selector")
	rootCmd.Flags().StringVar(&yAxis, "y-axis", "I1", "y axis selector")
	rootCmd.Flags().StringVarP(&chartPath, "output", "o", "", "chart PNG path (default <capture>.png)")
	rootCmd.Flags().IntVar(&chartWidth, "width", 1024, "chart width in pixels")
	rootCmd.Flags().IntVar(&chartHeight, "height", 768, "chart height in pixels")
	rootCmd.Flags().StringVar(&exportDir, "export-dir", ".", "CSV export directory")
	rootCmd.Flags().BoolVar(&noExport, "no-export", false, "skip the CSV export")
}

// Summary describes one replay
type Summary struct {
	Bytes    int64
	Samples  int
	Dropped  int
	Retained int
	Bounds   sweep.Bounds
	Chart    string
	Exports  []string
}

func replay(path string, out io.Writer) error {
	if verbose {
		if err := logger.GetLogger().Configure("debug", "text", "stderr", 0); err != nil {
			return err
		}
	}

	var in io.Reader
	if path == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		defer f.Close()
		in = f
	}

	cfg := config.DefaultConfig()
	cfg.Buffer.Capacity = capacity
	cfg.Axes.X = xAxis
	cfg.Axes.Y = yAxis
	cfg.Export.Dir = exportDir
	cfg.Render.Chart = config.ChartConfig{
		Enabled: true,
		Path:    chartOutput(path),
		Width:   chartWidth,
		Height:  chartHeight,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	summary, err := run(context.Background(), cfg, in, chunkSize, !noExport)
	if err != nil {
		return err
	}
	printSummary(out, cfg, summary)
	return nil
}

func chartOutput(capture string) string {
	if chartPath != "" {
		return chartPath
	}
	if capture == "-" {
		return "replay.png"
	}
	return strings.TrimSuffix(capture, filepath.Ext(capture)) + ".png"
}

// run replays in through a session that has no transport attached
func run(ctx context.Context, cfg *config.Config, in io.Reader, chunk int, doExport bool) (Summary, error) {
	if chunk <= 0 {
		return Summary{}, fmt.Errorf("invalid chunk size: %d", chunk)
	}

	chartFile := render.NewChartFile(cfg.Render.Chart)
	sess := session.New(cfg, session.Options{
		Exporter: export.NewExporter(export.NewFileSink(cfg.Export.Dir)),
	})

	var s Summary
	buf := make([]byte, chunk)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			s.Bytes += int64(n)
			s.Samples += sess.HandleChunk(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return s, fmt.Errorf("failed to read capture: %w", err)
		}
	}
	// a final line without a newline is still a frame
	s.Samples += sess.HandleChunk([]byte("\n"))
	if s.Samples == 0 {
		return s, fmt.Errorf("no frames found in capture")
	}

	frame := sess.Frame()
	s.Dropped = sess.DroppedLines()
	s.Retained = sess.Buffer().Len()
	s.Bounds = frame.Bounds

	if err := chartFile.Render(frame); err != nil {
		return s, fmt.Errorf("failed to write chart: %w", err)
	}
	s.Chart = cfg.Render.Chart.Path

	if doExport {
		locations, err := sess.Export(ctx)
		if err != nil {
			return s, err
		}
		s.Exports = locations
	}
	return s, nil
}

func printSummary(out io.Writer, cfg *config.Config, s Summary) {
	fmt.Fprintf(out, "SWEEPTRACE REPLAY %s\n\n", version.Get().Short())
	fmt.Fprintf(out, "Bytes read:      %d\n", s.Bytes)
	fmt.Fprintf(out, "Frames parsed:   %d\n", s.Samples)
	fmt.Fprintf(out, "Lines dropped:   %d\n", s.Dropped)
	fmt.Fprintf(out, "Samples kept:    %d (capacity %d + current)\n", s.Retained, cfg.Buffer.Capacity)
	fmt.Fprintf(out, "Axes:            %s vs %s\n", cfg.XAxis(), cfg.YAxis())
	if !s.Bounds.Auto {
		fmt.Fprintf(out, "X range:         %g .. %g\n", s.Bounds.X.Min, s.Bounds.X.Max)
		fmt.Fprintf(out, "Y range:         %g .. %g\n", s.Bounds.Y.Min, s.Bounds.Y.Max)
	}
	fmt.Fprintf(out, "Chart:           %s\n", s.Chart)
	for _, loc := range s.Exports {
		fmt.Fprintf(out, "Export:          %s\n", loc)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
