package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/time/rate"

	"sweeptrace/internal/config"
	"sweeptrace/internal/logger"
	"sweeptrace/internal/sweep"
)

var (
	historyColor = drawing.ColorFromHex("4a6fa5")
	currentColor = drawing.ColorFromHex("28a745")
)

// ChartFile rewrites a PNG chart, at most once per configured interval. Frames arriving
// faster are held; the newest one is written when the interval expires, or by Flush.
type ChartFile struct {
	path    string
	width   int
	height  int
	limiter *rate.Limiter
	log     *logger.Entry

	mu      sync.Mutex
	pending *Frame
	timer   *time.Timer
}

// NewChartFile creates a PNG renderer from the chart configuration
func NewChartFile(cfg config.ChartConfig) *ChartFile {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &ChartFile{
		path:    cfg.Path,
		width:   cfg.Width,
		height:  cfg.Height,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.GetLogger().WithComponent("chart").WithFields(logger.Fields{"path": cfg.Path}),
	}
}

// Render writes the frame now if the interval allows, otherwise keeps it for Flush
func (c *ChartFile) Render(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.limiter.Allow() {
		c.pending = &f
		if c.timer == nil {
			c.timer = time.AfterFunc(c.limiter.Reserve().Delay(), c.writePending)
		}
		return nil
	}
	c.pending = nil
	return c.write(f)
}

// writePending is the trailing write of a throttled burst
func (c *ChartFile) writePending() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer = nil
	if c.pending == nil {
		return
	}
	f := *c.pending
	c.pending = nil
	if err := c.write(f); err != nil {
		c.log.WithError(err).Warn("delayed chart write failed")
	}
}

// Flush writes the newest held frame, if any, and cancels the pending trailing write
func (c *ChartFile) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.pending == nil {
		return nil
	}
	f := *c.pending
	c.pending = nil
	return c.write(f)
}

func (c *ChartFile) write(f Frame) error {
	if f.Empty() {
		// go-chart cannot render without series; the previous image stays until data arrives
		return nil
	}

	ch := BuildChart(f, c.width, c.height)
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".chart-*.png")
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write chart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close chart file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move chart file into place: %w", err)
	}
	return nil
}

// BuildChart lays out the history line and the highlighted current point
func BuildChart(f Frame, width, height int) chart.Chart {
	var series []chart.Series
	if len(f.History) > 0 {
		xs, ys := split(f.History)
		series = append(series, chart.ContinuousSeries{
			Name:    "Historical Data",
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: historyColor,
				StrokeWidth: 2,
				DotColor:    historyColor,
				DotWidth:    3,
			},
		})
	}
	if len(f.Current) > 0 {
		xs, ys := split(f.Current)
		series = append(series, chart.ContinuousSeries{
			Name:    "Current Point",
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: drawing.ColorTransparent,
				DotColor:    currentColor,
				DotWidth:    6,
			},
		})
	}

	xAxis := chart.XAxis{Name: f.XTitle}
	yAxis := chart.YAxis{Name: f.YTitle}
	if !f.Bounds.Auto && f.Bounds.X.Min < f.Bounds.X.Max && f.Bounds.Y.Min < f.Bounds.Y.Max {
		xAxis.Range = &chart.ContinuousRange{Min: f.Bounds.X.Min, Max: f.Bounds.X.Max}
		yAxis.Range = &chart.ContinuousRange{Min: f.Bounds.Y.Min, Max: f.Bounds.Y.Max}
	}

	return chart.Chart{
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series:     series,
	}
}

func split(points []sweep.Point) ([]float64, []float64) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}
