// Package console draws the live sweep chart in the terminal and maps key presses to
// session controls.
package console

import (
	"context"
	"fmt"
	"sync"

	termbox "github.com/nsf/termbox-go"

	"sweeptrace/internal/logger"
	"sweeptrace/internal/render"
)

// Console is a terminal renderer
type Console struct {
	control render.Controller
	log     *logger.Entry

	mu     sync.Mutex
	latest render.Frame
	redraw chan struct{}
}

// New creates a console that forwards key presses to control
func New(control render.Controller) *Console {
	return &Console{
		control: control,
		log:     logger.GetLogger().WithComponent("console"),
		redraw:  make(chan struct{}, 1),
	}
}

// Render stores the frame and schedules a redraw
func (c *Console) Render(f render.Frame) error {
	c.mu.Lock()
	c.latest = f
	c.mu.Unlock()

	select {
	case c.redraw <- struct{}{}:
	default:
	}
	return nil
}

func (c *Console) frame() render.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Run owns the terminal until ctx is cancelled or the user quits
func (c *Console) Run(ctx context.Context) error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	defer termbox.Close()
	termbox.HideCursor()

	events := make(chan termbox.Event, 8)
	go func() {
		for {
			ev := termbox.PollEvent()
			if ev.Type == termbox.EventInterrupt {
				close(events)
				return
			}
			events <- ev
		}
	}()
	defer func() {
		termbox.Interrupt()
		for range events {
		}
	}()

	if err := c.draw(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.redraw:
			if err := c.draw(); err != nil {
				return err
			}
		case ev := <-events:
			switch ev.Type {
			case termbox.EventError:
				return fmt.Errorf("terminal input failed: %w", ev.Err)
			case termbox.EventResize:
				if err := c.draw(); err != nil {
					return err
				}
			case termbox.EventKey:
				if c.handleKey(ev) {
					return nil
				}
			}
		}
	}
}

func (c *Console) handleKey(ev termbox.Event) bool {
	if ev.Key == termbox.KeyCtrlC {
		return true
	}
	action, value, quit := KeyControl(ev.Ch, ev.Key == termbox.KeyEsc, c.frame())
	if quit {
		return true
	}
	if action == "" || c.control == nil {
		return false
	}
	if err := c.control.Control(action, value); err != nil {
		c.log.WithError(err).WithFields(logger.Fields{"action": action}).Warn("control rejected")
	}
	return false
}

func (c *Console) draw() error {
	f := c.frame()
	if err := termbox.Clear(termbox.ColorDefault, termbox.ColorDefault); err != nil {
		return err
	}
	width, height := termbox.Size()

	putString(0, 0, StatusLine(f), termbox.ColorWhite, termbox.ColorDefault)
	putString(0, 1, Readouts(f), termbox.ColorYellow, termbox.ColorDefault)
	if f.Message != "" {
		putString(0, 2, f.Message, termbox.ColorCyan, termbox.ColorDefault)
	}

	xMin, xMax, yMin, yMax := BoundsLabels(f)
	left := len(yMax)
	if len(yMin) > left {
		left = len(yMin)
	}
	left++
	top, bottom := 4, height-3
	right := width - 1
	if bottom-top < 2 || right-left < 2 {
		return termbox.Flush()
	}

	for x := left; x <= right; x++ {
		termbox.SetCell(x, bottom, '-', termbox.ColorWhite, termbox.ColorDefault)
	}
	for y := top; y < bottom; y++ {
		termbox.SetCell(left-1, y, '|', termbox.ColorWhite, termbox.ColorDefault)
	}
	termbox.SetCell(left-1, bottom, '+', termbox.ColorWhite, termbox.ColorDefault)

	grid := Plot(f, right-left+1, bottom-top)
	for row, cells := range grid {
		for col, r := range cells {
			switch r {
			case historyMark:
				termbox.SetCell(left+col, top+row, r, termbox.ColorBlue, termbox.ColorDefault)
			case currentMark:
				termbox.SetCell(left+col, top+row, r, termbox.ColorGreen|termbox.AttrBold, termbox.ColorDefault)
			}
		}
	}

	putString(0, top-1, f.YTitle, termbox.ColorWhite, termbox.ColorDefault)
	putString(left-len(yMax)-1, top, yMax, termbox.ColorWhite, termbox.ColorDefault)
	putString(left-len(yMin)-1, bottom-1, yMin, termbox.ColorWhite, termbox.ColorDefault)
	putString(left, bottom+1, xMin, termbox.ColorWhite, termbox.ColorDefault)
	putString(right-len(xMax)+1, bottom+1, xMax, termbox.ColorWhite, termbox.ColorDefault)
	putString(left+(right-left)/2-len(f.XTitle)/2, bottom+1, f.XTitle, termbox.ColorWhite, termbox.ColorDefault)
	putString(0, height-1, Help, termbox.ColorDefault, termbox.ColorDefault)

	return termbox.Flush()
}

func putString(x, y int, s string, fg, bg termbox.Attribute) {
	for i, r := range []rune(s) {
		termbox.SetCell(x+i, y, r, fg, bg)
	}
}
