// Package render defines the chart frame handed to outputs and the outputs themselves
package render

import (
	"errors"

	"sweeptrace/internal/sweep"
)

// Status describes the serial connection
type Status struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Frame is a complete chart state: both series fully replaced on every update
type Frame struct {
	SessionID string        `json:"session_id"`
	Seq       uint64        `json:"seq"`
	XTitle    string        `json:"x_title"`
	YTitle    string        `json:"y_title"`
	History   []sweep.Point `json:"history"`
	Current   []sweep.Point `json:"current"`
	Bounds    sweep.Bounds  `json:"bounds"`
	Readings  *[4]float64   `json:"readings,omitempty"` // Latest readings, sign-adjusted for display
	Status    Status        `json:"status"`
	Ports     []string      `json:"ports,omitempty"`
	Selected  string        `json:"selected_port,omitempty"`
	Message   string        `json:"message,omitempty"` // Last user-facing notice, e.g. an export result
}

// Empty reports whether the frame has no points to plot
func (f Frame) Empty() bool {
	return len(f.History) == 0 && len(f.Current) == 0
}

// Renderer consumes frames. Render must not retain the frame's slices beyond the call
// unless it owns a copy; the session builds a fresh frame for every update.
type Renderer interface {
	Render(f Frame) error
}

// Multi fans a frame out to several renderers
type Multi []Renderer

// Render calls every renderer and joins their errors
func (m Multi) Render(f Frame) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
