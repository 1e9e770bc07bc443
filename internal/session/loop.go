package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sweeptrace/internal/sweep"
)

type event interface{}

type dataEvent struct {
	gen   uint64
	chunk []byte
}

type errorEvent struct {
	gen uint64
	err error
}

type callEvent struct {
	fn   func(*Session)
	done chan struct{}
}

// link forwards one connection's callbacks into the session queue until stopped
type link struct {
	gen      uint64
	events   chan<- event
	done     chan struct{}
	stopOnce sync.Once
}

func newLink(gen uint64, events chan<- event) *link {
	return &link{gen: gen, events: events, done: make(chan struct{})}
}

func (l *link) OnData(chunk []byte) {
	select {
	case l.events <- dataEvent{gen: l.gen, chunk: chunk}:
	case <-l.done:
	}
}

func (l *link) OnError(err error) {
	select {
	case l.events <- errorEvent{gen: l.gen, err: err}:
	case <-l.done:
	}
}

func (l *link) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Run applies queued events until ctx is cancelled, then closes the connection
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("session started")
	defer s.log.Info("session stopped")

	for {
		select {
		case <-ctx.Done():
			return s.closeConn()
		case ev := <-s.events:
			s.dispatch(ev)
		}
	}
}

func (s *Session) dispatch(ev event) {
	switch e := ev.(type) {
	case dataEvent:
		if e.gen != s.gen || s.conn == nil {
			return
		}
		s.HandleChunk(e.chunk)
	case errorEvent:
		s.handleError(e.gen, e.err)
	case callEvent:
		e.fn(s)
		if e.done != nil {
			close(e.done)
		}
	}
}

// Submit queues fn to run on the session goroutine
func (s *Session) Submit(fn func(*Session)) {
	s.events <- callEvent{fn: fn}
}

// Call runs fn on the session goroutine and waits for it. It must not be called from
// the session goroutine itself.
func (s *Session) Call(ctx context.Context, fn func(*Session)) error {
	done := make(chan struct{})
	select {
	case s.events <- callEvent{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Control validates a textual user control and queues it. Supported actions:
// connect [port], disconnect, port <name>, ports, x [axis], y [axis], clear, export, reset.
// An empty axis value selects the next axis.
func (s *Session) Control(action, value string) error {
	action = strings.ToLower(strings.TrimSpace(action))
	value = strings.TrimSpace(value)

	switch action {
	case "connect":
		s.Submit(func(s *Session) {
			if err := s.Connect(value); err != nil {
				s.log.WithError(err).Warn("connect failed")
			}
		})
	case "disconnect":
		s.Submit(func(s *Session) {
			if err := s.Disconnect(); err != nil {
				s.notify(fmt.Sprintf("Disconnect: %v", err))
			}
		})
	case "port":
		if value == "" {
			return fmt.Errorf("port control needs a port name")
		}
		s.Submit(func(s *Session) { s.SelectPort(value) })
	case "ports":
		s.Submit(func(s *Session) {
			if _, err := s.ListPorts(); err != nil {
				s.notify(fmt.Sprintf("Listing ports failed: %v", err))
			}
		})
	case "x", "y":
		var axis *sweep.Axis
		if value != "" {
			a, err := sweep.ParseAxis(value)
			if err != nil {
				return err
			}
			axis = &a
		}
		s.Submit(func(s *Session) {
			if action == "x" {
				s.SetXAxis(pick(axis, s.x))
			} else {
				s.SetYAxis(pick(axis, s.y))
			}
		})
	case "clear":
		s.Submit(func(s *Session) { s.Clear() })
	case "export":
		s.Submit(func(s *Session) { s.Export(context.Background()) })
	case "reset":
		s.Submit(func(s *Session) {
			if err := s.Reset(); err != nil {
				s.log.WithError(err).Warn("reset incomplete")
			}
		})
	default:
		return fmt.Errorf("%w: %s", ErrUnknownControl, action)
	}
	return nil
}

func pick(axis *sweep.Axis, current sweep.Axis) sweep.Axis {
	if axis != nil {
		return *axis
	}
	return current.Next()
}
