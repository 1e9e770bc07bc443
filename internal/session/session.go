// Package session owns the live acquisition state: the sweep buffer, the axis selection,
// the single open connection and the outputs fed on every update.
//
// All state changes happen on one goroutine. Transport callbacks and user controls are
// queued as events and applied in arrival order by Run; the synchronous methods below
// must only be called from that goroutine (or before Run starts, or when Run is not used).
package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"sweeptrace/internal/config"
	"sweeptrace/internal/export"
	"sweeptrace/internal/frame"
	"sweeptrace/internal/logger"
	"sweeptrace/internal/render"
	"sweeptrace/internal/serialport"
	"sweeptrace/internal/sweep"
)

var (
	// ErrNoPort is returned when connecting without a selected port
	ErrNoPort = errors.New("no port selected")
	// ErrNotConnected is returned when disconnecting while no connection is open
	ErrNotConnected = errors.New("not connected")
	// ErrNoTransport is returned when the session was built without a transport
	ErrNoTransport = errors.New("no transport configured")
	// ErrUnknownControl is returned by Control for unsupported actions
	ErrUnknownControl = errors.New("unknown control")
)

const eventQueueSize = 256

// Transport lists and opens instrument endpoints
type Transport interface {
	List() ([]string, error)
	Open(name string, baudRate int, h serialport.Handler) (io.Closer, error)
}

// Exporter stores the buffered samples somewhere and reports where
type Exporter interface {
	Export(ctx context.Context, src export.Source) ([]string, error)
}

// SampleObserver sees every accepted sample. Observe is called on the session goroutine
// and must not block.
type SampleObserver interface {
	Observe(sessionID string, s sweep.Sample)
}

// Options wires the session's collaborators; every field is optional
type Options struct {
	Transport Transport
	Renderer  render.Renderer
	Exporter  Exporter
	Observers []SampleObserver
	OnStatus  func(render.Status)
}

// Session is one acquisition session
type Session struct {
	id  string
	cfg *config.Config
	log *logger.Entry

	transport Transport
	renderer  render.Renderer
	exporter  Exporter
	observers []SampleObserver
	onStatus  func(render.Status)

	buffer *sweep.Buffer
	parser *frame.Parser
	x, y   sweep.Axis
	last   *sweep.Sample

	ports   []string
	port    string
	conn    io.Closer
	link    *link
	gen     uint64
	status  render.Status
	message string
	seq     uint64

	events chan event
}

// New creates a session from configuration
func New(cfg *config.Config, opts Options) *Session {
	id := uuid.NewString()
	return &Session{
		id:        id,
		cfg:       cfg,
		log:       logger.GetLogger().WithComponent("session").WithFields(logger.Fields{"session": id}),
		transport: opts.Transport,
		renderer:  opts.Renderer,
		exporter:  opts.Exporter,
		observers: opts.Observers,
		onStatus:  opts.OnStatus,
		buffer:    sweep.NewBuffer(cfg.Buffer.Capacity),
		parser:    frame.NewParser(),
		x:         cfg.XAxis(),
		y:         cfg.YAxis(),
		port:      cfg.Serial.Port,
		events:    make(chan event, eventQueueSize),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Axes returns the active x and y selectors
func (s *Session) Axes() (sweep.Axis, sweep.Axis) {
	return s.x, s.y
}

// Buffer exposes the sweep buffer for read access
func (s *Session) Buffer() *sweep.Buffer {
	return s.buffer
}

// Status returns the last connection status
func (s *Session) Status() render.Status {
	return s.status
}

// SelectedPort returns the port used by Connect("")
func (s *Session) SelectedPort() string {
	return s.port
}

// DroppedLines counts received lines that were not valid frames
func (s *Session) DroppedLines() int {
	return s.parser.Dropped()
}

// ListPorts refreshes the endpoint list
func (s *Session) ListPorts() ([]string, error) {
	if s.transport == nil {
		return nil, ErrNoTransport
	}
	ports, err := s.transport.List()
	if err != nil {
		return nil, err
	}
	s.ports = ports
	s.publish()
	return ports, nil
}

// SelectPort sets the port used by Connect("")
func (s *Session) SelectPort(name string) {
	s.port = name
	s.publish()
}

// Connect opens port, or the selected port when empty. An open connection is always
// closed before the new one is attempted. Open failures are reported once through the
// status callback and returned.
func (s *Session) Connect(port string) error {
	if port == "" {
		port = s.port
	}
	if port == "" {
		s.notify("Please select a port")
		return ErrNoPort
	}
	if s.transport == nil {
		return ErrNoTransport
	}

	if err := s.closeConn(); err != nil {
		s.log.WithError(err).Warn("failed to close previous connection")
	}
	s.parser.Reset()
	s.port = port

	s.gen++
	l := newLink(s.gen, s.events)
	conn, err := s.transport.Open(port, s.cfg.Serial.BaudRate, l)
	if err != nil {
		l.stop()
		s.setStatus(render.Status{Connected: false, Port: port, Error: err.Error()})
		s.publish()
		return err
	}

	s.conn = conn
	s.link = l
	s.setStatus(render.Status{Connected: true, Port: port})
	s.publish()
	return nil
}

// Disconnect closes the open connection
func (s *Session) Disconnect() error {
	if s.conn == nil {
		return ErrNotConnected
	}
	err := s.closeConn()
	s.setStatus(render.Status{Connected: false, Port: s.port})
	s.publish()
	return err
}

// closeConn stops event delivery from the current link and closes the port
func (s *Session) closeConn() error {
	if s.link != nil {
		s.link.stop()
		s.link = nil
	}
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// HandleChunk parses a raw chunk and applies every completed frame, then publishes once
func (s *Session) HandleChunk(chunk []byte) int {
	samples := s.parser.Feed(chunk)
	for _, sample := range samples {
		s.apply(sample)
	}
	if len(samples) > 0 {
		s.publish()
	}
	return len(samples)
}

// Push applies one sample and publishes the new state
func (s *Session) Push(sample sweep.Sample) {
	s.apply(sample)
	s.publish()
}

func (s *Session) apply(sample sweep.Sample) {
	last := sample
	s.last = &last

	if trimmed := s.buffer.Push(sample, s.x.Channel); trimmed > 0 {
		s.log.WithFields(logger.Fields{
			"axis":    s.x.Channel.String(),
			"value":   sample.Value(s.x.Channel),
			"trimmed": trimmed,
		}).Debug("backward sweep, trimmed history")
	}
	for _, o := range s.observers {
		o.Observe(s.id, sample)
	}
}

// handleError reports a transport failure of the live connection
func (s *Session) handleError(gen uint64, err error) {
	if gen != s.gen || s.conn == nil {
		return
	}
	if cerr := s.closeConn(); cerr != nil {
		s.log.WithError(cerr).Debug("close after transport error")
	}
	s.setStatus(render.Status{Connected: false, Port: s.port, Error: err.Error()})
	s.publish()
}

// SetXAxis changes the x selector and clears the buffer
func (s *Session) SetXAxis(a sweep.Axis) {
	s.x = a
	s.buffer.Clear()
	s.publish()
}

// SetYAxis changes the y selector and clears the buffer
func (s *Session) SetYAxis(a sweep.Axis) {
	s.y = a
	s.buffer.Clear()
	s.publish()
}

// Clear empties the buffer; the latest readings stay on display
func (s *Session) Clear() {
	s.buffer.Clear()
	s.publish()
}

// Export hands the buffer to the exporter
func (s *Session) Export(ctx context.Context) ([]string, error) {
	if s.exporter == nil {
		return nil, fmt.Errorf("no export destination configured")
	}
	locations, err := s.exporter.Export(ctx, s.buffer)
	switch {
	case errors.Is(err, export.ErrNothingToExport):
		s.notify("No data to export")
	case err != nil:
		s.log.WithError(err).Error("export failed")
		s.notify(fmt.Sprintf("Export failed: %v", err))
	default:
		s.log.WithFields(logger.Fields{"locations": locations, "samples": s.buffer.Len()}).Info("exported buffer")
		s.notify(fmt.Sprintf("Exported %d samples", s.buffer.Len()))
	}
	return locations, err
}

// Reset disconnects, drops all data and readings, restores the default axes, clears the
// port selection and re-lists ports
func (s *Session) Reset() error {
	var errs []error
	if s.conn != nil {
		if err := s.closeConn(); err != nil {
			errs = append(errs, err)
		}
	}
	s.status = render.Status{}
	s.buffer.Clear()
	s.parser.Reset()
	s.last = nil
	s.x, s.y = sweep.DefaultX, sweep.DefaultY
	s.port = ""
	s.message = ""

	if s.transport != nil {
		ports, err := s.transport.List()
		if err != nil {
			errs = append(errs, err)
		} else {
			s.ports = ports
		}
	}
	if s.onStatus != nil {
		s.onStatus(s.status)
	}
	s.publish()
	return errors.Join(errs...)
}

// Frame builds the full chart state from the buffer
func (s *Session) Frame() render.Frame {
	history := sweep.ProjectAll(s.buffer.History(), s.x, s.y)
	var current []sweep.Point
	if cur, ok := s.buffer.Current(); ok {
		current = []sweep.Point{sweep.Project(cur, s.x, s.y)}
	}

	all := make([]sweep.Point, 0, len(history)+len(current))
	all = append(all, history...)
	all = append(all, current...)

	f := render.Frame{
		SessionID: s.id,
		Seq:       s.seq,
		XTitle:    s.x.String(),
		YTitle:    s.y.String(),
		History:   history,
		Current:   current,
		Bounds:    sweep.ComputeBounds(all),
		Status:    s.status,
		Ports:     append([]string(nil), s.ports...),
		Selected:  s.port,
		Message:   s.message,
	}
	if s.last != nil {
		readings := sweep.DisplayValues(*s.last, s.x, s.y)
		f.Readings = &readings
	}
	return f
}

func (s *Session) publish() {
	s.seq++
	if s.renderer == nil {
		return
	}
	if err := s.renderer.Render(s.Frame()); err != nil {
		s.log.WithError(err).Warn("render failed")
	}
}

func (s *Session) setStatus(st render.Status) {
	s.status = st
	entry := s.log.WithFields(logger.Fields{"port": st.Port, "connected": st.Connected})
	if st.Error != "" {
		entry.WithFields(logger.Fields{"error": st.Error}).Warn("connection status")
	} else {
		entry.Info("connection status")
	}
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

func (s *Session) notify(msg string) {
	s.message = msg
	s.log.Info(msg)
	s.publish()
}

// Close closes the open connection, if any
func (s *Session) Close() error {
	return s.closeConn()
}
