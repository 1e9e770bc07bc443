// Package serialport connects to the instrument over a serial line and streams raw chunks
package serialport

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.bug.st/serial"

	"sweeptrace/internal/logger"
)

// DefaultBaudRate is the instrument's fixed line rate
const DefaultBaudRate = 9600

const readBufferSize = 1024

// Handler receives data chunks and the terminal read error of one connection.
// Both are called from the connection's read goroutine.
type Handler interface {
	OnData(chunk []byte)
	OnError(err error)
}

// Transport lists and opens serial endpoints
type Transport struct {
	log *logger.Entry
}

// NewTransport creates a transport over the system's serial ports
func NewTransport() *Transport {
	return &Transport{log: logger.GetLogger().WithComponent("serial")}
}

// List returns the available port names, sorted
func (t *Transport) List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// Open opens name at baudRate (8N1) and starts delivering chunks to h
func (t *Transport) Open(name string, baudRate int, h Handler) (io.Closer, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	conn := newConn(name, port, h, t.log.WithFields(logger.Fields{"port": name, "baud_rate": baudRate}))
	go conn.readLoop()
	return conn, nil
}

// Conn is one open serial connection
type Conn struct {
	name    string
	port    io.ReadCloser
	handler Handler
	log     *logger.Entry

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newConn(name string, port io.ReadCloser, h Handler, log *logger.Entry) *Conn {
	return &Conn{
		name:    name,
		port:    port,
		handler: h,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Name returns the port the connection was opened on
func (c *Conn) Name() string {
	return c.name
}

func (c *Conn) readLoop() {
	defer close(c.done)
	c.log.Info("starting read loop")

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.handler.OnData(chunk)
		}
		if err != nil {
			if c.isClosed() {
				break
			}
			c.log.WithError(err).Warn("serial read failed")
			c.handler.OnError(fmt.Errorf("serial read on %s failed: %w", c.name, err))
			break
		}
		if n == 0 {
			// go.bug.st/serial returns 0, nil when the device goes away
			if c.isClosed() {
				break
			}
			c.handler.OnError(fmt.Errorf("serial port %s closed by device", c.name))
			break
		}
	}
	c.log.Info("read loop ended")
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the port and waits for the read loop to exit
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.port.Close()
	<-c.done
	if err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("failed to close serial port %s: %w", c.name, err)
	}
	return nil
}
