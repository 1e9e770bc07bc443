package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sweeptrace/internal/logger"
)

const (
	clientSendBuffer = 16
	writeTimeout     = 5 * time.Second
)

// Controller executes a user control such as "clear" or "x" with value "-V1"
type Controller interface {
	Control(action, value string) error
}

// Message is the envelope exchanged with websocket clients
type Message struct {
	Type    string `json:"type"`              // "frame", "error" or "control"
	Frame   *Frame `json:"frame,omitempty"`   // Set for "frame"
	Action  string `json:"action,omitempty"`  // Set for "control"
	Value   string `json:"value,omitempty"`   // Optional control argument
	Message string `json:"message,omitempty"` // Set for "error"
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub serves the live chart to websocket clients and accepts their controls
type Hub struct {
	upgrader websocket.Upgrader
	control  Controller
	log      *logger.Entry

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

// NewHub creates a hub. control may be nil, in which case client controls are rejected.
func NewHub(control Controller) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		control: control,
		log:     logger.GetLogger().WithComponent("web"),
		clients: make(map[*client]struct{}),
	}
}

// Handler exposes /ws for live frames and /frame for the latest frame as JSON
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/frame", h.serveFrame)
	return mux
}

// Serve listens on addr until ctx is cancelled
func (h *Hub) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	h.log.WithFields(logger.Fields{"listen": addr}).Info("web view listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web view server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down web view: %w", err)
		}
		return nil
	}
}

// Render broadcasts the frame to every client. Clients that cannot keep up are dropped.
func (h *Hub) Render(f Frame) error {
	payload, err := json.Marshal(Message{Type: "frame", Frame: &f})
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = payload
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.WithFields(logger.Fields{"client": c.id}).Warn("dropping slow web client")
			delete(h.clients, c)
			c.close()
		}
	}
	return nil
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	return nil
}

func (h *Hub) serveFrame(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()

	if last == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(last)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	h.log.WithFields(logger.Fields{"client": c.id, "remote": r.RemoteAddr}).Info("web client connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.WithError(err).WithFields(logger.Fields{"client": c.id}).Debug("web client write failed")
			h.remove(c)
			// keep draining so senders holding the lock never block
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		h.log.WithFields(logger.Fields{"client": c.id}).Info("web client disconnected")
	}()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "control" {
			continue
		}
		if err := h.dispatch(msg.Action, msg.Value); err != nil {
			h.reply(c, Message{Type: "error", Action: msg.Action, Message: err.Error()})
		}
	}
}

func (h *Hub) dispatch(action, value string) error {
	if h.control == nil {
		return fmt.Errorf("controls are disabled")
	}
	return h.control.Control(action, value)
}

func (h *Hub) reply(c *client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}
