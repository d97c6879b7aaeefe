// ABOUTME: WebSocket transport: negotiation hands out an attach path, the client then upgrades.
// ABOUTME: Re-attaching replaces the previous socket; a read failure on the live socket closes the session.

package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 1 << 20
	maxPendingSend = 64
	inboxSize      = 16
)

// ErrUnknownConnection indicates an attach for an id the hub does not know.
var ErrUnknownConnection = errors.New("unknown connection")

// HubConfig configures the WebSocket hub.
type HubConfig struct {
	// AttachPrefix is the URL path clients attach under, e.g. "/ws/".
	AttachPrefix string
	// AllowedOrigins lists permitted Origin headers. Empty or "*" allows all.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Hub creates WebSocket-backed connections and attaches client sockets to them.
type Hub struct {
	prefix   string
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.RWMutex
	conns map[string]*wsConn
}

// NewHub creates a Hub.
func NewHub(cfg HubConfig) *Hub {
	prefix := cfg.AttachPrefix
	if prefix == "" {
		prefix = "/ws/"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := slices.Clone(cfg.AllowedOrigins)
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")

	return &Hub{
		prefix: prefix,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, origin)
			},
		},
		logger: logger.With("component", "transport"),
		conns:  make(map[string]*wsConn),
	}
}

// NewConnection implements Factory.
func (h *Hub) NewConnection(id string) Connection {
	c := &wsConn{
		id:        id,
		hub:       h,
		lifecycle: newLifecycle(),
		neg:       &negotiation{attach: h.prefix + id},
		inbox:     make(chan []byte, inboxSize),
	}
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()
	return c
}

// Count returns the number of connections the hub tracks.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Attach upgrades the request and binds the socket to connection id.
// Returns ErrUnknownConnection (before upgrading) if id is not a live,
// negotiated connection.
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request, id string) error {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok || c.isClosed() || !c.neg.initialized() {
		return ErrUnknownConnection
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c.attach(ws)
	h.logger.Info("client attached", "session_id", id, "remote", r.RemoteAddr)
	return nil
}

// AttachID extracts the connection id from an attach path.
func (h *Hub) AttachID(path string) (string, bool) {
	id, ok := strings.CutPrefix(path, h.prefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (h *Hub) forget(id string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[id] == c {
		delete(h.conns, id)
	}
}

type wsConn struct {
	id  string
	hub *Hub
	*lifecycle
	neg   *negotiation
	inbox chan []byte

	sockMu  sync.Mutex // guards ws and pending; held across writes
	ws      *websocket.Conn
	pending [][]byte
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Initialize(ctx context.Context, offer Offer) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.neg.apply(ctx, offer)
}

func (c *wsConn) Renegotiate(ctx context.Context, offer Offer) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.neg.apply(ctx, offer)
}

func (c *wsConn) Answer() Answer { return c.neg.current() }

func (c *wsConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.inbox:
		return frame, nil
	case <-c.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send writes a frame to the attached socket, or queues it until a client attaches.
func (c *wsConn) Send(ctx context.Context, frame []byte) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.sockMu.Lock()
	defer c.sockMu.Unlock()

	if c.ws == nil {
		if len(c.pending) >= maxPendingSend {
			return ErrNotAttached
		}
		c.pending = append(c.pending, slices.Clone(frame))
		return nil
	}
	return writeFrame(ctx, c.ws, frame)
}

func writeFrame(ctx context.Context, ws *websocket.Conn, frame []byte) error {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsConn) attach(ws *websocket.Conn) {
	ws.SetReadLimit(maxFrameSize)

	c.sockMu.Lock()
	// Disconnect may have run between Hub.Attach's check and here.
	if c.isClosed() {
		c.sockMu.Unlock()
		_ = closeSocket(ws, websocket.CloseNormalClosure, "session closed")
		return
	}
	old := c.ws
	c.ws = ws
	pending := c.pending
	c.pending = nil
	for _, frame := range pending {
		if err := writeFrame(context.Background(), ws, frame); err != nil {
			c.hub.logger.Warn("failed to flush queued frame", "session_id", c.id, "error", err)
			break
		}
	}
	c.sockMu.Unlock()

	if old != nil {
		closeSocket(old, websocket.CloseNormalClosure, "replaced")
	}
	go c.readPump(ws)
}

func (c *wsConn) readPump(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.socketFailed(ws, err)
			return
		}
		select {
		case c.inbox <- data:
		case <-c.Done():
			return
		}
	}
}

// socketFailed closes the connection if ws is still the live socket.
// Failures on replaced sockets are expected and ignored.
func (c *wsConn) socketFailed(ws *websocket.Conn, err error) {
	c.sockMu.Lock()
	current := c.ws == ws
	c.sockMu.Unlock()
	if !current {
		return
	}
	c.hub.logger.Info("client socket closed", "session_id", c.id, "error", err)
	_ = c.Disconnect(context.Background())
}

func (c *wsConn) Disconnect(ctx context.Context) error {
	handlers, ok := c.markClosed()
	if !ok {
		return nil
	}

	c.sockMu.Lock()
	ws := c.ws
	c.ws = nil
	c.pending = nil
	c.sockMu.Unlock()

	var err error
	if ws != nil {
		err = closeSocket(ws, websocket.CloseNormalClosure, "session closed")
	}
	c.hub.forget(c.id, c)
	runHandlers(handlers)
	return err
}

func closeSocket(ws *websocket.Conn, code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return ws.Close()
}
