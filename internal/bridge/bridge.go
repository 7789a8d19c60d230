// Package bridge serves the inspection event channel over websockets.
// Outbound lifecycle events are broadcast to every connected inspector UI;
// inbound control messages are dispatched to a registered handler.
package bridge

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gqlscope/internal/audit"
	"gqlscope/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Local debugging surface, any origin may connect
	},
}

// ControlHandler receives one inbound control message. reply writes a
// message back to the connection the control arrived on.
type ControlHandler func(msg protocol.Message, reply func(protocol.Message) error)

// Bridge is a websocket hub. It implements the orchestrator's Sink.
type Bridge struct {
	logger  *slog.Logger
	session string

	mu    sync.RWMutex
	conns map[string]*connection

	handlerMu sync.RWMutex
	handler   ControlHandler

	trail *audit.Trail
}

type connection struct {
	id         string
	ws         *websocket.Conn
	remoteAddr string
	writeMu    sync.Mutex
}

func (c *connection) send(msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

// New creates a bridge. session identifies this inspector run in the
// audit trail.
func New(logger *slog.Logger, session string) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		logger:  logger.With("component", "bridge"),
		session: session,
		conns:   make(map[string]*connection),
	}
}

// SetControlHandler registers the receiver for inbound control messages.
func (b *Bridge) SetControlHandler(handler ControlHandler) {
	b.handlerMu.Lock()
	b.handler = handler
	b.handlerMu.Unlock()
}

// SetTrail enables audit recording of connects and disconnects.
func (b *Bridge) SetTrail(trail *audit.Trail) {
	b.trail = trail
}

// ServeHTTP upgrades the request and runs the connection's read loop.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	conn := &connection{
		id:         uuid.NewString(),
		ws:         ws,
		remoteAddr: ws.RemoteAddr().String(),
	}

	b.mu.Lock()
	b.conns[conn.id] = conn
	b.mu.Unlock()

	b.logger.Info("inspector connected", "conn", conn.id, "remote", conn.remoteAddr)
	if b.trail != nil {
		b.trail.Record(b.session, "connect", conn.id, conn.remoteAddr, true)
	}

	b.readLoop(conn)

	b.mu.Lock()
	delete(b.conns, conn.id)
	b.mu.Unlock()

	b.logger.Info("inspector disconnected", "conn", conn.id)
	if b.trail != nil {
		b.trail.Record(b.session, "disconnect", conn.id, conn.remoteAddr, true)
	}
}

func (b *Bridge) readLoop(conn *connection) {
	for {
		var msg protocol.Message
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Warn("websocket read error", "conn", conn.id, "error", err)
			}
			return
		}

		b.handlerMu.RLock()
		handler := b.handler
		b.handlerMu.RUnlock()
		if handler == nil {
			b.logger.Debug("control message dropped, no handler", "type", msg.Type)
			continue
		}
		handler(msg, conn.send)
	}
}

// Publish broadcasts one message to every connected inspector. Connections
// that fail the write are closed and removed.
func (b *Bridge) Publish(msg protocol.Message) {
	b.mu.RLock()
	conns := make([]*connection, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(msg); err != nil {
			b.logger.Warn("dropping connection after write failure", "conn", c.id, "error", err)
			c.ws.Close()
			b.mu.Lock()
			delete(b.conns, c.id)
			b.mu.Unlock()
		}
	}
}

// ConnectionCount returns the number of connected inspectors.
func (b *Bridge) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Close disconnects every inspector.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.conns {
		c.ws.Close()
		delete(b.conns, id)
	}
}
