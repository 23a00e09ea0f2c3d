// Package server manages individual WebSocket connections: the read pump
// drives the join/chat lifecycle and the write pump drains outbound frames.
package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client owns one WebSocket connection. It is the only writer on that
// connection, and the registry keys sessions by the *Client pointer, so a
// connection can never hold two sessions at once.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	addr string
	log  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection. The send channel is buffered so one
// slow receiver cannot stall a broadcast to the rest of its room.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, cfg.SendBuffer),
		hub:  hub,
		addr: addr,
		log:  slog.With("client_id", id, "addr", addr),
	}
}

// trySend queues a frame without blocking. It reports false when the client is
// already closed or its buffer is full; the caller treats either as an
// implicit disconnect.
func (c *Client) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// markClosed closes the send channel exactly once. After this no frame can be
// queued and the write pump drains out.
func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// sendError notifies the offending client without touching any shared state.
func (c *Client) sendError(msg string) {
	c.trySend(Encode(Envelope{Type: TypeError, Payload: ErrorPayload{Message: msg}}))
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// handleFrame routes one decoded envelope into the hub. Protocol and ordering
// errors stay local to this connection: the state machine does not move and
// nothing is broadcast.
func (c *Client) handleFrame(raw []byte) {
	env, err := Decode(raw)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			c.log.Debug("rejected frame", "reason", decodeErr.Reason)
			c.sendError(decodeErr.Reason)
			return
		}
		c.log.Warn("rejected frame", "error", err)
		c.sendError("invalid message")
		return
	}

	switch p := env.Payload.(type) {
	case JoinPayload:
		c.hub.handleJoin(c, p)
	case ChatPayload:
		c.hub.handleChat(c, p)
	}
}

func (c *Client) readPump() {
	defer func() {
		// During shutdown the hub loop is gone; close locally instead of
		// blocking on the unregister channel forever.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
			c.markClosed()
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("closing connection in read pump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadEnd(err)
			return
		}
		c.handleFrame(raw)
	}
}

// logReadEnd classifies the error that ended the read loop. Every variant is
// an implicit close; none of them is fatal to the server.
func (c *Client) logReadEnd(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("frame exceeded maximum size, dropping connection")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("client disconnected", "error", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug("connection closed", "error", err)
	default:
		c.log.Warn("read error", "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("closing connection in write pump", "error", err)
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Channel closed by markClosed: say goodbye properly.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Warn("write error", "error", err)
				}
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// isExpectedCloseError reports errors that routinely show up while tearing
// down a connection and are not worth logging loudly.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
