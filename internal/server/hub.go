// Package server coordinates connection registration, the room join/chat
// choreography, and connection cleanup via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Hub owns the session registry and drives the cross-connection interactions.
// Connection handlers call into it from their own goroutines; the registry's
// lock serializes membership mutations against broadcast snapshots.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	register    chan *Client
	unregister  chan *Client
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}

	// clientsMu guards clients, the set of live connections including ones
	// that have not joined a room yet. The registry only knows joined ones.
	clientsMu sync.Mutex
	clients   map[*Client]struct{}
}

// NewHub creates a hub with an empty registry, ready to accept connections.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	return &Hub{
		registry:    registry,
		broadcaster: NewBroadcaster(registry),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		clients:     make(map[*Client]struct{}),
	}
}

var hub = NewHub()

// Registry exposes the hub's session registry, mainly for tests that assert
// membership after a sequence of joins and closes.
func (h *Hub) Registry() *Registry { return h.registry }

// Register hands a new connection to the hub, which launches its pumps.
func (h *Hub) Register(c *Client) { h.register <- c }

// Run is the hub's accept/cleanup loop. It launches the pump goroutines for
// new connections and tears sessions down when connections go away. Run it in
// its own goroutine; it returns only on shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			if c == nil {
				slog.Warn("nil client registration, skipping")
				continue
			}
			slog.Info("client connected", "client_id", c.id, "addr", c.addr)

			h.clientsMu.Lock()
			h.clients[c] = struct{}{}
			h.clientsMu.Unlock()

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				c.writePump()
			}()
			go func() {
				defer h.wg.Done()
				c.readPump()
			}()

		case c := <-h.unregister:
			h.drop(c)
		}
	}
}

// handleJoin moves a connection from idle to active. The joiner gets the full
// roster including itself; the rest of the room is told a user joined. A
// re-join replaces the old session first, and if it pointed at a different
// room that room is told the user left.
func (h *Hub) handleJoin(c *Client, p JoinPayload) {
	replaced := h.registry.Upsert(c, p.RoomID, p.UserName)
	if replaced != nil && replaced.Room != p.RoomID {
		h.broadcastRoom(replaced.Room, Envelope{
			Type:    TypeUserLeft,
			Payload: UserEventPayload{UserName: replaced.Name},
		}, nil)
	}

	c.log.Info("joined room", "room", p.RoomID, "name", p.UserName)

	if !c.trySend(Encode(Envelope{
		Type:    TypeUserList,
		Payload: UserListPayload{Users: h.registry.Roster(p.RoomID)},
	})) {
		h.drop(c)
		return
	}

	h.broadcastRoom(p.RoomID, Envelope{
		Type:    TypeUserJoined,
		Payload: UserEventPayload{UserName: p.UserName},
	}, c)
}

// handleChat relays a chat line to the sender's whole room, sender included,
// stamped with the display name stored at join time. A chat from a connection
// that never joined answers with an error envelope and touches nothing.
func (h *Hub) handleChat(c *Client, p ChatPayload) {
	s := h.registry.Find(c)
	if s == nil {
		c.log.Debug("chat before join, dropping")
		c.sendError("join a room before sending chat messages")
		return
	}

	h.broadcastRoom(s.Room, Envelope{
		Type:    TypeChat,
		Payload: ChatPayload{UserName: s.Name, Message: p.Message},
	}, nil)
}

// broadcastRoom fans out and de-registers any member whose send failed, which
// in turn announces that member's departure. Each drop removes a member, so
// the chain always terminates.
func (h *Hub) broadcastRoom(roomID string, env Envelope, exclude *Client) {
	for _, failed := range h.broadcaster.Broadcast(roomID, env, exclude) {
		failed.log.Warn("send failed, treating as disconnect")
		h.drop(failed)
	}
}

// drop de-registers a connection and announces the departure to its room, if
// it had joined one. Safe to call from any goroutine and any number of times;
// only the call that actually removed the session broadcasts.
func (h *Hub) drop(c *Client) {
	if c == nil {
		return
	}
	h.clientsMu.Lock()
	delete(h.clients, c)
	h.clientsMu.Unlock()

	s := h.registry.Remove(c)
	c.markClosed()

	if s == nil {
		return
	}
	c.log.Info("left room", "room", s.Room, "name", s.Name)
	h.broadcastRoom(s.Room, Envelope{
		Type:    TypeUserLeft,
		Payload: UserEventPayload{UserName: s.Name},
	}, nil)
}

// closeAll tears down every live connection during shutdown.
func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.Unlock()

	slog.Info("closing all client connections", "count", len(clients))

	for _, c := range clients {
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				c.log.Warn("closing connection during shutdown", "error", err)
			}
		}
		c.markClosed()
	}
}

// Shutdown stops the hub and waits for the pump goroutines to finish, bounded
// by the timeout. It returns context.DeadlineExceeded if they do not.
func (h *Hub) Shutdown(timeout time.Duration) error {
	slog.Info("hub shutting down")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		slog.Info("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		slog.Warn("hub shutdown timed out")
		return context.DeadlineExceeded
	}
}
