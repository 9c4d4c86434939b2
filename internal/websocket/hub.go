package websocket

import (
	"context"
	"log/slog"
)

// Hub manages the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It must be run in a separate goroutine.
func (h *Hub) Run(ctx context.Context) {
	slog.Info("hub started")
	defer slog.Info("hub stopped")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			slog.Debug("client registered", "client", client.id, "remoteAddr", client.conn.RemoteAddr())
		case client := <-h.unregister:
			h.remove(client)
			slog.Debug("client unregistered", "client", client.id, "remoteAddr", client.conn.RemoteAddr())
		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; a no-op after the hub has stopped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// broadcastMessage queues message for every client. A client whose queue is
// full is dropped rather than stalling the others.
func (h *Hub) broadcastMessage(message []byte) {
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			slog.Warn("client too slow, dropping connection", "client", client.id, "remoteAddr", client.conn.RemoteAddr())
			h.remove(client)
		}
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// closeAll ends every client during shutdown.
func (h *Hub) closeAll() {
	for client := range h.clients {
		h.remove(client)
	}
}
