package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// close unregisters the client and closes its connection exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		slog.Debug("closing client connection", "client", c.id, "remoteAddr", c.conn.RemoteAddr())
		c.hub.Unregister(c)
		if err := c.conn.Close(); err != nil {
			// Expected if the other end has already hung up.
			slog.Debug("error while closing client connection", "error", err, "client", c.id)
		}
	})
}

// readPump detects a dead connection via read deadlines. Incoming messages
// are discarded.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(512)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set initial read deadline", "error", err, "client", c.id)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("client read error, triggering disconnect", "error", err, "client", c.id)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				slog.Warn("failed to set write deadline", "error", err, "client", c.id)
				return
			}
			if !ok {
				slog.Debug("hub closed channel, closing connection", "client", c.id)
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("client write error", "error", err, "client", c.id)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("client ping failed", "error", err, "client", c.id)
				return
			}
		}
	}
}
