package gateway

import (
	"time"

	"collab-server/internal/models"
	"collab-server/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// identity is the connection-scoped context recorded once at user-join. It is
// the only place disconnect can recover who was connected and where, since
// the disconnect carries no payload. Written and read exclusively from the
// connection's read goroutine.
type identity struct {
	userID   string
	userData models.UserData
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	socketID string
	// authUserID comes from the verified handshake token.
	authUserID string
	// roomID is set when the client joins its room channel.
	roomID string
	// identity is nil until user-join.
	identity *identity
}

func NewClient(hub *Hub, conn *websocket.Conn, authUserID string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		socketID:   uuid.NewString(),
		authUserID: authUserID,
	}
}

func (c *Client) SocketID() string {
	return c.socketID
}

// Send queues an envelope for delivery to this connection. Frames for slow
// consumers are dropped, matching the fire-and-forget relay semantics.
func (c *Client) Send(env models.Envelope) {
	data, err := env.Encode()
	if err != nil {
		logger.Error("Error encoding %s event: %v", env.Event, err)
		return
	}
	select {
	case c.send <- data:
	default:
		logger.Debug("Dropped %s frame for slow socket %s", env.Event, c.socketID)
	}
}

// ReadPump drains inbound frames and dispatches them. Disconnect cleanup runs
// here regardless of whether the peer said goodbye.
func (c *Client) ReadPump(g *Gateway) {
	defer func() {
		g.HandleDisconnect(c)
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on socket %s: %v", c.socketID, err)
			}
			break
		}

		if err := g.HandleEvent(c, message); err != nil {
			// Validation failures are local to the offending connection; no
			// state was mutated and peers saw nothing.
			logger.Error("Error handling event from socket %s: %v", c.socketID, err)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error on socket %s: %v", c.socketID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
