package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	UserId uuid.UUID

	send      chan []byte
	closeOnce sync.Once
}

// Emit writes a message to this connection only.
func (c *Client) Emit(kind string, payload interface{}) error {
	data, err := json.Marshal(Envelope{Type: kind, Data: payload})
	if err != nil {
		return err
	}
	if !c.enqueue(data) {
		return websocket.ErrCloseSent
	}
	return nil
}

// enqueue drops the connection when its buffer is full; a client that slow
// would only see a truncated stream anyway.
func (c *Client) enqueue(data []byte) (ok bool) {
	defer func() {
		// send is closed once the hub has removed the client.
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		c.Hub.logger.Warn("Hub", "Client buffer full, dropping connection", map[string]interface{}{"user_id": c.UserId})
		c.leave()
		return false
	}
}

func (c *Client) leave() {
	c.closeOnce.Do(func() {
		go func() { c.Hub.unregister <- c }()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.leave()
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Hub", "Connection closed unexpectedly", map[string]interface{}{"user_id": c.UserId, "error": err.Error()})
			}
			return
		}
		if kind == websocket.TextMessage && c.Hub.inbound != nil {
			c.Hub.inbound(c, payload)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One JSON document per websocket message so clients can parse each frame.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
