package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs registers the connection and blocks until it closes.
func ServeWs(hub *Hub, conn *websocket.Conn, userId uuid.UUID) {
	client := &Client{Hub: hub, Conn: conn, UserId: userId, send: make(chan []byte, 256)}
	hub.register <- client

	go client.writePump()
	client.readPump()
}
