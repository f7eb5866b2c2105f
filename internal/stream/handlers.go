package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes exposes the live session feed. Observers receive the
// engine's event payloads verbatim; client messages are drained and
// ignored.
func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("sessionID"))
		defer hub.Unregister(client)

		done := make(chan struct{})
		go writePump(c, client, done)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		<-done
	}))
}

func writePump(c *websocket.Conn, client *Client, done chan struct{}) {
	defer close(done)
	for msg := range client.Send {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
