package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sendBuffer = 64

// Hub fans engine events out to websocket observers of a session.
// Payloads are read-only JSON snapshots; slow clients are skipped
// rather than blocking the publisher. With Redis configured, events are
// also relayed across processes via pub/sub; relayed messages carry the
// origin hub's id so a hub never re-delivers its own broadcasts.
type Hub struct {
	id      string
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type relayEnvelope struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

type Client struct {
	SessionID string
	Send      chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.relayRedis()
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	close(client.Send)
}

func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.redis != nil {
		body, err := json.Marshal(relayEnvelope{Origin: h.id, Data: payload})
		if err == nil {
			err = h.redis.Publish(context.Background(), liveChannel(sessionID), body).Err()
		}
		if err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[sessionID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) relayRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "tracking:*:live")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env relayEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Printf("relay decode error: %v", err)
			continue
		}
		if env.Origin == h.id {
			continue
		}
		h.deliver(sessionIDFromChannel(msg.Channel), env.Data)
	}
}

func liveChannel(sessionID string) string {
	return "tracking:" + sessionID + ":live"
}

func sessionIDFromChannel(ch string) string {
	// tracking:{session}:live
	const prefix = "tracking:"
	const suffix = ":live"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
