package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// InboundHandler receives a text message sent by a client.
type InboundHandler func(client *Client, payload []byte)

// Envelope is the shape of every message written to a client.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	TargetUserId string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// Hub tracks the connections of each user. With redis, messages for a user
// are fanned out to every instance so all of their devices get them.
type Hub struct {
	clients    map[uuid.UUID][]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	rdb     *redis.Client
	inbound InboundHandler
	logger  logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

// OnMessage sets the handler for client messages. Call before Run.
func (h *Hub) OnMessage(handler InboundHandler) {
	h.inbound = handler
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserId] = append(h.clients[client.UserId], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserId})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.UserId]
	for i, c := range clients {
		if c == client {
			h.clients[client.UserId] = append(clients[:i], clients[i+1:]...)
			close(client.send)
			break
		}
	}
	if len(h.clients[client.UserId]) == 0 {
		delete(h.clients, client.UserId)
	}
}

// Send delivers a message to every connection of userId, here and on the
// other instances.
func (h *Hub) Send(userId uuid.UUID, kind string, payload interface{}) {
	data, err := json.Marshal(Envelope{Type: kind, Data: payload})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode message", map[string]interface{}{"error": err.Error()})
		return
	}

	if h.rdb == nil {
		h.deliver(userId, data)
		return
	}

	// Every instance, this one included, delivers from the subscription.
	msg, _ := json.Marshal(clusterMessage{TargetUserId: userId.String(), Message: data})
	if err := h.rdb.Publish(context.Background(), clusterChannel, msg).Err(); err != nil {
		h.logger.Warn("Hub", "Cluster publish failed, delivering locally", map[string]interface{}{"error": err.Error()})
		h.deliver(userId, data)
	}
}

// Connected counts the local connections of userId.
func (h *Hub) Connected(userId uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userId])
}

func (h *Hub) deliver(userId uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[userId]...)
	h.mu.RUnlock()

	for _, client := range clients {
		client.enqueue(data)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	go func() {
		<-ctx.Done()
		_ = pubsub.Close()
	}()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Dropping malformed cluster message", map[string]interface{}{"error": err.Error()})
			continue
		}
		userId, err := uuid.Parse(payload.TargetUserId)
		if err != nil {
			continue
		}
		h.deliver(userId, payload.Message)
	}
}
