package websocket

import (
	"context"
	"sync"

	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	Topic string
	Conn  Conn
}

type Message struct {
	Topic   string
	Payload interface{}
}

// Hub fans messages out to every client subscribed to a topic. All writes
// happen on the Run goroutine.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[Conn]bool
	log     logger.Logger
	done    chan struct{}

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Message
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[Conn]bool),
		log:        log,
		done:       make(chan struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Message, 256),
	}
}

func OnboardingTopic(communityID string) string {
	return "onboarding:" + communityID
}

// Publish queues a message. It never blocks; when the queue is full the
// message is dropped.
func (h *Hub) Publish(topic string, payload interface{}) {
	select {
	case h.Broadcast <- Message{Topic: topic, Payload: payload}:
	default:
		h.log.Warn("websocket broadcast queue full, dropping message", map[string]interface{}{"topic": topic})
	}
}

// Join registers client. It reports false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters client. It returns at once if the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.Topic] == nil {
				h.clients[client.Topic] = make(map[Conn]bool)
			}
			h.clients[client.Topic][client.Conn] = true
			h.mu.Unlock()
			h.log.Debug("client registered", map[string]interface{}{"topic": client.Topic})
		case client := <-h.Unregister:
			h.remove(client.Topic, client.Conn)
			h.log.Debug("client unregistered", map[string]interface{}{"topic": client.Topic})
		case msg := <-h.Broadcast:
			h.mu.RLock()
			conns := make([]Conn, 0, len(h.clients[msg.Topic]))
			for conn := range h.clients[msg.Topic] {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			for _, conn := range conns {
				if err := conn.WriteJSON(msg.Payload); err != nil {
					h.log.WithError(err).Warn("error sending message to client", map[string]interface{}{"topic": msg.Topic})
					conn.Close()
					h.remove(msg.Topic, conn)
				}
			}
		}
	}
}

func (h *Hub) remove(topic string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[topic]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.clients, topic)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, set := range h.clients {
		for conn := range set {
			conn.Close()
		}
		delete(h.clients, topic)
	}
}
