// Package gateway pushes daemon events to UI clients over WebSocket.
// Clients subscribe to individual sessions; a client with no subscriptions
// is a firehose and receives everything.
package gateway

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/agentdeck/agentdeck/internal/common/logger"
)

// Hub manages all WebSocket client connections.
type Hub struct {
	clients map[*Client]bool

	// sessionClients maps session ID to its subscribers.
	sessionClients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg

	mu     sync.RWMutex
	logger *logger.Logger
}

type broadcastMsg struct {
	// sessionID scopes delivery; empty means every client.
	sessionID string
	data      []byte
}

// NewHub creates a new WebSocket hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		sessionClients: make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan broadcastMsg, 256),
		logger:         log.WithFields(zap.String("component", "ws-hub")),
	}
}

// Run is the hub's main loop; it exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")
	defer h.logger.Info("websocket hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.sessionClients = make(map[string]map[*Client]bool)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for sessionID := range client.subscriptions {
		if subscribers, ok := h.sessionClients[sessionID]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.sessionClients, sessionID)
			}
		}
	}
	h.logger.Debug("client unregistered", zap.String("client_id", client.ID))
}

// deliver fans a message out to the session's subscribers plus firehose
// clients. A client that cannot keep up is dropped; the UI reconnects and
// refetches state rather than us buffering without bound.
func (h *Hub) deliver(msg broadcastMsg) {
	h.mu.RLock()
	var targets []*Client
	if msg.sessionID == "" {
		for client := range h.clients {
			targets = append(targets, client)
		}
	} else {
		for client := range h.sessionClients[msg.sessionID] {
			targets = append(targets, client)
		}
		for client := range h.clients {
			if len(client.subscriptions) == 0 {
				targets = append(targets, client)
			}
		}
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range targets {
		select {
		case client.send <- msg.data:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		h.logger.Warn("dropping slow websocket client", zap.String("client_id", client.ID))
		h.removeClient(client)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- broadcastMsg{data: data}
}

// BroadcastToSession queues a message for the session's subscribers and the
// firehose clients.
func (h *Hub) BroadcastToSession(sessionID string, data []byte) {
	h.broadcast <- broadcastMsg{sessionID: sessionID, data: data}
}

// Subscribe attaches a client to a session's event stream.
func (h *Hub) Subscribe(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessionClients[sessionID]; !ok {
		h.sessionClients[sessionID] = make(map[*Client]bool)
	}
	h.sessionClients[sessionID][client] = true
	client.subscriptions[sessionID] = true

	h.logger.Debug("client subscribed",
		zap.String("client_id", client.ID),
		zap.String("session_id", sessionID))
}

// Unsubscribe detaches a client from a session's event stream.
func (h *Hub) Unsubscribe(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.subscriptions, sessionID)
	if subscribers, ok := h.sessionClients[sessionID]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.sessionClients, sessionID)
		}
	}
}

// ClientCount returns the number of connected clients. The permission broker
// uses this to detect a headless daemon.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
