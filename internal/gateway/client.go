package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentdeck/agentdeck/internal/common/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10

	// Maximum control-frame size allowed from the peer.
	maxMessageSize = 64 * 1024

	// Per-client send buffer; overflow drops the client.
	sendBufferSize = 256
)

// controlFrame is what clients send us: subscription management only. All
// real traffic flows daemon-to-client.
type controlFrame struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

// Client is a single WebSocket connection.
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	// subscriptions holds the session IDs this client watches; guarded by
	// the hub's mutex.
	subscriptions map[string]bool

	logger *logger.Logger
}

// NewClient creates a client for an upgraded connection.
func NewClient(id string, conn *websocket.Conn, hub *Hub, log *logger.Logger) *Client {
	return &Client{
		ID:            id,
		conn:          conn,
		hub:           hub,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[string]bool),
		logger:        log.WithFields(zap.String("client_id", id)),
	}
}

// ReadPump consumes control frames until the connection dies.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var frame controlFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.logger.Warn("invalid control frame", zap.Error(err))
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame controlFrame) {
	if frame.SessionID == "" {
		c.logger.Warn("control frame missing session_id", zap.String("action", frame.Action))
		return
	}
	switch frame.Action {
	case "subscribe":
		c.hub.Subscribe(c, frame.SessionID)
	case "unsubscribe":
		c.hub.Unsubscribe(c, frame.SessionID)
	default:
		c.logger.Warn("unknown control action", zap.String("action", frame.Action))
	}
}

// WritePump pushes queued messages and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
