package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentdeck/agentdeck/internal/common/logger"
)

// Handler upgrades HTTP requests into gateway connections.
type Handler struct {
	hub      *Hub
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The daemon binds to loopback only; any local origin is fine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes wires the WebSocket endpoints onto the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws", h.Serve)
	router.GET("/ws/session/:id", h.ServeSession)
}

// Serve upgrades a firehose connection: no subscriptions, every event.
// GET /ws
func (h *Handler) Serve(c *gin.Context) {
	h.serve(c, "")
}

// ServeSession upgrades a connection pre-subscribed to one session.
// GET /ws/session/:id
func (h *Handler) ServeSession(c *gin.Context) {
	h.serve(c, c.Param("id"))
}

func (h *Handler) serve(c *gin.Context, sessionID string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), conn, h.hub, h.logger)
	h.hub.Register(client)
	if sessionID != "" {
		h.hub.Subscribe(client, sessionID)
	}

	go client.WritePump()
	go client.ReadPump()
}
