// Package handlers exposes the permission broker over HTTP.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/permission"
	v1 "github.com/agentdeck/agentdeck/pkg/api/v1"
)

// Handler contains the HTTP handlers for the permission API.
type Handler struct {
	broker *permission.Broker
	logger *logger.Logger
}

// NewHandler creates a new permission API handler.
func NewHandler(broker *permission.Broker, log *logger.Logger) *Handler {
	return &Handler{
		broker: broker,
		logger: log,
	}
}

// RegisterRoutes wires the permission endpoints onto the router group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/permissions/request", h.RequestPermission)
	api.POST("/permissions/respond", h.RespondPermission)
	api.POST("/session/:id/permissions/request", h.RequestPermission)
	// Legacy hook path, kept for sidecars built against the original daemon.
	api.POST("/session/:id/permission-request", h.RequestPermission)
	api.GET("/session/:id/permissions", h.ListPending)
}

// RequestPermission parks the caller until the request resolves.
// POST /api/permissions/request
// POST /api/session/:id/permissions/request
// POST /api/session/:id/permission-request
func (h *Handler) RequestPermission(c *gin.Context) {
	var req v1.PermissionRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}

	// The path parameter wins over the body when both are present.
	if id := c.Param("id"); id != "" {
		req.SessionID = id
	}
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, v1.Err("session_id is required"))
		return
	}
	if req.ToolName == "" {
		c.JSON(http.StatusBadRequest, v1.Err("tool_name is required"))
		return
	}

	decision, err := h.broker.Await(c.Request.Context(), permission.AwaitParams{
		SessionID:   req.SessionID,
		ToolName:    req.ToolName,
		ToolInput:   req.ToolInput,
		ToolUseID:   req.ToolUseID,
		Description: req.Description,
	})
	if err != nil {
		status := apperrors.GetHTTPStatus(err)
		h.logger.Info("permission request ended without decision",
			zap.String("session_id", req.SessionID),
			zap.String("tool_name", req.ToolName),
			zap.Int("status", status),
			zap.Error(err))
		c.JSON(status, v1.Err(err.Error()))
		return
	}

	if decision.AutoAllowed {
		trace.SpanFromContext(c.Request.Context()).
			SetAttributes(attribute.Bool("permission.auto_allowed", true))
	}

	c.JSON(http.StatusOK, v1.OK(v1.PermissionDecision{
		Behavior:    decision.Behavior,
		Message:     decision.Message,
		Interrupt:   decision.Interrupt,
		AlwaysAllow: decision.AlwaysAllow,
	}))
}

// RespondPermission resolves a pending request.
// POST /api/permissions/respond
func (h *Handler) RespondPermission(c *gin.Context) {
	var req v1.PermissionRespondBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}
	if req.RequestID == "" {
		c.JSON(http.StatusBadRequest, v1.Err("request_id is required"))
		return
	}

	err := h.broker.Resolve(c.Request.Context(), permission.Response{
		RequestID:   req.RequestID,
		Behavior:    strings.ToLower(req.Behavior),
		Message:     req.Message,
		AlwaysAllow: req.AlwaysAllow,
	})
	if err != nil {
		c.JSON(apperrors.GetHTTPStatus(err), v1.Err(err.Error()))
		return
	}

	c.JSON(http.StatusOK, v1.OK(gin.H{"request_id": req.RequestID}))
}

// ListPending returns the pending permission requests for a session.
// GET /api/session/:id/permissions
func (h *Handler) ListPending(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, v1.Err("session id is required"))
		return
	}

	pending := h.broker.PendingForSession(sessionID)
	if pending == nil {
		pending = []permission.Request{}
	}
	c.JSON(http.StatusOK, v1.OK(pending))
}
