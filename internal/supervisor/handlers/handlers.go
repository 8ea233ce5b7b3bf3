// Package handlers exposes agent process control over HTTP and keeps the
// session rows in sync with the stream.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/session/models"
	"github.com/agentdeck/agentdeck/internal/session/service"
	"github.com/agentdeck/agentdeck/internal/supervisor"
	v1 "github.com/agentdeck/agentdeck/pkg/api/v1"
)

// Handler contains the HTTP handlers for the agent process API.
type Handler struct {
	supervisor *supervisor.Supervisor
	sessions   *service.Service
	logger     *logger.Logger
}

// NewHandler creates a new agent process API handler.
func NewHandler(sup *supervisor.Supervisor, sessions *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		supervisor: sup,
		sessions:   sessions,
		logger:     log,
	}
}

// RegisterRoutes wires the agent process endpoints onto the router group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/session/:id/agent/start", h.StartAgent)
	api.POST("/session/:id/agent/stop", h.StopAgent)
	api.POST("/session/:id/agent/input", h.SendInput)
	api.GET("/session/:id/agent", h.AgentStatus)
	api.GET("/agents", h.ListAgents)
}

// StartAgent launches the agent process for a session.
// POST /api/session/:id/agent/start
func (h *Handler) StartAgent(c *gin.Context) {
	sessionID := c.Param("id")
	var req struct {
		Prompt      string `json:"prompt"`
		Cwd         string `json:"cwd"`
		Resume      bool   `json:"resume"`
		Profile     string `json:"profile"`
		Interactive bool   `json:"interactive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(apperrors.GetHTTPStatus(err), v1.Err(err.Error()))
		return
	}

	cwd := req.Cwd
	if cwd == "" {
		cwd = session.Cwd
	}
	resumeID := ""
	if req.Resume {
		resumeID = session.ClaudeSessionID
	}

	err = h.supervisor.Start(c.Request.Context(), supervisor.StartOptions{
		SessionID:   sessionID,
		Prompt:      req.Prompt,
		Cwd:         cwd,
		ResumeID:    resumeID,
		Profile:     req.Profile,
		Interactive: req.Interactive,
	})
	if err != nil {
		h.logger.Error("failed to start agent",
			zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(apperrors.GetHTTPStatus(err), v1.Err(err.Error()))
		return
	}

	if err := h.sessions.SetStatus(c.Request.Context(), sessionID, models.StatusBusy); err != nil {
		h.logger.Error("failed to mark session busy",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	c.JSON(http.StatusOK, v1.OK(gin.H{"session_id": sessionID, "running": true}))
}

// StopAgent requests a cooperative stop.
// POST /api/session/:id/agent/stop
func (h *Handler) StopAgent(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.supervisor.Stop(c.Request.Context(), sessionID); err != nil {
		c.JSON(apperrors.GetHTTPStatus(err), v1.Err(err.Error()))
		return
	}
	c.JSON(http.StatusOK, v1.OK(gin.H{"session_id": sessionID, "running": false}))
}

// SendInput delivers a user message to a running interactive agent.
// POST /api/session/:id/agent/input
func (h *Handler) SendInput(c *gin.Context) {
	sessionID := c.Param("id")
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, v1.Err("message is required"))
		return
	}
	if err := h.supervisor.SendInput(c.Request.Context(), sessionID, req.Message); err != nil {
		c.JSON(apperrors.GetHTTPStatus(err), v1.Err(err.Error()))
		return
	}
	c.JSON(http.StatusOK, v1.OK(nil))
}

// AgentStatus reports whether the session has a live agent process.
// GET /api/session/:id/agent
func (h *Handler) AgentStatus(c *gin.Context) {
	c.JSON(http.StatusOK, v1.OK(gin.H{
		"running": h.supervisor.IsRunning(c.Param("id")),
	}))
}

// ListAgents returns the session IDs with running agent processes.
// GET /api/agents
func (h *Handler) ListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, v1.OK(h.supervisor.ListRunning()))
}
