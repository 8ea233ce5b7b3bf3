// Package handlers exposes the collaborator store over HTTP.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/session/models"
	"github.com/agentdeck/agentdeck/internal/session/service"
	"github.com/agentdeck/agentdeck/internal/session/store"
	v1 "github.com/agentdeck/agentdeck/pkg/api/v1"
)

// Handler contains the HTTP handlers for workspaces, sessions, the inbox,
// and diff comments.
type Handler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewHandler creates a new collaborator API handler.
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  log,
	}
}

// RegisterRoutes wires the collaborator endpoints onto the router group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/workspaces", h.ListWorkspaces)
	api.POST("/workspaces", h.CreateWorkspace)
	api.DELETE("/workspaces/:id", h.DeleteWorkspace)

	api.GET("/sessions", h.ListSessions)
	api.POST("/sessions", h.CreateSession)
	api.GET("/session/:id", h.GetSession)
	api.PATCH("/session/:id", h.UpdateSession)
	api.DELETE("/session/:id", h.DeleteSession)
	api.POST("/session/:id/status", h.SetStatus)
	api.POST("/session/:id/message", h.DeliverMessage)
	api.POST("/session/:id/messages/read", h.MarkSessionMessagesRead)

	api.GET("/inbox", h.ListInbox)
	api.POST("/inbox/:id/read", h.MarkInboxRead)
	api.POST("/inbox/:id/unread", h.MarkInboxUnread)
	api.DELETE("/inbox/:id", h.DeleteInboxMessage)
	api.DELETE("/inbox", h.ClearInbox)

	api.GET("/session/:id/comments", h.ListComments)
	api.POST("/session/:id/comments", h.CreateComment)
	api.POST("/session/:id/comments/:commentID/reply", h.ReplyToComment)
	api.POST("/session/:id/comments/:commentID/resolve", h.ResolveComment)
	api.DELETE("/comments/:id", h.DeleteComment)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	c.JSON(apperrors.GetHTTPStatus(err), v1.Err(err.Error()))
}

// Workspaces

// ListWorkspaces returns all workspaces.
// GET /api/workspaces
func (h *Handler) ListWorkspaces(c *gin.Context) {
	workspaces, err := h.service.ListWorkspaces(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list workspaces", zap.Error(err))
		h.respondError(c, err)
		return
	}
	out := make([]v1.Workspace, 0, len(workspaces))
	for _, ws := range workspaces {
		out = append(out, workspaceToAPI(ws))
	}
	c.JSON(http.StatusOK, v1.OK(out))
}

// CreateWorkspace creates a workspace.
// POST /api/workspaces
func (h *Handler) CreateWorkspace(c *gin.Context) {
	var req struct {
		Name         string `json:"name"`
		Folder       string `json:"folder"`
		ScriptPath   string `json:"script_path"`
		OriginBranch string `json:"origin_branch"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}
	ws := &models.Workspace{
		Name:         req.Name,
		Folder:       req.Folder,
		ScriptPath:   req.ScriptPath,
		OriginBranch: req.OriginBranch,
	}
	if err := h.service.CreateWorkspace(c.Request.Context(), ws); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(workspaceToAPI(ws)))
}

// DeleteWorkspace removes a workspace.
// DELETE /api/workspaces/:id
func (h *Handler) DeleteWorkspace(c *gin.Context) {
	if err := h.service.DeleteWorkspace(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(nil))
}

// Sessions

// ListSessions returns all sessions.
// GET /api/sessions
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.service.ListSessions(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		h.respondError(c, err)
		return
	}
	out := make([]v1.Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionToAPI(s))
	}
	c.JSON(http.StatusOK, v1.OK(out))
}

// CreateSession creates a session.
// POST /api/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		Name         string `json:"name"`
		Cwd          string `json:"cwd"`
		WorkspaceID  string `json:"workspace_id"`
		WorktreeName string `json:"worktree_name"`
		BaseCommit   string `json:"base_commit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}
	session := &models.Session{
		Name:         req.Name,
		Cwd:          req.Cwd,
		WorkspaceID:  req.WorkspaceID,
		WorktreeName: req.WorktreeName,
		BaseCommit:   req.BaseCommit,
	}
	if err := h.service.CreateSession(c.Request.Context(), session); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(sessionToAPI(session)))
}

// GetSession returns one session.
// GET /api/session/:id
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(sessionToAPI(session)))
}

// UpdateSession applies a partial update.
// PATCH /api/session/:id
func (h *Handler) UpdateSession(c *gin.Context) {
	var req struct {
		Name            *string `json:"name"`
		Cwd             *string `json:"cwd"`
		BaseCommit      *string `json:"base_commit"`
		ClaudeSessionID *string `json:"claude_session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}
	session, err := h.service.UpdateSession(c.Request.Context(), c.Param("id"), store.SessionUpdate{
		Name:            req.Name,
		Cwd:             req.Cwd,
		BaseCommit:      req.BaseCommit,
		ClaudeSessionID: req.ClaudeSessionID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(sessionToAPI(session)))
}

// DeleteSession removes a session and everything attached to it.
// DELETE /api/session/:id
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.service.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(nil))
}

// SetStatus flips a session between ready and busy.
// POST /api/session/:id/status
func (h *Handler) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}
	if err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(gin.H{"status": req.Status}))
}

// DeliverMessage adds an agent message to the approver's inbox.
// POST /api/session/:id/message
func (h *Handler) DeliverMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}
	msg, err := h.service.DeliverMessage(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(inboxToAPI(msg)))
}

// Inbox

// ListInbox returns all inbox messages, newest first.
// GET /api/inbox
func (h *Handler) ListInbox(c *gin.Context) {
	messages, err := h.service.ListInbox(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list inbox", zap.Error(err))
		h.respondError(c, err)
		return
	}
	out := make([]v1.InboxMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, inboxToAPI(msg))
	}
	c.JSON(http.StatusOK, v1.OK(out))
}

// MarkInboxRead marks one message read.
// POST /api/inbox/:id/read
func (h *Handler) MarkInboxRead(c *gin.Context) {
	if err := h.service.MarkInboxRead(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(nil))
}

// MarkInboxUnread marks one message unread again.
// POST /api/inbox/:id/unread
func (h *Handler) MarkInboxUnread(c *gin.Context) {
	if err := h.service.MarkInboxUnread(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(nil))
}

// MarkSessionMessagesRead marks every message for a session read.
// POST /api/session/:id/messages/read
func (h *Handler) MarkSessionMessagesRead(c *gin.Context) {
	if err := h.service.MarkSessionMessagesRead(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(nil))
}

// DeleteInboxMessage removes one message.
// DELETE /api/inbox/:id
func (h *Handler) DeleteInboxMessage(c *gin.Context) {
	if err := h.service.DeleteInboxMessage(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(nil))
}

// ClearInbox removes every message.
// DELETE /api/inbox
func (h *Handler) ClearInbox(c *gin.Context) {
	if err := h.service.ClearInbox(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(nil))
}

// Comments

// ListComments returns a session's comments, optionally filtered by status.
// GET /api/session/:id/comments?status=
func (h *Handler) ListComments(c *gin.Context) {
	comments, err := h.service.ListComments(c.Request.Context(), c.Param("id"), c.Query("status"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]v1.DiffComment, 0, len(comments))
	for _, comment := range comments {
		out = append(out, commentToAPI(comment))
	}
	c.JSON(http.StatusOK, v1.OK(out))
}

// CreateComment adds a review comment to a session.
// POST /api/session/:id/comments
func (h *Handler) CreateComment(c *gin.Context) {
	var req struct {
		FilePath   string `json:"file_path"`
		LineNumber *int   `json:"line_number"`
		LineType   string `json:"line_type"`
		Author     string `json:"author"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}
	comment := &models.DiffComment{
		SessionID:  c.Param("id"),
		FilePath:   req.FilePath,
		LineNumber: req.LineNumber,
		LineType:   req.LineType,
		Author:     req.Author,
		Content:    req.Content,
	}
	if err := h.service.CreateComment(c.Request.Context(), comment); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(commentToAPI(comment)))
}

// ReplyToComment threads a reply under an existing comment.
// POST /api/session/:id/comments/:commentID/reply
func (h *Handler) ReplyToComment(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Err(err.Error()))
		return
	}
	reply, err := h.service.ReplyToComment(c.Request.Context(), c.Param("id"), c.Param("commentID"), req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(commentToAPI(reply)))
}

// ResolveComment marks a comment resolved.
// POST /api/session/:id/comments/:commentID/resolve
func (h *Handler) ResolveComment(c *gin.Context) {
	var req struct {
		ResolutionNote string `json:"resolution_note"`
	}
	// The body is optional.
	_ = c.ShouldBindJSON(&req)

	comment, err := h.service.ResolveComment(c.Request.Context(), c.Param("id"), c.Param("commentID"), req.ResolutionNote)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(commentToAPI(comment)))
}

// DeleteComment removes a comment.
// DELETE /api/comments/:id
func (h *Handler) DeleteComment(c *gin.Context) {
	if err := h.service.DeleteComment(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.OK(nil))
}

// Conversions

func workspaceToAPI(ws *models.Workspace) v1.Workspace {
	return v1.Workspace{
		ID:           ws.ID,
		Name:         ws.Name,
		Folder:       ws.Folder,
		ScriptPath:   ws.ScriptPath,
		OriginBranch: ws.OriginBranch,
		CreatedAt:    ws.CreatedAt,
	}
}

func sessionToAPI(s *models.Session) v1.Session {
	return v1.Session{
		ID:              s.ID,
		Name:            s.Name,
		Cwd:             s.Cwd,
		WorkspaceID:     s.WorkspaceID,
		WorktreeName:    s.WorktreeName,
		Status:          s.Status,
		BaseCommit:      s.BaseCommit,
		ClaudeSessionID: s.ClaudeSessionID,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func inboxToAPI(msg *models.InboxMessage) v1.InboxMessage {
	return v1.InboxMessage{
		ID:          msg.ID,
		SessionID:   msg.SessionID,
		SessionName: msg.SessionName,
		Message:     msg.Message,
		CreatedAt:   msg.CreatedAt,
		ReadAt:      msg.ReadAt,
		FirstReadAt: msg.FirstReadAt,
	}
}

func commentToAPI(comment *models.DiffComment) v1.DiffComment {
	return v1.DiffComment{
		ID:             comment.ID,
		SessionID:      comment.SessionID,
		FilePath:       comment.FilePath,
		LineNumber:     comment.LineNumber,
		LineType:       comment.LineType,
		Author:         comment.Author,
		Content:        comment.Content,
		Status:         comment.Status,
		ParentID:       comment.ParentID,
		ResolutionNote: comment.ResolutionNote,
		CreatedAt:      comment.CreatedAt,
		UpdatedAt:      comment.UpdatedAt,
	}
}
