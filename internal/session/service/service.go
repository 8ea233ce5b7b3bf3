// Package service is the bus-aware layer over the collaborator store: writes
// that the approver UI should see immediately also publish events.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/events"
	"github.com/agentdeck/agentdeck/internal/events/bus"
	"github.com/agentdeck/agentdeck/internal/session/models"
	"github.com/agentdeck/agentdeck/internal/session/store"
)

// Service wraps the repository with validation and event publication.
type Service struct {
	repo   *store.Repository
	bus    bus.EventBus
	logger *logger.Logger
}

// NewService creates a Service.
func NewService(repo *store.Repository, eventBus bus.EventBus, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    eventBus,
		logger: log,
	}
}

// Workspaces

func (s *Service) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	if ws.Name == "" {
		return apperrors.BadRequest("name is required")
	}
	if ws.Folder == "" {
		return apperrors.BadRequest("folder is required")
	}
	return s.repo.CreateWorkspace(ctx, ws)
}

func (s *Service) ListWorkspaces(ctx context.Context) ([]*models.Workspace, error) {
	return s.repo.ListWorkspaces(ctx)
}

func (s *Service) DeleteWorkspace(ctx context.Context, id string) error {
	return s.repo.DeleteWorkspace(ctx, id)
}

// Sessions

func (s *Service) CreateSession(ctx context.Context, session *models.Session) error {
	if session.Name == "" {
		return apperrors.BadRequest("name is required")
	}
	if session.Cwd == "" {
		return apperrors.BadRequest("cwd is required")
	}
	return s.repo.CreateSession(ctx, session)
}

func (s *Service) ListSessions(ctx context.Context) ([]*models.Session, error) {
	return s.repo.ListSessions(ctx)
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.repo.GetSession(ctx, id)
}

func (s *Service) UpdateSession(ctx context.Context, id string, update store.SessionUpdate) (*models.Session, error) {
	return s.repo.UpdateSession(ctx, id, update)
}

// DeleteSession removes the session; its inbox messages and comments cascade.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.repo.GetSession(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteSession(ctx, id)
}

// SetStatus flips the session between ready and busy and publishes the
// transition.
func (s *Service) SetStatus(ctx context.Context, id, status string) error {
	if status != models.StatusReady && status != models.StatusBusy {
		return apperrors.BadRequest("status must be 'ready' or 'busy'")
	}
	if err := s.repo.UpdateSessionStatus(ctx, id, status); err != nil {
		return err
	}
	s.publishStatus(ctx, id, status)
	return nil
}

// RecordClaudeSessionID stores the agent's stream session ID so a later
// start can resume the conversation.
func (s *Service) RecordClaudeSessionID(ctx context.Context, id, claudeSessionID string) error {
	_, err := s.repo.UpdateSession(ctx, id, store.SessionUpdate{ClaudeSessionID: &claudeSessionID})
	return err
}

// DeliverMessage inserts an inbox row for the session and flips it to ready:
// an agent that leaves a message for the approver is done with its turn.
func (s *Service) DeliverMessage(ctx context.Context, sessionID, text string) (*models.InboxMessage, error) {
	if text == "" {
		return nil, apperrors.BadRequest("message is required")
	}
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	msg, err := s.repo.CreateInboxMessage(ctx, sessionID, text)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSessionStatus(ctx, sessionID, models.StatusReady); err != nil {
		s.logger.Error("failed to flip session ready on inbox delivery",
			zap.String("session_id", sessionID), zap.Error(err))
	} else {
		s.publishStatus(ctx, sessionID, models.StatusReady)
	}

	event := bus.NewEvent(events.InboxMessageAdded, "session-service", map[string]interface{}{
		"session_id":   sessionID,
		"message_id":   msg.ID,
		"message":      msg.Message,
		"session_name": msg.SessionName,
	})
	if err := s.bus.Publish(ctx, events.BuildInboxMessageSubject(sessionID), event); err != nil {
		s.logger.Error("failed to publish inbox message event",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	return msg, nil
}

// Inbox

func (s *Service) ListInbox(ctx context.Context) ([]*models.InboxMessage, error) {
	return s.repo.ListInbox(ctx)
}

func (s *Service) MarkInboxRead(ctx context.Context, id string) error {
	return s.repo.MarkInboxRead(ctx, id)
}

func (s *Service) MarkInboxUnread(ctx context.Context, id string) error {
	return s.repo.MarkInboxUnread(ctx, id)
}

func (s *Service) MarkSessionMessagesRead(ctx context.Context, sessionID string) error {
	return s.repo.MarkSessionMessagesRead(ctx, sessionID)
}

func (s *Service) DeleteInboxMessage(ctx context.Context, id string) error {
	return s.repo.DeleteInboxMessage(ctx, id)
}

func (s *Service) ClearInbox(ctx context.Context) error {
	return s.repo.ClearInbox(ctx)
}

// Comments

func (s *Service) CreateComment(ctx context.Context, comment *models.DiffComment) error {
	if comment.FilePath == "" {
		return apperrors.BadRequest("file_path is required")
	}
	if comment.Content == "" {
		return apperrors.BadRequest("content is required")
	}
	if _, err := s.repo.GetSession(ctx, comment.SessionID); err != nil {
		return err
	}
	return s.repo.CreateComment(ctx, comment)
}

func (s *Service) ListComments(ctx context.Context, sessionID, status string) ([]*models.DiffComment, error) {
	return s.repo.ListComments(ctx, sessionID, status)
}

// ReplyToComment threads a reply under a comment. The reply copies the
// parent's file and line coordinates; the session name is the author since
// replies come from the agent's side of the review.
func (s *Service) ReplyToComment(ctx context.Context, sessionID, commentID, message string) (*models.DiffComment, error) {
	if message == "" {
		return nil, apperrors.BadRequest("message is required")
	}
	parent, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if parent.SessionID != sessionID {
		return nil, apperrors.NotFound(fmt.Sprintf("comment %s not found in session %s", commentID, sessionID))
	}
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	reply := &models.DiffComment{
		SessionID:  parent.SessionID,
		FilePath:   parent.FilePath,
		LineNumber: parent.LineNumber,
		LineType:   parent.LineType,
		Author:     session.Name,
		Content:    message,
		ParentID:   parent.ID,
	}
	if err := s.repo.CreateComment(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// ResolveComment marks the comment resolved with an optional note.
func (s *Service) ResolveComment(ctx context.Context, sessionID, commentID, note string) (*models.DiffComment, error) {
	comment, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.SessionID != sessionID {
		return nil, apperrors.NotFound(fmt.Sprintf("comment %s not found in session %s", commentID, sessionID))
	}
	if err := s.repo.ResolveComment(ctx, commentID, note); err != nil {
		return nil, err
	}
	return s.repo.GetComment(ctx, commentID)
}

func (s *Service) DeleteComment(ctx context.Context, id string) error {
	return s.repo.DeleteComment(ctx, id)
}

func (s *Service) publishStatus(ctx context.Context, sessionID, status string) {
	event := bus.NewEvent(events.SessionStatus, "session-service", map[string]interface{}{
		"session_id": sessionID,
		"status":     status,
	})
	if err := s.bus.Publish(ctx, events.BuildSessionStatusSubject(sessionID), event); err != nil {
		s.logger.Error("failed to publish session status event",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
