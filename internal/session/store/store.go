// Package store persists workspaces, sessions, inbox messages, and diff
// comments through a db.Pool. Queries are written once with ? placeholders
// and rebound per driver, so the same repository serves SQLite and Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/db"
	"github.com/agentdeck/agentdeck/internal/session/models"
)

// timeFormat is RFC3339 with a numeric UTC offset, which every supported
// driver parses back into time.Time. Bind times through fmtTime; binding a
// raw time.Time lets the driver pick its own non-RFC3339 text format.
const timeFormat = "2006-01-02T15:04:05.999999999-07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// Repository is the collaborator store.
type Repository struct {
	pool *db.Pool
}

// NewRepository creates a Repository and initializes the schema.
func NewRepository(pool *db.Pool) (*Repository, error) {
	r := &Repository{pool: pool}
	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

func (r *Repository) initSchema() error {
	schema := schemaSQLite
	if r.pool.DriverName() == "pgx" {
		schema = schemaPostgres
	}
	_, err := r.pool.Writer().Exec(schema)
	return err
}

// Workspaces

func (r *Repository) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	ws.ID = uuid.New().String()
	ws.CreatedAt = time.Now().UTC()
	if ws.OriginBranch == "" {
		ws.OriginBranch = "main"
	}
	writer := r.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`
		INSERT INTO workspaces (id, name, folder, script_path, origin_branch, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), ws.ID, ws.Name, ws.Folder, ws.ScriptPath, ws.OriginBranch, fmtTime(ws.CreatedAt))
	return err
}

func (r *Repository) ListWorkspaces(ctx context.Context) ([]*models.Workspace, error) {
	var workspaces []*models.Workspace
	err := r.pool.Reader().SelectContext(ctx, &workspaces, `
		SELECT * FROM workspaces ORDER BY created_at ASC
	`)
	return workspaces, err
}

func (r *Repository) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	reader := r.pool.Reader()
	var ws models.Workspace
	err := reader.GetContext(ctx, &ws, reader.Rebind(`SELECT * FROM workspaces WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("workspace not found")
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *Repository) DeleteWorkspace(ctx context.Context, id string) error {
	writer := r.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`DELETE FROM workspaces WHERE id = ?`), id)
	return err
}

// Sessions

func (r *Repository) CreateSession(ctx context.Context, s *models.Session) error {
	s.ID = uuid.New().String()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		// New sessions start busy: the agent typically launches right away,
		// and the approver should not see "ready" before the first turn ends.
		s.Status = models.StatusBusy
	}
	writer := r.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`
		INSERT INTO sessions (id, name, cwd, workspace_id, worktree_name, status,
			base_commit, claude_session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), s.ID, s.Name, s.Cwd, s.WorkspaceID, s.WorktreeName, s.Status,
		s.BaseCommit, s.ClaudeSessionID, fmtTime(s.CreatedAt), fmtTime(s.UpdatedAt))
	return err
}

func (r *Repository) ListSessions(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session
	err := r.pool.Reader().SelectContext(ctx, &sessions, `
		SELECT * FROM sessions ORDER BY created_at ASC
	`)
	return sessions, err
}

func (r *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	reader := r.pool.Reader()
	var s models.Session
	err := reader.GetContext(ctx, &s, reader.Rebind(`SELECT * FROM sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("session not found")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SessionUpdate carries the optional fields of a partial session update.
type SessionUpdate struct {
	Name            *string
	Cwd             *string
	BaseCommit      *string
	ClaudeSessionID *string
}

// UpdateSession applies a partial update and returns the updated row.
func (r *Repository) UpdateSession(ctx context.Context, id string, update SessionUpdate) (*models.Session, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{fmtTime(time.Now().UTC())}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Cwd != nil {
		sets = append(sets, "cwd = ?")
		args = append(args, *update.Cwd)
	}
	if update.BaseCommit != nil {
		sets = append(sets, "base_commit = ?")
		args = append(args, *update.BaseCommit)
	}
	if update.ClaudeSessionID != nil {
		sets = append(sets, "claude_session_id = ?")
		args = append(args, *update.ClaudeSessionID)
	}
	args = append(args, id)

	writer := r.pool.Writer()
	query := writer.Rebind("UPDATE sessions SET " + strings.Join(sets, ", ") + " WHERE id = ?")
	result, err := writer.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, apperrors.NotFound("session not found")
	}
	return r.GetSession(ctx, id)
}

// UpdateSessionStatus flips the session between ready and busy.
func (r *Repository) UpdateSessionStatus(ctx context.Context, id, status string) error {
	writer := r.pool.Writer()
	result, err := writer.ExecContext(ctx, writer.Rebind(`
		UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?
	`), status, fmtTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NotFound("session not found")
	}
	return nil
}

// DeleteSession removes the session; inbox messages and comments cascade.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	writer := r.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
	return err
}

// Inbox

const inboxSelect = `
	SELECT m.id, m.session_id, s.name AS session_name, m.message,
		m.created_at, m.read_at, m.first_read_at
	FROM inbox_messages m
	JOIN sessions s ON s.id = m.session_id
`

func (r *Repository) CreateInboxMessage(ctx context.Context, sessionID, message string) (*models.InboxMessage, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	writer := r.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`
		INSERT INTO inbox_messages (id, session_id, message, created_at)
		VALUES (?, ?, ?, ?)
	`), id, sessionID, message, fmtTime(now))
	if err != nil {
		return nil, err
	}
	return r.GetInboxMessage(ctx, id)
}

func (r *Repository) GetInboxMessage(ctx context.Context, id string) (*models.InboxMessage, error) {
	reader := r.pool.Reader()
	var msg models.InboxMessage
	err := reader.GetContext(ctx, &msg, reader.Rebind(inboxSelect+`WHERE m.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("inbox message not found")
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *Repository) ListInbox(ctx context.Context) ([]*models.InboxMessage, error) {
	var messages []*models.InboxMessage
	err := r.pool.Reader().SelectContext(ctx, &messages, inboxSelect+`ORDER BY m.created_at DESC`)
	return messages, err
}

// MarkInboxRead sets read_at; first_read_at is set only the first time.
func (r *Repository) MarkInboxRead(ctx context.Context, id string) error {
	now := fmtTime(time.Now().UTC())
	writer := r.pool.Writer()
	result, err := writer.ExecContext(ctx, writer.Rebind(`
		UPDATE inbox_messages
		SET read_at = ?, first_read_at = COALESCE(first_read_at, ?)
		WHERE id = ?
	`), now, now, id)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NotFound("inbox message not found")
	}
	return nil
}

// MarkInboxUnread clears read_at; first_read_at is preserved.
func (r *Repository) MarkInboxUnread(ctx context.Context, id string) error {
	writer := r.pool.Writer()
	result, err := writer.ExecContext(ctx, writer.Rebind(`
		UPDATE inbox_messages SET read_at = NULL WHERE id = ?
	`), id)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NotFound("inbox message not found")
	}
	return nil
}

// MarkSessionMessagesRead marks every message for the session as read.
func (r *Repository) MarkSessionMessagesRead(ctx context.Context, sessionID string) error {
	now := fmtTime(time.Now().UTC())
	writer := r.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`
		UPDATE inbox_messages
		SET read_at = ?, first_read_at = COALESCE(first_read_at, ?)
		WHERE session_id = ?
	`), now, now, sessionID)
	return err
}

func (r *Repository) DeleteInboxMessage(ctx context.Context, id string) error {
	writer := r.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`DELETE FROM inbox_messages WHERE id = ?`), id)
	return err
}

func (r *Repository) ClearInbox(ctx context.Context) error {
	_, err := r.pool.Writer().ExecContext(ctx, `DELETE FROM inbox_messages`)
	return err
}

// Comments

func (r *Repository) CreateComment(ctx context.Context, comment *models.DiffComment) error {
	comment.ID = uuid.New().String()
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if comment.Status == "" {
		comment.Status = models.CommentStatusOpen
	}
	writer := r.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`
		INSERT INTO diff_comments (id, session_id, file_path, line_number, line_type,
			author, content, status, parent_id, resolution_note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), comment.ID, comment.SessionID, comment.FilePath, comment.LineNumber, comment.LineType,
		comment.Author, comment.Content, comment.Status, comment.ParentID, comment.ResolutionNote,
		fmtTime(comment.CreatedAt), fmtTime(comment.UpdatedAt))
	return err
}

func (r *Repository) GetComment(ctx context.Context, id string) (*models.DiffComment, error) {
	reader := r.pool.Reader()
	var comment models.DiffComment
	err := reader.GetContext(ctx, &comment, reader.Rebind(`SELECT * FROM diff_comments WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("comment not found")
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments returns the session's comments, optionally filtered by status.
func (r *Repository) ListComments(ctx context.Context, sessionID, status string) ([]*models.DiffComment, error) {
	reader := r.pool.Reader()
	query := `SELECT * FROM diff_comments WHERE session_id = ?`
	args := []interface{}{sessionID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	var comments []*models.DiffComment
	err := reader.SelectContext(ctx, &comments, reader.Rebind(query), args...)
	return comments, err
}

// ResolveComment marks the comment resolved with an optional note.
func (r *Repository) ResolveComment(ctx context.Context, id, note string) error {
	writer := r.pool.Writer()
	result, err := writer.ExecContext(ctx, writer.Rebind(`
		UPDATE diff_comments SET status = ?, resolution_note = ?, updated_at = ? WHERE id = ?
	`), models.CommentStatusResolved, note, fmtTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NotFound("comment not found")
	}
	return nil
}

func (r *Repository) DeleteComment(ctx context.Context, id string) error {
	writer := r.pool.Writer()
	_, err := writer.ExecContext(ctx, writer.Rebind(`DELETE FROM diff_comments WHERE id = ?`), id)
	return err
}
