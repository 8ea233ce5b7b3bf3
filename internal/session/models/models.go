// Package models defines the collaborator store's persistent types.
package models

import "time"

// Session statuses
const (
	StatusReady = "ready"
	StatusBusy  = "busy"
)

// Comment statuses
const (
	CommentStatusOpen     = "open"
	CommentStatusResolved = "resolved"
)

// Comment line types
const (
	LineTypeAdd     = "add"
	LineTypeDelete  = "delete"
	LineTypeContext = "context"
)

// Workspace is a named folder agents operate on.
type Workspace struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Folder       string    `db:"folder"`
	ScriptPath   string    `db:"script_path"`
	OriginBranch string    `db:"origin_branch"`
	CreatedAt    time.Time `db:"created_at"`
}

// Session is one supervised unit of work: a working directory, a status the
// approver sees, and the last agent session ID for --resume.
type Session struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	Cwd             string    `db:"cwd"`
	WorkspaceID     string    `db:"workspace_id"`
	WorktreeName    string    `db:"worktree_name"`
	Status          string    `db:"status"`
	BaseCommit      string    `db:"base_commit"`
	ClaudeSessionID string    `db:"claude_session_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// InboxMessage is a message an agent left for the approver.
type InboxMessage struct {
	ID          string     `db:"id"`
	SessionID   string     `db:"session_id"`
	SessionName string     `db:"session_name"`
	Message     string     `db:"message"`
	CreatedAt   time.Time  `db:"created_at"`
	ReadAt      *time.Time `db:"read_at"`
	FirstReadAt *time.Time `db:"first_read_at"`
}

// DiffComment is a review comment anchored to a file and line. Replies carry
// the parent's coordinates so a thread stays attached to one location.
type DiffComment struct {
	ID             string    `db:"id"`
	SessionID      string    `db:"session_id"`
	FilePath       string    `db:"file_path"`
	LineNumber     *int      `db:"line_number"`
	LineType       string    `db:"line_type"`
	Author         string    `db:"author"`
	Content        string    `db:"content"`
	Status         string    `db:"status"`
	ParentID       string    `db:"parent_id"`
	ResolutionNote string    `db:"resolution_note"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}
