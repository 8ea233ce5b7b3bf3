package v1

import "time"

// Session statuses
const (
	SessionStatusReady = "ready"
	SessionStatusBusy  = "busy"
)

// Workspace is a named folder agents operate on.
type Workspace struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Folder       string    `json:"folder"`
	ScriptPath   string    `json:"script_path,omitempty"`
	OriginBranch string    `json:"origin_branch"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is one supervised unit of work.
type Session struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Cwd             string    `json:"cwd"`
	WorkspaceID     string    `json:"workspace_id,omitempty"`
	WorktreeName    string    `json:"worktree_name,omitempty"`
	Status          string    `json:"status"`
	BaseCommit      string    `json:"base_commit,omitempty"`
	ClaudeSessionID string    `json:"claude_session_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// InboxMessage is a message an agent left for the approver.
type InboxMessage struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	SessionName string     `json:"session_name"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	FirstReadAt *time.Time `json:"first_read_at,omitempty"`
}

// DiffComment is a review comment anchored to a file and line.
type DiffComment struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	FilePath       string    `json:"file_path"`
	LineNumber     *int      `json:"line_number,omitempty"`
	LineType       string    `json:"line_type,omitempty"`
	Author         string    `json:"author"`
	Content        string    `json:"content"`
	Status         string    `json:"status"`
	ParentID       string    `json:"parent_id,omitempty"`
	ResolutionNote string    `json:"resolution_note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TranscriptEntry is one message from an on-disk session transcript.
type TranscriptEntry struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   any    `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	Model     string `json:"model,omitempty"`
}
