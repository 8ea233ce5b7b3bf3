package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/db"
	"github.com/agentdeck/agentdeck/internal/session/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	pool, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	return repo
}

func createTestSession(t *testing.T, repo *Repository, name string) *models.Session {
	t.Helper()
	session := &models.Session{Name: name, Cwd: "/tmp/" + name}
	require.NoError(t, repo.CreateSession(context.Background(), session))
	return session
}

func TestWorkspaceCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ws := &models.Workspace{Name: "myproj", Folder: "/home/me/myproj"}
	require.NoError(t, repo.CreateWorkspace(ctx, ws))
	assert.NotEmpty(t, ws.ID)
	assert.Equal(t, "main", ws.OriginBranch)
	assert.False(t, ws.CreatedAt.IsZero())

	got, err := repo.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "myproj", got.Name)

	list, err := repo.ListWorkspaces(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.DeleteWorkspace(ctx, ws.ID))
	_, err = repo.GetWorkspace(ctx, ws.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionDefaultsToBusy(t *testing.T) {
	repo := newTestRepo(t)
	session := createTestSession(t, repo, "s1")
	assert.Equal(t, models.StatusBusy, session.Status)
}

func TestSessionPartialUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "s1")

	name := "renamed"
	claudeID := "abc-123"
	updated, err := repo.UpdateSession(ctx, session.ID, SessionUpdate{
		Name:            &name,
		ClaudeSessionID: &claudeID,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "abc-123", updated.ClaudeSessionID)
	assert.Equal(t, session.Cwd, updated.Cwd, "untouched fields survive")

	_, err = repo.UpdateSession(ctx, "missing", SessionUpdate{Name: &name})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionStatusUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "s1")

	require.NoError(t, repo.UpdateSessionStatus(ctx, session.ID, models.StatusReady))
	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)

	err = repo.UpdateSessionStatus(ctx, "missing", models.StatusReady)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestInboxReadUnreadFirstReadOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "s1")

	msg, err := repo.CreateInboxMessage(ctx, session.ID, "done with the refactor")
	require.NoError(t, err)
	assert.Equal(t, "s1", msg.SessionName, "session name joined in")
	assert.Nil(t, msg.ReadAt)
	assert.Nil(t, msg.FirstReadAt)

	require.NoError(t, repo.MarkInboxRead(ctx, msg.ID))
	got, err := repo.GetInboxMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReadAt)
	require.NotNil(t, got.FirstReadAt)
	firstRead := *got.FirstReadAt

	require.NoError(t, repo.MarkInboxUnread(ctx, msg.ID))
	got, err = repo.GetInboxMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReadAt)
	require.NotNil(t, got.FirstReadAt, "first_read_at survives unread")

	require.NoError(t, repo.MarkInboxRead(ctx, msg.ID))
	got, err = repo.GetInboxMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.FirstReadAt.Equal(firstRead), "first_read_at is set exactly once")
}

func TestInboxListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "s1")

	_, err := repo.CreateInboxMessage(ctx, session.ID, "first")
	require.NoError(t, err)
	_, err = repo.CreateInboxMessage(ctx, session.ID, "second")
	require.NoError(t, err)

	messages, err := repo.ListInbox(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.True(t, !messages[0].CreatedAt.Before(messages[1].CreatedAt))
}

func TestDeleteSessionCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "s1")

	_, err := repo.CreateInboxMessage(ctx, session.ID, "hello")
	require.NoError(t, err)
	comment := &models.DiffComment{
		SessionID: session.ID,
		FilePath:  "main.go",
		Author:    "me",
		Content:   "why this rename?",
	}
	require.NoError(t, repo.CreateComment(ctx, comment))

	require.NoError(t, repo.DeleteSession(ctx, session.ID))

	messages, err := repo.ListInbox(ctx)
	require.NoError(t, err)
	assert.Empty(t, messages)

	comments, err := repo.ListComments(ctx, session.ID, "")
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestCommentsStatusFilterAndResolve(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "s1")

	line := 42
	open := &models.DiffComment{
		SessionID:  session.ID,
		FilePath:   "main.go",
		LineNumber: &line,
		LineType:   models.LineTypeAdd,
		Author:     "me",
		Content:    "rename this",
	}
	require.NoError(t, repo.CreateComment(ctx, open))
	assert.Equal(t, models.CommentStatusOpen, open.Status)

	require.NoError(t, repo.ResolveComment(ctx, open.ID, "renamed in abc123"))
	got, err := repo.GetComment(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommentStatusResolved, got.Status)
	assert.Equal(t, "renamed in abc123", got.ResolutionNote)
	require.NotNil(t, got.LineNumber)
	assert.Equal(t, 42, *got.LineNumber)

	openOnly, err := repo.ListComments(ctx, session.ID, models.CommentStatusOpen)
	require.NoError(t, err)
	assert.Empty(t, openOnly)

	resolved, err := repo.ListComments(ctx, session.ID, models.CommentStatusResolved)
	require.NoError(t, err)
	assert.Len(t, resolved, 1)
}
