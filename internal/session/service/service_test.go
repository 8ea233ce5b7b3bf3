package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/db"
	"github.com/agentdeck/agentdeck/internal/events"
	"github.com/agentdeck/agentdeck/internal/events/bus"
	"github.com/agentdeck/agentdeck/internal/session/models"
	"github.com/agentdeck/agentdeck/internal/session/store"
)

func newTestService(t *testing.T) (*Service, *bus.MemoryEventBus) {
	t.Helper()
	pool, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	repo, err := store.NewRepository(pool)
	require.NoError(t, err)

	eventBus := bus.NewMemoryEventBus(logger.Default())
	t.Cleanup(eventBus.Close)

	return NewService(repo, eventBus, logger.Default()), eventBus
}

// collectEvents subscribes to a wildcard subject and returns a getter for the
// events seen so far. The memory bus dispatches synchronously, so events are
// visible as soon as the triggering call returns.
func collectEvents(t *testing.T, eventBus *bus.MemoryEventBus, subject string) func() []*bus.Event {
	t.Helper()
	var mu sync.Mutex
	var seen []*bus.Event
	_, err := eventBus.Subscribe(subject, func(ctx context.Context, event *bus.Event) error {
		mu.Lock()
		seen = append(seen, event)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	return func() []*bus.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*bus.Event(nil), seen...)
	}
}

func TestSetStatus_ValidatesAndPublishes(t *testing.T) {
	svc, eventBus := newTestService(t)
	ctx := context.Background()
	getEvents := collectEvents(t, eventBus, events.BuildSessionStatusWildcardSubject())

	session := &models.Session{Name: "s1", Cwd: "/tmp/s1"}
	require.NoError(t, svc.CreateSession(ctx, session))

	err := svc.SetStatus(ctx, session.ID, "sleeping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status must be 'ready' or 'busy'")
	assert.Empty(t, getEvents(), "invalid transition publishes nothing")

	require.NoError(t, svc.SetStatus(ctx, session.ID, models.StatusReady))
	seen := getEvents()
	require.Len(t, seen, 1)
	assert.Equal(t, models.StatusReady, seen[0].Data["status"])
	assert.Equal(t, session.ID, seen[0].Data["session_id"])
}

func TestDeliverMessage_FlipsReadyAndPublishes(t *testing.T) {
	svc, eventBus := newTestService(t)
	ctx := context.Background()
	getInbox := collectEvents(t, eventBus, events.BuildInboxMessageWildcardSubject())
	getStatus := collectEvents(t, eventBus, events.BuildSessionStatusWildcardSubject())

	session := &models.Session{Name: "s1", Cwd: "/tmp/s1"}
	require.NoError(t, svc.CreateSession(ctx, session))
	require.Equal(t, models.StatusBusy, session.Status)

	msg, err := svc.DeliverMessage(ctx, session.ID, "refactor done, please review")
	require.NoError(t, err)
	assert.Equal(t, "s1", msg.SessionName)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)

	inboxEvents := getInbox()
	require.Len(t, inboxEvents, 1)
	assert.Equal(t, msg.ID, inboxEvents[0].Data["message_id"])
	require.Len(t, getStatus(), 1)
}

func TestDeliverMessage_UnknownSession(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.DeliverMessage(context.Background(), "missing", "hello")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReplyToComment_CopiesCoordinates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session := &models.Session{Name: "fix-auth", Cwd: "/tmp/s1"}
	require.NoError(t, svc.CreateSession(ctx, session))

	line := 7
	parent := &models.DiffComment{
		SessionID:  session.ID,
		FilePath:   "auth.go",
		LineNumber: &line,
		LineType:   models.LineTypeAdd,
		Author:     "reviewer",
		Content:    "is this check needed?",
	}
	require.NoError(t, svc.CreateComment(ctx, parent))

	reply, err := svc.ReplyToComment(ctx, session.ID, parent.ID, "yes, covers the expired-token path")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, reply.ParentID)
	assert.Equal(t, "auth.go", reply.FilePath)
	require.NotNil(t, reply.LineNumber)
	assert.Equal(t, 7, *reply.LineNumber)
	assert.Equal(t, models.LineTypeAdd, reply.LineType)
	assert.Equal(t, "fix-auth", reply.Author, "reply author is the session name")
}

func TestReplyToComment_WrongSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	s1 := &models.Session{Name: "s1", Cwd: "/tmp/s1"}
	require.NoError(t, svc.CreateSession(ctx, s1))
	s2 := &models.Session{Name: "s2", Cwd: "/tmp/s2"}
	require.NoError(t, svc.CreateSession(ctx, s2))

	comment := &models.DiffComment{SessionID: s1.ID, FilePath: "a.go", Author: "me", Content: "hm"}
	require.NoError(t, svc.CreateComment(ctx, comment))

	_, err := svc.ReplyToComment(ctx, s2.ID, comment.ID, "reply")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResolveComment_WithNote(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session := &models.Session{Name: "s1", Cwd: "/tmp/s1"}
	require.NoError(t, svc.CreateSession(ctx, session))

	comment := &models.DiffComment{SessionID: session.ID, FilePath: "a.go", Author: "me", Content: "typo"}
	require.NoError(t, svc.CreateComment(ctx, comment))

	resolved, err := svc.ResolveComment(ctx, session.ID, comment.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, models.CommentStatusResolved, resolved.Status)
	assert.Equal(t, "fixed", resolved.ResolutionNote)
}

func TestRecordClaudeSessionID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session := &models.Session{Name: "s1", Cwd: "/tmp/s1"}
	require.NoError(t, svc.CreateSession(ctx, session))

	require.NoError(t, svc.RecordClaudeSessionID(ctx, session.ID, "stream-abc"))
	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "stream-abc", got.ClaudeSessionID)
}
