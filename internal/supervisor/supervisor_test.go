package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdeck/agentdeck/internal/common/config"
	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/events"
	"github.com/agentdeck/agentdeck/internal/events/bus"
	"github.com/agentdeck/agentdeck/pkg/claudecode"
)

// writeStubAgent writes an executable shell script standing in for the agent
// binary.
func writeStubAgent(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub-agent")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newTestSupervisor(t *testing.T, binary string) (*Supervisor, *bus.MemoryEventBus) {
	t.Helper()
	eventBus := bus.NewMemoryEventBus(logger.Default())
	t.Cleanup(eventBus.Close)

	sup, err := New(config.AgentConfig{Binary: binary}, eventBus, logger.Default())
	require.NoError(t, err)
	t.Cleanup(func() { sup.Shutdown(context.Background()) })
	return sup, eventBus
}

type eventCollector struct {
	mu     sync.Mutex
	events []*bus.Event
}

func collect(t *testing.T, eventBus *bus.MemoryEventBus, subject string) *eventCollector {
	t.Helper()
	c := &eventCollector{}
	_, err := eventBus.Subscribe(subject, func(ctx context.Context, event *bus.Event) error {
		c.mu.Lock()
		c.events = append(c.events, event)
		c.mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	return c
}

func (c *eventCollector) snapshot() []*bus.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*bus.Event(nil), c.events...)
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStart_StreamsMessagesAndDone(t *testing.T) {
	binary := writeStubAgent(t, `
echo '{"type":"system","subtype":"init","session_id":"claude-abc"}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}'
echo '{"type":"result","subtype":"success","result":"done"}'
exit 0
`)
	sup, eventBus := newTestSupervisor(t, binary)
	messages := collect(t, eventBus, events.BuildSessionMessageWildcardSubject())
	done := collect(t, eventBus, events.BuildSessionDoneWildcardSubject())

	require.NoError(t, sup.Start(context.Background(), StartOptions{
		SessionID: "s1",
		Prompt:    "do the thing",
	}))

	waitFor(t, func() bool { return len(done.snapshot()) == 1 }, "no done event")
	waitFor(t, func() bool { return len(messages.snapshot()) == 3 }, "missing stream messages")

	seen := messages.snapshot()
	first, ok := seen[0].Data["message"].(*claudecode.Message)
	require.True(t, ok)
	assert.Equal(t, claudecode.MessageTypeSystem, first.Type)
	require.NotNil(t, first.System)
	assert.Equal(t, "claude-abc", first.System.SessionID)

	doneEvent := done.snapshot()[0]
	assert.Equal(t, "s1", doneEvent.Data["session_id"])
	assert.Equal(t, 0, doneEvent.Data["exit_code"])

	waitFor(t, func() bool { return !sup.IsRunning("s1") }, "registry entry not freed")
}

func TestStart_DuplicateRejected(t *testing.T) {
	binary := writeStubAgent(t, `
read ignored
exit 0
`)
	sup, _ := newTestSupervisor(t, binary)

	require.NoError(t, sup.Start(context.Background(), StartOptions{
		SessionID:   "s1",
		Interactive: true,
	}))

	err := sup.Start(context.Background(), StartOptions{SessionID: "s1", Prompt: "again"})
	require.Error(t, err)
	assert.True(t, apperrors.IsAlreadyExists(err))
	assert.Contains(t, err.Error(), "agent process already running for session s1")

	// The incumbent survives.
	assert.True(t, sup.IsRunning("s1"))
}

func TestStop_CooperativeAndIdempotent(t *testing.T) {
	binary := writeStubAgent(t, `
while read line; do :; done
exit 0
`)
	sup, eventBus := newTestSupervisor(t, binary)
	stopped := collect(t, eventBus, events.BuildSessionStoppedWildcardSubject())
	done := collect(t, eventBus, events.BuildSessionDoneWildcardSubject())

	require.NoError(t, sup.Start(context.Background(), StartOptions{
		SessionID:   "s1",
		Interactive: true,
	}))
	require.True(t, sup.IsRunning("s1"))

	require.NoError(t, sup.Stop(context.Background(), "s1"))
	assert.False(t, sup.IsRunning("s1"))
	require.Len(t, stopped.snapshot(), 1)

	// The agent exits on stdin EOF; the exit watcher still emits done.
	waitFor(t, func() bool { return len(done.snapshot()) == 1 }, "no done event after stop")

	err := sup.Stop(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "no running agent process for session s1")
}

func TestSendInput_RoundTrip(t *testing.T) {
	binary := writeStubAgent(t, `
while read line; do
  echo '{"type":"assistant","message":{"content":[{"type":"text","text":"ack"}]}}'
done
`)
	sup, eventBus := newTestSupervisor(t, binary)
	messages := collect(t, eventBus, events.BuildSessionMessageWildcardSubject())

	require.NoError(t, sup.Start(context.Background(), StartOptions{
		SessionID:   "s1",
		Interactive: true,
	}))

	require.NoError(t, sup.SendInput(context.Background(), "s1", "next step please"))
	waitFor(t, func() bool { return len(messages.snapshot()) == 1 }, "no response to input")

	msg := messages.snapshot()[0].Data["message"].(*claudecode.Message)
	assert.Equal(t, claudecode.MessageTypeAssistant, msg.Type)

	require.NoError(t, sup.Stop(context.Background(), "s1"))
}

func TestSendInput_NotInteractive(t *testing.T) {
	binary := writeStubAgent(t, `
sleep 5
`)
	sup, _ := newTestSupervisor(t, binary)

	require.NoError(t, sup.Start(context.Background(), StartOptions{
		SessionID: "s1",
		Prompt:    "one shot",
	}))

	err := sup.SendInput(context.Background(), "s1", "hello")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	err = sup.SendInput(context.Background(), "missing", "hello")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStderr_Published(t *testing.T) {
	binary := writeStubAgent(t, `
echo 'something went sideways' >&2
exit 1
`)
	sup, eventBus := newTestSupervisor(t, binary)
	stderr := collect(t, eventBus, events.BuildSessionStderrWildcardSubject())
	done := collect(t, eventBus, events.BuildSessionDoneWildcardSubject())

	require.NoError(t, sup.Start(context.Background(), StartOptions{
		SessionID: "s1",
		Prompt:    "fail",
	}))

	waitFor(t, func() bool { return len(done.snapshot()) == 1 }, "no done event")
	require.Len(t, stderr.snapshot(), 1)
	assert.Equal(t, "something went sideways", stderr.snapshot()[0].Data["error"])
	assert.Equal(t, 1, done.snapshot()[0].Data["exit_code"])
}

func TestExitOnSignal_NullExitCode(t *testing.T) {
	binary := writeStubAgent(t, `
kill -TERM $$
`)
	sup, eventBus := newTestSupervisor(t, binary)
	done := collect(t, eventBus, events.BuildSessionDoneWildcardSubject())

	require.NoError(t, sup.Start(context.Background(), StartOptions{
		SessionID: "s1",
		Prompt:    "die",
	}))

	waitFor(t, func() bool { return len(done.snapshot()) == 1 }, "no done event")
	assert.Nil(t, done.snapshot()[0].Data["exit_code"])
}

func TestMalformedStreamLinesSkipped(t *testing.T) {
	binary := writeStubAgent(t, `
echo '{"type":"system","subtype":"init"}'
echo 'this is not json'
echo '{"type":"result","subtype":"success"}'
`)
	sup, eventBus := newTestSupervisor(t, binary)
	messages := collect(t, eventBus, events.BuildSessionMessageWildcardSubject())
	done := collect(t, eventBus, events.BuildSessionDoneWildcardSubject())

	require.NoError(t, sup.Start(context.Background(), StartOptions{
		SessionID: "s1",
		Prompt:    "go",
	}))

	waitFor(t, func() bool { return len(done.snapshot()) == 1 }, "no done event")
	assert.Len(t, messages.snapshot(), 2)
}

func TestStartFailure_LeavesNoEntry(t *testing.T) {
	sup, _ := newTestSupervisor(t, "/nonexistent/agent-binary")

	err := sup.Start(context.Background(), StartOptions{
		SessionID: "s1",
		Prompt:    "go",
	})
	require.Error(t, err)
	assert.False(t, sup.IsRunning("s1"))

	// The slot is free for a retry with a working binary.
	binary := writeStubAgent(t, `exit 0`)
	sup.cfg.Binary = binary
	require.NoError(t, sup.Start(context.Background(), StartOptions{SessionID: "s1", Prompt: "go"}))
}

func TestListRunningSorted(t *testing.T) {
	binary := writeStubAgent(t, `
while read line; do :; done
`)
	sup, _ := newTestSupervisor(t, binary)
	ctx := context.Background()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, sup.Start(ctx, StartOptions{SessionID: id, Interactive: true}))
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, sup.ListRunning())
}

func TestResolveBinary_Order(t *testing.T) {
	eventBus := bus.NewMemoryEventBus(logger.Default())
	t.Cleanup(eventBus.Close)

	existing := writeStubAgent(t, `exit 0`)

	sup, err := New(config.AgentConfig{
		Candidates: []string{"/nonexistent/one", existing},
	}, eventBus, logger.Default())
	require.NoError(t, err)

	assert.Equal(t, existing, sup.resolveBinary(nil))

	profileBinary := writeStubAgent(t, `exit 0`)
	assert.Equal(t, profileBinary, sup.resolveBinary(&Profile{Binary: profileBinary}))

	sup.cfg.Binary = "/explicit/override"
	assert.Equal(t, "/explicit/override", sup.resolveBinary(&Profile{Binary: profileBinary}))

	sup.cfg.Binary = ""
	sup.cfg.Candidates = []string{"/nonexistent/one", "/nonexistent/two"}
	assert.Equal(t, "claude", sup.resolveBinary(nil))
}
