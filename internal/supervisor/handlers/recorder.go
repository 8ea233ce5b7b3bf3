package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/events"
	"github.com/agentdeck/agentdeck/internal/events/bus"
	"github.com/agentdeck/agentdeck/internal/session/service"
	"github.com/agentdeck/agentdeck/pkg/claudecode"
)

// Recorder watches the stream for system init messages and writes the
// agent's own session ID back onto the session row, so a later start can
// --resume the conversation.
type Recorder struct {
	bus      bus.EventBus
	sessions *service.Service
	logger   *logger.Logger
	sub      bus.Subscription
}

// NewRecorder creates a Recorder. Call Start to attach it to the bus.
func NewRecorder(eventBus bus.EventBus, sessions *service.Service, log *logger.Logger) *Recorder {
	return &Recorder{
		bus:      eventBus,
		sessions: sessions,
		logger:   log.WithFields(zap.String("component", "stream-recorder")),
	}
}

// Start subscribes to every session's message stream.
func (r *Recorder) Start(ctx context.Context) error {
	sub, err := r.bus.Subscribe(events.BuildSessionMessageWildcardSubject(), r.handleMessage)
	if err != nil {
		return err
	}
	r.sub = sub
	return nil
}

// Stop detaches from the bus.
func (r *Recorder) Stop() {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
		r.sub = nil
	}
}

func (r *Recorder) handleMessage(ctx context.Context, event *bus.Event) error {
	sessionID, _ := event.Data["session_id"].(string)
	if sessionID == "" {
		return nil
	}

	claudeSessionID := streamSessionID(event.Data["message"])
	if claudeSessionID == "" {
		return nil
	}

	if err := r.sessions.RecordClaudeSessionID(ctx, sessionID, claudeSessionID); err != nil {
		r.logger.Error("failed to record agent session id",
			zap.String("session_id", sessionID),
			zap.String("claude_session_id", claudeSessionID),
			zap.Error(err))
	}
	return nil
}

// streamSessionID pulls session_id from a system message. The payload is the
// decoded message in-process, or a plain map after a NATS round-trip.
func streamSessionID(payload interface{}) string {
	switch msg := payload.(type) {
	case *claudecode.Message:
		if msg.Type == claudecode.MessageTypeSystem && msg.System != nil {
			return msg.System.SessionID
		}
	case map[string]interface{}:
		if msgType, _ := msg["type"].(string); msgType == claudecode.MessageTypeSystem {
			id, _ := msg["session_id"].(string)
			return id
		}
	}
	return ""
}
