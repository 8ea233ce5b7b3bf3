package gateway

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/events"
	"github.com/agentdeck/agentdeck/internal/events/bus"
)

// Bridge forwards bus events to the hub so UI clients see the same stream
// the daemon's own components do. The wire envelope is the bus event JSON.
type Bridge struct {
	bus    bus.EventBus
	hub    *Hub
	logger *logger.Logger
	subs   []bus.Subscription
}

// NewBridge creates a Bridge. Call Start to attach it to the bus.
func NewBridge(eventBus bus.EventBus, hub *Hub, log *logger.Logger) *Bridge {
	return &Bridge{
		bus:    eventBus,
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws-bridge")),
	}
}

// Start subscribes to every event family the UI consumes.
func (b *Bridge) Start(ctx context.Context) error {
	subjects := []string{
		events.BuildSessionMessageWildcardSubject(),
		events.BuildSessionStderrWildcardSubject(),
		events.BuildSessionDoneWildcardSubject(),
		events.BuildSessionStoppedWildcardSubject(),
		events.BuildSessionStatusWildcardSubject(),
		events.BuildPermissionRequestWildcardSubject(),
		events.BuildPermissionResolvedWildcardSubject(),
		events.BuildInboxMessageWildcardSubject(),
	}
	for _, subject := range subjects {
		sub, err := b.bus.Subscribe(subject, b.forward)
		if err != nil {
			b.Stop()
			return err
		}
		b.subs = append(b.subs, sub)
	}
	return nil
}

// Stop detaches from the bus.
func (b *Bridge) Stop() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
}

func (b *Bridge) forward(ctx context.Context, event *bus.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event for websocket",
			zap.String("event_type", event.Type), zap.Error(err))
		return nil
	}

	if sessionID, _ := event.Data["session_id"].(string); sessionID != "" {
		b.hub.BroadcastToSession(sessionID, data)
	} else {
		b.hub.Broadcast(data)
	}
	return nil
}
