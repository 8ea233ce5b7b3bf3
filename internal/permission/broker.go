// Package permission brokers tool-use approval between the agent-side hook
// and the human approver. Requests park in an in-memory pending table until
// a decision, cancellation, or timeout resolves them; always-allow grants
// are memoized per (session, tool) for the daemon's lifetime.
package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/events"
	"github.com/agentdeck/agentdeck/internal/events/bus"
)

// Behaviors
const (
	BehaviorAllow = "allow"
	BehaviorDeny  = "deny"
)

// DefaultTimeout bounds how long a hook call waits for a human decision.
const DefaultTimeout = 300 * time.Second

// Request is one outstanding tool-use approval.
type Request struct {
	RequestID   string          `json:"request_id"`
	SessionID   string          `json:"session_id"`
	ToolName    string          `json:"tool_name"`
	ToolInput   json.RawMessage `json:"tool_input,omitempty"`
	ToolUseID   string          `json:"tool_use_id,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Response is the approver's decision for one request.
type Response struct {
	RequestID   string `json:"request_id"`
	Behavior    string `json:"behavior"`
	Message     string `json:"message,omitempty"`
	Interrupt   bool   `json:"interrupt,omitempty"`
	AlwaysAllow bool   `json:"always_allow,omitempty"`
}

// Decision is what the waiting hook call receives.
type Decision struct {
	Behavior    string `json:"behavior"`
	Message     string `json:"message,omitempty"`
	Interrupt   bool   `json:"interrupt,omitempty"`
	AlwaysAllow bool   `json:"always_allow,omitempty"`

	// AutoAllowed marks the headless escape hatch; it is never set on a
	// decision a human actually made.
	AutoAllowed bool `json:"-"`
}

// AwaitParams describe an incoming hook request.
type AwaitParams struct {
	SessionID   string
	ToolName    string
	ToolInput   json.RawMessage
	ToolUseID   string
	Description string
}

// Options configure a Broker.
type Options struct {
	// Timeout bounds each Await; DefaultTimeout when zero.
	Timeout time.Duration

	// AutoAllow reports that no approver surface is attached. When it
	// returns true, Await answers allow immediately instead of parking a
	// request nobody can see. Nil disables the escape hatch.
	AutoAllow func() bool
}

type pendingRequest struct {
	req Request
	// ch receives the decision (buffered so the resolver never blocks);
	// it is closed instead when the request is cancelled.
	ch chan Response
}

type memoKey struct {
	sessionID string
	toolName  string
}

// Broker correlates permission requests with their resolutions.
type Broker struct {
	bus       bus.EventBus
	logger    *logger.Logger
	timeout   time.Duration
	autoAllow func() bool

	mu      sync.Mutex
	pending map[string]*pendingRequest
	memo    map[memoKey]Response

	subs []bus.Subscription
}

// New creates a Broker. Call Start to subscribe it to session lifecycle events.
func New(eventBus bus.EventBus, log *logger.Logger, opts Options) *Broker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Broker{
		bus:       eventBus,
		logger:    log.WithFields(zap.String("component", "permission-broker")),
		timeout:   timeout,
		autoAllow: opts.AutoAllow,
		pending:   make(map[string]*pendingRequest),
		memo:      make(map[memoKey]Response),
	}
}

// Start subscribes the broker to session termination events so pending
// requests for a dead session surface as cancellations, not timeouts.
func (b *Broker) Start(ctx context.Context) error {
	for _, subject := range []string{
		events.BuildSessionDoneWildcardSubject(),
		events.BuildSessionStoppedWildcardSubject(),
	} {
		sub, err := b.bus.Subscribe(subject, func(ctx context.Context, event *bus.Event) error {
			sessionID, _ := event.Data["session_id"].(string)
			if sessionID != "" {
				b.CancelSession(sessionID)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
	}
	return nil
}

// Stop unsubscribes from the bus and cancels every pending request.
func (b *Broker) Stop() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil

	b.mu.Lock()
	taken := b.pending
	b.pending = make(map[string]*pendingRequest)
	b.mu.Unlock()

	for _, p := range taken {
		close(p.ch)
	}
}

// Await registers a permission request and blocks until it resolves.
// Exactly one of four things happens: a decision arrives, the request is
// cancelled (ErrCodeCancelled), the timeout elapses (ErrCodeTimeout), or
// the caller's context ends (also cancellation). The pending entry is gone
// by the time Await returns, whichever path ran.
func (b *Broker) Await(ctx context.Context, params AwaitParams) (*Decision, error) {
	key := memoKey{sessionID: params.SessionID, toolName: params.ToolName}

	b.mu.Lock()
	if memoed, ok := b.memo[key]; ok {
		b.mu.Unlock()
		b.logger.Debug("permission resolved from always-allow memo",
			zap.String("session_id", params.SessionID),
			zap.String("tool_name", params.ToolName))
		return &Decision{Behavior: BehaviorAllow, AlwaysAllow: true, Message: memoed.Message}, nil
	}
	b.mu.Unlock()

	if b.autoAllow != nil && b.autoAllow() {
		// Headless escape hatch: never park a request nobody can answer.
		// Deliberately not memoized so an approver that attaches later
		// sees subsequent requests.
		b.logger.Warn("no approver attached, auto-allowing permission request",
			zap.String("session_id", params.SessionID),
			zap.String("tool_name", params.ToolName),
			zap.Bool("auto_allowed", true))
		return &Decision{Behavior: BehaviorAllow, AutoAllowed: true}, nil
	}

	req := Request{
		RequestID:   uuid.New().String(),
		SessionID:   params.SessionID,
		ToolName:    params.ToolName,
		ToolInput:   params.ToolInput,
		ToolUseID:   params.ToolUseID,
		Description: params.Description,
		CreatedAt:   time.Now().UTC(),
	}
	p := &pendingRequest{req: req, ch: make(chan Response, 1)}

	b.mu.Lock()
	b.pending[req.RequestID] = p
	b.mu.Unlock()

	b.publishRequested(ctx, req)

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-p.ch:
		if !ok {
			return nil, apperrors.Cancelled(fmt.Sprintf("permission request %s cancelled", req.RequestID))
		}
		return decisionFrom(resp), nil

	case <-timer.C:
		if b.takeBack(req.RequestID) {
			b.logger.Warn("permission request timed out",
				zap.String("request_id", req.RequestID),
				zap.String("session_id", req.SessionID),
				zap.String("tool_name", req.ToolName),
				zap.Duration("timeout", b.timeout))
			return nil, apperrors.Timeout(fmt.Sprintf("permission request %s timed out", req.RequestID))
		}
		// A resolver won the race; its send (or close) is guaranteed.
		resp, ok := <-p.ch
		if !ok {
			return nil, apperrors.Cancelled(fmt.Sprintf("permission request %s cancelled", req.RequestID))
		}
		return decisionFrom(resp), nil

	case <-ctx.Done():
		if b.takeBack(req.RequestID) {
			return nil, apperrors.Cancelled(fmt.Sprintf("permission request %s cancelled", req.RequestID))
		}
		resp, ok := <-p.ch
		if !ok {
			return nil, apperrors.Cancelled(fmt.Sprintf("permission request %s cancelled", req.RequestID))
		}
		return decisionFrom(resp), nil
	}
}

// Resolve records the approver's decision for a pending request.
// Take-once: a second Resolve for the same request ID fails with not found.
func (b *Broker) Resolve(ctx context.Context, resp Response) error {
	if resp.Behavior != BehaviorAllow && resp.Behavior != BehaviorDeny {
		return apperrors.BadRequest(fmt.Sprintf("invalid behavior: %s", resp.Behavior))
	}
	if resp.Behavior == BehaviorDeny {
		// Denial always interrupts the running turn
		resp.Interrupt = true
		resp.AlwaysAllow = false
	}

	b.mu.Lock()
	p, ok := b.pending[resp.RequestID]
	if !ok {
		b.mu.Unlock()
		return apperrors.NotFound(fmt.Sprintf("no pending permission request found for %s", resp.RequestID))
	}
	delete(b.pending, resp.RequestID)
	if resp.Behavior == BehaviorAllow && resp.AlwaysAllow {
		b.memo[memoKey{sessionID: p.req.SessionID, toolName: p.req.ToolName}] = resp
	}
	b.mu.Unlock()

	p.ch <- resp

	b.publishResolved(ctx, p.req, resp)

	b.logger.Info("permission request resolved",
		zap.String("request_id", resp.RequestID),
		zap.String("session_id", p.req.SessionID),
		zap.String("tool_name", p.req.ToolName),
		zap.String("behavior", resp.Behavior),
		zap.Bool("always_allow", resp.AlwaysAllow))
	return nil
}

// CancelSession cancels every pending request for a session. Waiters observe
// cancellation, not timeout.
func (b *Broker) CancelSession(sessionID string) {
	b.mu.Lock()
	var taken []*pendingRequest
	for id, p := range b.pending {
		if p.req.SessionID == sessionID {
			delete(b.pending, id)
			taken = append(taken, p)
		}
	}
	b.mu.Unlock()

	for _, p := range taken {
		close(p.ch)
	}
	if len(taken) > 0 {
		b.logger.Info("cancelled pending permission requests",
			zap.String("session_id", sessionID),
			zap.Int("count", len(taken)))
	}
}

// PendingForSession returns a snapshot of the pending requests for a session,
// oldest first.
func (b *Broker) PendingForSession(sessionID string) []Request {
	b.mu.Lock()
	var out []Request
	for _, p := range b.pending {
		if p.req.SessionID == sessionID {
			out = append(out, p.req)
		}
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// IsAlwaysAllowed reports whether (sessionID, toolName) has a memo entry.
func (b *Broker) IsAlwaysAllowed(sessionID, toolName string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.memo[memoKey{sessionID: sessionID, toolName: toolName}]
	return ok
}

// takeBack removes our own pending entry. Returns false when a racing
// resolver or canceller already took it.
func (b *Broker) takeBack(requestID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[requestID]; !ok {
		return false
	}
	delete(b.pending, requestID)
	return true
}

func decisionFrom(resp Response) *Decision {
	return &Decision{
		Behavior:    resp.Behavior,
		Message:     resp.Message,
		Interrupt:   resp.Interrupt,
		AlwaysAllow: resp.AlwaysAllow,
	}
}

func (b *Broker) publishRequested(ctx context.Context, req Request) {
	event := bus.NewEvent(events.PermissionRequested, "permission-broker", map[string]interface{}{
		"request_id":  req.RequestID,
		"session_id":  req.SessionID,
		"tool_name":   req.ToolName,
		"tool_input":  req.ToolInput,
		"tool_use_id": req.ToolUseID,
		"description": req.Description,
	})
	if err := b.bus.Publish(ctx, events.BuildPermissionRequestSubject(req.SessionID), event); err != nil {
		b.logger.Error("failed to publish permission request event",
			zap.String("request_id", req.RequestID), zap.Error(err))
	}
}

func (b *Broker) publishResolved(ctx context.Context, req Request, resp Response) {
	event := bus.NewEvent(events.PermissionResolved, "permission-broker", map[string]interface{}{
		"request_id": req.RequestID,
		"session_id": req.SessionID,
		"tool_name":  req.ToolName,
		"behavior":   resp.Behavior,
	})
	if err := b.bus.Publish(ctx, events.BuildPermissionResolvedSubject(req.SessionID), event); err != nil {
		b.logger.Error("failed to publish permission resolved event",
			zap.String("request_id", req.RequestID), zap.Error(err))
	}
}
