// Package events provides event subjects and utilities for the agentdeck event plane.
package events

// Event types for agent session streams
const (
	SessionMessage = "session.message" // Decoded stream-json message from the agent
	SessionStderr  = "session.stderr"  // Raw stderr line from the agent process
	SessionDone    = "session.done"    // Agent process exited
	SessionStopped = "session.stopped" // Explicit stop requested by the approver
	SessionStatus  = "session.status"  // Session flipped between ready and busy
)

// Event types for permission brokering
const (
	PermissionRequested = "permission.request"  // Agent is waiting on a tool-use decision
	PermissionResolved  = "permission.resolved" // A decision was recorded
)

// Event types for the inbox
const (
	InboxMessageAdded = "inbox.message" // New inbox delivery for the approver
)

// BuildSessionMessageSubject creates a session message subject for a specific session
func BuildSessionMessageSubject(sessionID string) string {
	return SessionMessage + "." + sessionID
}

// BuildSessionMessageWildcardSubject creates a wildcard subscription for all session message events
func BuildSessionMessageWildcardSubject() string {
	return SessionMessage + ".*"
}

// BuildSessionStderrSubject creates a session stderr subject for a specific session
func BuildSessionStderrSubject(sessionID string) string {
	return SessionStderr + "." + sessionID
}

// BuildSessionStderrWildcardSubject creates a wildcard subscription for all session stderr events
func BuildSessionStderrWildcardSubject() string {
	return SessionStderr + ".*"
}

// BuildSessionDoneSubject creates a session done subject for a specific session
func BuildSessionDoneSubject(sessionID string) string {
	return SessionDone + "." + sessionID
}

// BuildSessionDoneWildcardSubject creates a wildcard subscription for all session done events
func BuildSessionDoneWildcardSubject() string {
	return SessionDone + ".*"
}

// BuildSessionStoppedSubject creates a session stopped subject for a specific session
func BuildSessionStoppedSubject(sessionID string) string {
	return SessionStopped + "." + sessionID
}

// BuildSessionStoppedWildcardSubject creates a wildcard subscription for all session stopped events
func BuildSessionStoppedWildcardSubject() string {
	return SessionStopped + ".*"
}

// BuildSessionStatusSubject creates a session status subject for a specific session
func BuildSessionStatusSubject(sessionID string) string {
	return SessionStatus + "." + sessionID
}

// BuildSessionStatusWildcardSubject creates a wildcard subscription for all session status events
func BuildSessionStatusWildcardSubject() string {
	return SessionStatus + ".*"
}

// BuildPermissionRequestSubject creates a permission request subject for a specific session
func BuildPermissionRequestSubject(sessionID string) string {
	return PermissionRequested + "." + sessionID
}

// BuildPermissionRequestWildcardSubject creates a wildcard subscription for all permission request events
func BuildPermissionRequestWildcardSubject() string {
	return PermissionRequested + ".*"
}

// BuildPermissionResolvedSubject creates a permission resolved subject for a specific session
func BuildPermissionResolvedSubject(sessionID string) string {
	return PermissionResolved + "." + sessionID
}

// BuildPermissionResolvedWildcardSubject creates a wildcard subscription for all permission resolved events
func BuildPermissionResolvedWildcardSubject() string {
	return PermissionResolved + ".*"
}

// BuildInboxMessageSubject creates an inbox message subject for a specific session
func BuildInboxMessageSubject(sessionID string) string {
	return InboxMessageAdded + "." + sessionID
}

// BuildInboxMessageWildcardSubject creates a wildcard subscription for all inbox message events
func BuildInboxMessageWildcardSubject() string {
	return InboxMessageAdded + ".*"
}
