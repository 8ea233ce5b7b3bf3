package v1

import "encoding/json"

// PermissionRequestBody is what the agent-side hook posts when it needs a
// tool-use decision.
type PermissionRequestBody struct {
	SessionID   string          `json:"session_id,omitempty"`
	ToolName    string          `json:"tool_name"`
	ToolInput   json.RawMessage `json:"tool_input,omitempty"`
	ToolUseID   string          `json:"tool_use_id,omitempty"`
	Description string          `json:"description,omitempty"`
}

// PermissionDecision is returned to the hook once the request resolves.
type PermissionDecision struct {
	Behavior    string `json:"behavior"`
	Message     string `json:"message,omitempty"`
	Interrupt   bool   `json:"interrupt,omitempty"`
	AlwaysAllow bool   `json:"always_allow,omitempty"`
}

// PermissionRespondBody is what the approver posts to resolve a pending request.
type PermissionRespondBody struct {
	RequestID   string `json:"request_id"`
	Behavior    string `json:"behavior"`
	Message     string `json:"message,omitempty"`
	AlwaysAllow bool   `json:"always_allow,omitempty"`
}
