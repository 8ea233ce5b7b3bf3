// Package claudecode models the Claude Code CLI stream-json protocol.
// The agent emits newline-delimited JSON on stdout; each line is one tagged
// message. The schema is open-ended: unknown top-level fields and unknown
// union variants must survive a decode/encode round trip.
package claudecode

import "encoding/json"

// Message types on the "type" discriminator
const (
	MessageTypeSystem    = "system"
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
	MessageTypeResult    = "result"
)

// Content block types
const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// Permission behaviors
const (
	BehaviorAllow = "allow"
	BehaviorDeny  = "deny"
)

// Common tool names that require permission
const (
	ToolBash         = "Bash"
	ToolWrite        = "Write"
	ToolEdit         = "Edit"
	ToolNotebookEdit = "NotebookEdit"
	ToolWebFetch     = "WebFetch"
	ToolWebSearch    = "WebSearch"
)

// Message is one decoded unit of the agent's stream output, a tagged union
// on the "type" field. Exactly one variant pointer is set for the known
// types; a message with an unrecognized type keeps only Type and Raw.
type Message struct {
	Type      string
	System    *SystemMessage
	User      *UserMessage
	Assistant *AssistantEnvelope
	Result    *ResultMessage

	// Raw holds the original document. It is authoritative for messages
	// with an unrecognized type, which re-encode verbatim.
	Raw json.RawMessage
}

// MCPServer describes one MCP server entry in a system init message.
type MCPServer struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// SystemMessage carries session bootstrap metadata.
type SystemMessage struct {
	Subtype    string
	SessionID  string
	Tools      []string
	MCPServers []MCPServer
	Extra      map[string]json.RawMessage
}

// UserMessage wraps an opaque user payload; the broker never inspects it.
type UserMessage struct {
	Message json.RawMessage
	Extra   map[string]json.RawMessage
}

// AssistantEnvelope is the top-level assistant variant wrapping the model output.
type AssistantEnvelope struct {
	Message AssistantMessage
	Extra   map[string]json.RawMessage
}

// AssistantMessage is the model output with its ordered content blocks.
type AssistantMessage struct {
	ID         string
	Role       string
	Model      string
	StopReason string
	Content    []ContentBlock
	Extra      map[string]json.RawMessage
}

// ResultMessage is the terminal message with cost and duration metrics.
type ResultMessage struct {
	Subtype       string
	Result        *string
	TotalCostUSD  *float64
	DurationMS    *int64
	DurationAPIMS *float64
	Extra         map[string]json.RawMessage
}

// ContentBlock is a tagged union on the block "type". Blocks with an
// unrecognized type keep only Type and Raw and re-encode verbatim.
type ContentBlock struct {
	Type       string
	Text       *TextBlock
	ToolUse    *ToolUseBlock
	ToolResult *ToolResultBlock
	Raw        json.RawMessage
}

// TextBlock is plain assistant text.
type TextBlock struct {
	Text  string
	Extra map[string]json.RawMessage
}

// ToolUseBlock is a tool invocation with its structured input.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
	Extra map[string]json.RawMessage
}

// ToolResultBlock carries the outcome of a prior tool_use block.
type ToolResultBlock struct {
	ToolUseID string
	Content   json.RawMessage
	IsError   *bool
	Extra     map[string]json.RawMessage
}

// IsUnknown reports whether the message type was not recognized.
func (m *Message) IsUnknown() bool {
	return m.System == nil && m.User == nil && m.Assistant == nil && m.Result == nil
}

// IsUnknown reports whether the block type was not recognized.
func (b *ContentBlock) IsUnknown() bool {
	return b.Text == nil && b.ToolUse == nil && b.ToolResult == nil
}
