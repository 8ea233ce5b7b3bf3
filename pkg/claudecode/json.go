package claudecode

import (
	"encoding/json"
	"fmt"
)

// extraFields collects the top-level keys of data that are not in known.
// The "type" discriminator is always stripped so it is emitted exactly once
// on re-encode. Returns nil when nothing is left over.
func extraFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	delete(all, "type")
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func rawJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// mergeExtra seeds an output document with the preserved unknown fields.
func mergeExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(extra)+8)
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// UnmarshalJSON decodes a stream message. Unrecognized types decode into an
// opaque message that re-encodes verbatim rather than failing.
func (m *Message) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	*m = Message{
		Type: head.Type,
		Raw:  append(json.RawMessage(nil), data...),
	}

	switch head.Type {
	case MessageTypeSystem:
		m.System = &SystemMessage{}
		return json.Unmarshal(data, m.System)
	case MessageTypeUser:
		m.User = &UserMessage{}
		return json.Unmarshal(data, m.User)
	case MessageTypeAssistant:
		m.Assistant = &AssistantEnvelope{}
		return json.Unmarshal(data, m.Assistant)
	case MessageTypeResult:
		m.Result = &ResultMessage{}
		return json.Unmarshal(data, m.Result)
	default:
		// Forward compatibility: keep the raw document untouched
		return nil
	}
}

// MarshalJSON re-encodes the message. Known variants rebuild the document
// from their fields plus the preserved extras; unknown variants emit the
// original bytes.
func (m Message) MarshalJSON() ([]byte, error) {
	switch {
	case m.System != nil:
		return json.Marshal(m.System)
	case m.User != nil:
		return json.Marshal(m.User)
	case m.Assistant != nil:
		return json.Marshal(m.Assistant)
	case m.Result != nil:
		return json.Marshal(m.Result)
	case len(m.Raw) > 0:
		return m.Raw, nil
	default:
		return nil, fmt.Errorf("claudecode: cannot marshal empty message")
	}
}

func (s *SystemMessage) UnmarshalJSON(data []byte) error {
	var body struct {
		Subtype    string      `json:"subtype"`
		SessionID  string      `json:"session_id"`
		Tools      []string    `json:"tools"`
		MCPServers []MCPServer `json:"mcp_servers"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	extra, err := extraFields(data, "subtype", "session_id", "tools", "mcp_servers")
	if err != nil {
		return err
	}
	*s = SystemMessage{
		Subtype:    body.Subtype,
		SessionID:  body.SessionID,
		Tools:      body.Tools,
		MCPServers: body.MCPServers,
		Extra:      extra,
	}
	return nil
}

func (s SystemMessage) MarshalJSON() ([]byte, error) {
	out := mergeExtra(s.Extra)
	out["type"] = rawJSON(MessageTypeSystem)
	out["subtype"] = rawJSON(s.Subtype)
	if s.SessionID != "" {
		out["session_id"] = rawJSON(s.SessionID)
	}
	if s.Tools != nil {
		out["tools"] = rawJSON(s.Tools)
	}
	if s.MCPServers != nil {
		out["mcp_servers"] = rawJSON(s.MCPServers)
	}
	return json.Marshal(out)
}

func (u *UserMessage) UnmarshalJSON(data []byte) error {
	var body struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	extra, err := extraFields(data, "message")
	if err != nil {
		return err
	}
	*u = UserMessage{Message: body.Message, Extra: extra}
	return nil
}

func (u UserMessage) MarshalJSON() ([]byte, error) {
	out := mergeExtra(u.Extra)
	out["type"] = rawJSON(MessageTypeUser)
	if len(u.Message) > 0 {
		out["message"] = u.Message
	}
	return json.Marshal(out)
}

func (a *AssistantEnvelope) UnmarshalJSON(data []byte) error {
	var body struct {
		Message AssistantMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	extra, err := extraFields(data, "message")
	if err != nil {
		return err
	}
	*a = AssistantEnvelope{Message: body.Message, Extra: extra}
	return nil
}

func (a AssistantEnvelope) MarshalJSON() ([]byte, error) {
	out := mergeExtra(a.Extra)
	out["type"] = rawJSON(MessageTypeAssistant)
	out["message"] = rawJSON(a.Message)
	return json.Marshal(out)
}

func (a *AssistantMessage) UnmarshalJSON(data []byte) error {
	var body struct {
		ID         string         `json:"id"`
		Role       string         `json:"role"`
		Model      string         `json:"model"`
		StopReason string         `json:"stop_reason"`
		Content    []ContentBlock `json:"content"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	extra, err := extraFields(data, "id", "role", "model", "stop_reason", "content")
	if err != nil {
		return err
	}
	*a = AssistantMessage{
		ID:         body.ID,
		Role:       body.Role,
		Model:      body.Model,
		StopReason: body.StopReason,
		Content:    body.Content,
		Extra:      extra,
	}
	return nil
}

func (a AssistantMessage) MarshalJSON() ([]byte, error) {
	out := mergeExtra(a.Extra)
	if a.ID != "" {
		out["id"] = rawJSON(a.ID)
	}
	if a.Role != "" {
		out["role"] = rawJSON(a.Role)
	}
	if a.Model != "" {
		out["model"] = rawJSON(a.Model)
	}
	if a.StopReason != "" {
		out["stop_reason"] = rawJSON(a.StopReason)
	}
	if a.Content == nil {
		out["content"] = rawJSON([]ContentBlock{})
	} else {
		out["content"] = rawJSON(a.Content)
	}
	return json.Marshal(out)
}

func (r *ResultMessage) UnmarshalJSON(data []byte) error {
	var body struct {
		Subtype       string   `json:"subtype"`
		Result        *string  `json:"result"`
		TotalCostUSD  *float64 `json:"total_cost_usd"`
		DurationMS    *int64   `json:"duration_ms"`
		DurationAPIMS *float64 `json:"duration_api_ms"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	extra, err := extraFields(data, "subtype", "result", "total_cost_usd", "duration_ms", "duration_api_ms")
	if err != nil {
		return err
	}
	*r = ResultMessage{
		Subtype:       body.Subtype,
		Result:        body.Result,
		TotalCostUSD:  body.TotalCostUSD,
		DurationMS:    body.DurationMS,
		DurationAPIMS: body.DurationAPIMS,
		Extra:         extra,
	}
	return nil
}

func (r ResultMessage) MarshalJSON() ([]byte, error) {
	out := mergeExtra(r.Extra)
	out["type"] = rawJSON(MessageTypeResult)
	out["subtype"] = rawJSON(r.Subtype)
	if r.Result != nil {
		out["result"] = rawJSON(*r.Result)
	}
	if r.TotalCostUSD != nil {
		out["total_cost_usd"] = rawJSON(*r.TotalCostUSD)
	}
	if r.DurationMS != nil {
		out["duration_ms"] = rawJSON(*r.DurationMS)
	}
	if r.DurationAPIMS != nil {
		out["duration_api_ms"] = rawJSON(*r.DurationAPIMS)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes one content block. An unrecognized block type never
// fails the containing message; it decodes into an opaque block.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	*b = ContentBlock{
		Type: head.Type,
		Raw:  append(json.RawMessage(nil), data...),
	}

	switch head.Type {
	case BlockTypeText:
		b.Text = &TextBlock{}
		return json.Unmarshal(data, b.Text)
	case BlockTypeToolUse:
		b.ToolUse = &ToolUseBlock{}
		return json.Unmarshal(data, b.ToolUse)
	case BlockTypeToolResult:
		b.ToolResult = &ToolResultBlock{}
		return json.Unmarshal(data, b.ToolResult)
	default:
		return nil
	}
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch {
	case b.Text != nil:
		return json.Marshal(b.Text)
	case b.ToolUse != nil:
		return json.Marshal(b.ToolUse)
	case b.ToolResult != nil:
		return json.Marshal(b.ToolResult)
	case len(b.Raw) > 0:
		return b.Raw, nil
	default:
		return nil, fmt.Errorf("claudecode: cannot marshal empty content block")
	}
}

func (t *TextBlock) UnmarshalJSON(data []byte) error {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	extra, err := extraFields(data, "text")
	if err != nil {
		return err
	}
	*t = TextBlock{Text: body.Text, Extra: extra}
	return nil
}

func (t TextBlock) MarshalJSON() ([]byte, error) {
	out := mergeExtra(t.Extra)
	out["type"] = rawJSON(BlockTypeText)
	out["text"] = rawJSON(t.Text)
	return json.Marshal(out)
}

func (t *ToolUseBlock) UnmarshalJSON(data []byte) error {
	var body struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	extra, err := extraFields(data, "id", "name", "input")
	if err != nil {
		return err
	}
	*t = ToolUseBlock{ID: body.ID, Name: body.Name, Input: body.Input, Extra: extra}
	return nil
}

func (t ToolUseBlock) MarshalJSON() ([]byte, error) {
	out := mergeExtra(t.Extra)
	out["type"] = rawJSON(BlockTypeToolUse)
	out["id"] = rawJSON(t.ID)
	out["name"] = rawJSON(t.Name)
	if len(t.Input) > 0 {
		out["input"] = t.Input
	}
	return json.Marshal(out)
}

func (t *ToolResultBlock) UnmarshalJSON(data []byte) error {
	var body struct {
		ToolUseID string          `json:"tool_use_id"`
		Content   json.RawMessage `json:"content"`
		IsError   *bool           `json:"is_error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	extra, err := extraFields(data, "tool_use_id", "content", "is_error")
	if err != nil {
		return err
	}
	*t = ToolResultBlock{ToolUseID: body.ToolUseID, Content: body.Content, IsError: body.IsError, Extra: extra}
	return nil
}

func (t ToolResultBlock) MarshalJSON() ([]byte, error) {
	out := mergeExtra(t.Extra)
	out["type"] = rawJSON(BlockTypeToolResult)
	out["tool_use_id"] = rawJSON(t.ToolUseID)
	if len(t.Content) > 0 {
		out["content"] = t.Content
	}
	if t.IsError != nil {
		out["is_error"] = rawJSON(*t.IsError)
	}
	return json.Marshal(out)
}
