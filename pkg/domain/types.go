package domain

import "time"

// Thread is a persisted conversation session. It is created implicitly on the
// first message for an unknown ID and carries a rolling summary that replaces
// truncated older history.
type Thread struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single entry in a thread's history.
type Message struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	Role        Role      `json:"role"`
	ContentType string    `json:"content_type"` // "text", "tool_call", "tool_result"
	Content     string    `json:"content"`      // Text content or JSON-encoded tool call/result
	Timestamp   time.Time `json:"timestamp"`
}

// ToolCall represents a tool invocation requested by the model. An assistant
// turn issues at most one.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult is the canonical result envelope produced by dispatch. ToolName
// is the tag the router inspects to decide the next transition; downstream
// code never re-derives it from the payload shape.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}
