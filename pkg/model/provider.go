package model

import (
	"context"

	"github.com/mpatwa/resolute/pkg/domain"
	"github.com/mpatwa/resolute/pkg/tool"
)

// Message represents a message in the model's conversation context.
type Message struct {
	// Role indicates the sender (user, assistant, tool).
	Role domain.Role
	// Content holds the message parts.
	Content []Content
}

// Content represents a single component of a message.
type Content struct {
	Type string // "text", "tool_call", "tool_result"

	// Text content (when Type == "text").
	Text string `json:"text,omitempty"`

	// Tool call (when Type == "tool_call").
	ToolCall *domain.ToolCall `json:"tool_call,omitempty"`

	// Tool result (when Type == "tool_result").
	ToolResult *domain.ToolResult `json:"tool_result,omitempty"`
}

// Provider represents a service that provides LLM completions (e.g. Gemini).
type Provider interface {
	// Name returns the provider's identifier (e.g. "gemini").
	Name() string

	// Stream sends a conversation context to the LLM and returns a stream
	// of responses. instructions is the system prompt; specs declares the
	// tools the model may call.
	Stream(ctx context.Context, modelName, instructions string, messages []Message, specs []tool.Spec) (ModelStream, error)

	// GenerateText performs a single-shot text completion without tools.
	// Used for summarization and for the tools that generate or explain SQL.
	GenerateText(ctx context.Context, modelName, instructions, prompt string) (string, error)
}

// ModelStream abstracts the stream of responses from the model.
type ModelStream interface {
	// FullMessage blocks until the complete response is available and returns it.
	FullMessage() (Message, error)

	// Close releases resources associated with this stream.
	Close() error
}
