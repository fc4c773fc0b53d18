// Package engine implements the dialogue orchestration loop: it decides
// whether to call a tool or respond directly, routes tool results back into
// the conversation, compresses long histories into a rolling summary, and
// checkpoints thread state after every step.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mpatwa/resolute/pkg/domain"
	"github.com/mpatwa/resolute/pkg/model"
	"github.com/mpatwa/resolute/pkg/store"
	"github.com/mpatwa/resolute/pkg/tool"
)

const (
	// DefaultMaxMessages is the history length beyond which summarization
	// runs: 4 remembered turns at roughly 4 messages per turn.
	DefaultMaxMessages = 16

	// DefaultRetainMessages is how many recent messages survive truncation.
	DefaultRetainMessages = 4

	// DefaultMaxSteps bounds the number of decision passes per turn so a
	// misbehaving model cannot loop forever.
	DefaultMaxSteps = 8
)

// Options configures the engine.
type Options struct {
	// Model is the decision model name (e.g. "gemini-2.0-flash").
	Model string
	// SummaryModel is used for summarization; falls back to Model when empty.
	SummaryModel string
	// Instructions is the system policy given to the decision model.
	Instructions string

	// MaxMessages triggers summarization when exceeded after a turn.
	MaxMessages int
	// RetainMessages is how many recent messages survive truncation.
	RetainMessages int
	// MaxSteps bounds decision passes per turn.
	MaxSteps int
}

// State is the externally visible thread state.
type State struct {
	Messages []domain.Message `json:"messages"`
	Summary  string           `json:"summary,omitempty"`
}

// Engine runs one conversation turn at a time per thread.
type Engine struct {
	store    store.ThreadStore
	provider model.Provider
	registry *tool.Registry
	opts     Options

	// locks serializes turns per thread ID so concurrent requests against
	// the same thread cannot interleave history.
	locks sync.Map // threadID -> *sync.Mutex
}

// New creates an Engine. Zero option fields fall back to defaults.
func New(st store.ThreadStore, provider model.Provider, registry *tool.Registry, opts Options) *Engine {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.RetainMessages <= 0 {
		opts.RetainMessages = DefaultRetainMessages
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.SummaryModel == "" {
		opts.SummaryModel = opts.Model
	}
	if opts.Instructions == "" {
		opts.Instructions = DefaultInstructions
	}
	return &Engine{
		store:    st,
		provider: provider,
		registry: registry,
		opts:     opts,
	}
}

// Invoke appends the user message to the thread and runs the decision loop to
// one end-of-turn, returning the persisted state. The thread is created
// implicitly if the ID is unknown.
func (e *Engine) Invoke(ctx context.Context, threadID, userMessage string) (*State, error) {
	mu := e.threadLock(threadID)
	mu.Lock()
	defer mu.Unlock()

	th, err := e.store.GetThread(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		th = &domain.Thread{ID: threadID}
		if err := e.store.CreateThread(ctx, th); err != nil {
			return nil, fmt.Errorf("creating thread: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("loading thread: %w", err)
	}

	if err := e.append(ctx, threadID, &domain.Message{
		Role:        domain.RoleUser,
		ContentType: domain.ContentTypeText,
		Content:     userMessage,
	}); err != nil {
		return nil, err
	}

	if err := e.runTurn(ctx, th); err != nil {
		return nil, err
	}

	if err := e.govern(ctx, th); err != nil {
		return nil, err
	}

	return e.state(ctx, threadID)
}

// GetState returns the last persisted checkpoint for a thread.
func (e *Engine) GetState(ctx context.Context, threadID string) (*State, error) {
	return e.state(ctx, threadID)
}

// runTurn drives the decision loop: model call, optional tool dispatch, and
// the terminal-vs-advisory routing decision, until an end-of-turn transition.
func (e *Engine) runTurn(ctx context.Context, th *domain.Thread) error {
	for step := 0; step < e.opts.MaxSteps; step++ {
		tc, err := e.decide(ctx, th)
		if err != nil {
			return err
		}
		if tc == nil {
			// Direct answer, end of turn.
			return nil
		}

		result, err := e.registry.Dispatch(ctx, tc)
		if err != nil {
			// The tool-call message is already checkpointed. Close it out
			// with an error result so the persisted history never ends in
			// a call without a matching result, then fail the turn.
			e.appendToolResult(ctx, th.ID, &domain.ToolResult{
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Content:    fmt.Sprintf("tool %s failed: %v", tc.Name, err),
				IsError:    true,
			})
			return fmt.Errorf("dispatching %s: %w", tc.Name, err)
		}

		if err := e.appendToolResult(ctx, th.ID, result); err != nil {
			return err
		}

		// Terminal tools end the turn with their raw result; advisory
		// results loop back so the model can phrase a final answer. Error
		// envelopes always loop back, whatever the flag, so the model can
		// recover instead of the raw error reaching the user.
		if !result.IsError && e.registry.Terminal(result.ToolName) {
			return nil
		}
	}
	return fmt.Errorf("turn exceeded %d decision steps", e.opts.MaxSteps)
}

// decide runs one decision-model pass and appends its output. It returns the
// requested tool call, or nil when the model answered directly.
func (e *Engine) decide(ctx context.Context, th *domain.Thread) (*domain.ToolCall, error) {
	msgs, err := e.store.GetMessages(ctx, th.ID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}

	instructions := e.buildInstructions(th)

	stream, err := e.provider.Stream(ctx, e.opts.Model, instructions, toModelMessages(msgs), e.registry.Specs())
	if err != nil {
		return nil, fmt.Errorf("calling model: %w", err)
	}
	defer stream.Close()

	reply, err := stream.FullMessage()
	if err != nil {
		return nil, fmt.Errorf("reading model response: %w", err)
	}

	var toolCall *domain.ToolCall
	for _, content := range reply.Content {
		msg := &domain.Message{Role: domain.RoleAssistant}

		switch content.Type {
		case domain.ContentTypeText:
			msg.ContentType = domain.ContentTypeText
			msg.Content = content.Text
		case domain.ContentTypeToolCall:
			if toolCall != nil {
				// One tool call per assistant turn; ignore extras.
				slog.Warn("Model requested multiple tool calls, ignoring extra",
					"threadID", th.ID, "tool", content.ToolCall.Name)
				continue
			}
			toolCall = content.ToolCall
			msg.ContentType = domain.ContentTypeToolCall
			b, _ := json.Marshal(content.ToolCall)
			msg.Content = string(b)
		default:
			continue
		}

		if err := e.append(ctx, th.ID, msg); err != nil {
			return nil, err
		}
	}

	return toolCall, nil
}

// buildInstructions combines the deployment policy with the thread's rolling
// summary so the model sees compacted context without the raw old messages.
func (e *Engine) buildInstructions(th *domain.Thread) string {
	parts := []string{e.opts.Instructions}
	if th.Summary != "" {
		parts = append(parts, "## Conversation Summary So Far\n\n"+th.Summary)
	}
	return strings.Join(parts, "\n\n")
}

// govern reloads the thread and runs the summarizer when the history has
// outgrown the configured window.
func (e *Engine) govern(ctx context.Context, th *domain.Thread) error {
	msgs, err := e.store.GetMessages(ctx, th.ID)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}
	if len(msgs) <= e.opts.MaxMessages {
		return nil
	}

	slog.Info("Summarization triggered",
		"threadID", th.ID,
		"messages", len(msgs),
		"threshold", e.opts.MaxMessages,
	)
	return e.summarize(ctx, th, msgs)
}

func (e *Engine) appendToolResult(ctx context.Context, threadID string, result *domain.ToolResult) error {
	envelope, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding tool result: %w", err)
	}
	return e.append(ctx, threadID, &domain.Message{
		Role:        domain.RoleTool,
		ContentType: domain.ContentTypeToolResult,
		Content:     string(envelope),
	})
}

func (e *Engine) append(ctx context.Context, threadID string, msg *domain.Message) error {
	msg.ID = uuid.New().String()
	msg.ThreadID = threadID
	if err := e.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

func (e *Engine) state(ctx context.Context, threadID string) (*State, error) {
	th, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	msgs, err := e.store.GetMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &State{Messages: msgs, Summary: th.Summary}, nil
}

func (e *Engine) threadLock(threadID string) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(threadID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// toModelMessages converts stored messages to model messages.
func toModelMessages(msgs []domain.Message) []model.Message {
	var out []model.Message
	for _, m := range msgs {
		mm := model.Message{Role: m.Role}
		switch m.ContentType {
		case domain.ContentTypeText:
			mm.Content = []model.Content{{Type: domain.ContentTypeText, Text: m.Content}}
		case domain.ContentTypeToolCall:
			var tc domain.ToolCall
			if err := json.Unmarshal([]byte(m.Content), &tc); err != nil {
				continue
			}
			mm.Content = []model.Content{{Type: domain.ContentTypeToolCall, ToolCall: &tc}}
		case domain.ContentTypeToolResult:
			var tr domain.ToolResult
			if err := json.Unmarshal([]byte(m.Content), &tr); err != nil {
				continue
			}
			mm.Content = []model.Content{{Type: domain.ContentTypeToolResult, ToolResult: &tr}}
		}
		if len(mm.Content) > 0 {
			out = append(out, mm)
		}
	}
	return out
}
