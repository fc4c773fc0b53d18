package engine

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mpatwa/resolute/pkg/domain"
	"github.com/mpatwa/resolute/pkg/model"
)

func TestGovernorTriggersSummarization(t *testing.T) {
	p := &fakeProvider{
		replies: textReplies(6),
		summaries: []string{
			"User reported several issues.",
		},
	}
	e := newTestEngine(t, p, nil, Options{MaxMessages: 4, RetainMessages: 2})
	ctx := context.Background()

	// Two turns stay within the window.
	e.Invoke(ctx, "th-1", "first question")
	state, err := e.Invoke(ctx, "th-1", "second question")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if state.Summary != "" {
		t.Fatalf("Summary set too early: %q", state.Summary)
	}
	if len(state.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(state.Messages))
	}

	// Third turn pushes past MaxMessages.
	state, err = e.Invoke(ctx, "th-1", "third question")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if state.Summary != "User reported several issues." {
		t.Errorf("Summary = %q", state.Summary)
	}
	if len(state.Messages) != 2 {
		t.Errorf("messages after truncation = %d, want 2", len(state.Messages))
	}
	// The newest turn survives.
	if state.Messages[0].Content != "third question" {
		t.Errorf("retained window starts at %q, want the latest user message", state.Messages[0].Content)
	}
	if p.generateCalls != 1 {
		t.Errorf("generateCalls = %d, want 1", p.generateCalls)
	}
}

func TestSummaryIsExtendedNotReplaced(t *testing.T) {
	p := &fakeProvider{
		replies: textReplies(12),
		summaries: []string{
			"First summary.",
			"First summary. Second batch covered.",
		},
	}
	e := newTestEngine(t, p, nil, Options{MaxMessages: 4, RetainMessages: 2})
	ctx := context.Background()

	for _, q := range []string{"q1", "q2", "q3"} {
		if _, err := e.Invoke(ctx, "th-1", q); err != nil {
			t.Fatalf("Invoke %q: %v", q, err)
		}
	}
	// First summarization happened after q3.

	for _, q := range []string{"q4", "q5"} {
		if _, err := e.Invoke(ctx, "th-1", q); err != nil {
			t.Fatalf("Invoke %q: %v", q, err)
		}
	}

	state, err := e.GetState(ctx, "th-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.Summary != "First summary. Second batch covered." {
		t.Errorf("Summary = %q", state.Summary)
	}

	// The second summarization prompt must carry the existing summary forward.
	if len(p.prompts) != 2 {
		t.Fatalf("prompts = %d, want 2", len(p.prompts))
	}
	if !strings.Contains(p.prompts[1], "EXISTING SUMMARY") {
		t.Error("second prompt missing existing-summary section")
	}
	if !strings.Contains(p.prompts[1], "First summary.") {
		t.Error("second prompt does not include the prior summary text")
	}
	if strings.Contains(p.prompts[0], "EXISTING SUMMARY") {
		t.Error("first prompt should not have an existing-summary section")
	}
}

func TestTruncateDropsPairStraddlingBoundary(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{}, nil, Options{RetainMessages: 4})
	ctx := context.Background()

	e.store.CreateThread(ctx, &domain.Thread{ID: "th-1"})

	tc, _ := json.Marshal(domain.ToolCall{ID: "c1", Name: "kb_tool"})
	tr, _ := json.Marshal(domain.ToolResult{ToolCallID: "c1", ToolName: "kb_tool", Content: "doc"})
	seed := []domain.Message{
		{Role: domain.RoleUser, ContentType: domain.ContentTypeText, Content: "u0"},
		{Role: domain.RoleAssistant, ContentType: domain.ContentTypeToolCall, Content: string(tc)},
		{Role: domain.RoleTool, ContentType: domain.ContentTypeToolResult, Content: string(tr)},
		{Role: domain.RoleAssistant, ContentType: domain.ContentTypeText, Content: "a3"},
		{Role: domain.RoleUser, ContentType: domain.ContentTypeText, Content: "u4"},
		{Role: domain.RoleAssistant, ContentType: domain.ContentTypeText, Content: "a5"},
	}
	for i := range seed {
		seed[i].ID = uuid.New().String()
		seed[i].ThreadID = "th-1"
		if err := e.store.AppendMessage(ctx, &seed[i]); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	// A plain 4-message window would start on the tool result, separating it
	// from its call. The straddling pair is dropped whole; the retained
	// window never grows past the configured size.
	if err := e.truncate(ctx, "th-1", seed); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	msgs, _ := e.store.GetMessages(ctx, "th-1")
	if len(msgs) > e.opts.RetainMessages {
		t.Fatalf("messages = %d, want at most %d", len(msgs), e.opts.RetainMessages)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Content != "a3" {
		t.Errorf("retained window starts at %q, want a3", msgs[0].Content)
	}
	// No orphan tool messages survive.
	for _, m := range msgs {
		if m.Role == domain.RoleTool || m.ContentType == domain.ContentTypeToolCall {
			t.Errorf("orphan tool message retained: %+v", m)
		}
	}
}

func TestSummarizeEmptyModelOutputFails(t *testing.T) {
	p := &fakeProvider{summaries: []string{"   "}}
	e := newTestEngine(t, p, nil, Options{RetainMessages: 2})
	ctx := context.Background()

	e.store.CreateThread(ctx, &domain.Thread{ID: "th-1"})
	msgs := []domain.Message{
		{ID: uuid.New().String(), ThreadID: "th-1", Role: domain.RoleUser, ContentType: domain.ContentTypeText, Content: "hello"},
	}
	e.store.AppendMessage(ctx, &msgs[0])

	err := e.summarize(ctx, &domain.Thread{ID: "th-1"}, msgs)
	if err == nil || !strings.Contains(err.Error(), "empty summary") {
		t.Fatalf("err = %v, want empty summary error", err)
	}
}

func TestSummaryInput(t *testing.T) {
	tc, _ := json.Marshal(domain.ToolCall{ID: "c1", Name: "kb_tool"})
	tr, _ := json.Marshal(domain.ToolResult{ToolCallID: "c1", ToolName: "kb_tool", Content: "restart the router"})

	got := summaryInput([]domain.Message{
		{Role: domain.RoleUser, ContentType: domain.ContentTypeText, Content: "wifi is down"},
		{Role: domain.RoleAssistant, ContentType: domain.ContentTypeToolCall, Content: string(tc)},
		{Role: domain.RoleTool, ContentType: domain.ContentTypeToolResult, Content: string(tr)},
		{Role: domain.RoleAssistant, ContentType: domain.ContentTypeText, Content: "Try restarting the router."},
	})

	if !strings.Contains(got, "[user] wifi is down") {
		t.Errorf("missing user line: %q", got)
	}
	if !strings.Contains(got, "[tool kb_tool] restart the router") {
		t.Errorf("missing decoded tool result: %q", got)
	}
	if strings.Contains(got, string(tc)) {
		t.Errorf("raw tool call leaked into summary input: %q", got)
	}
}

// textReplies builds n direct text replies for multi-turn tests.
func textReplies(n int) []model.Message {
	var out []model.Message
	for i := 0; i < n; i++ {
		out = append(out, textReply("answer"))
	}
	return out
}
