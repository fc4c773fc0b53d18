package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mpatwa/resolute/pkg/domain"
)

const summarizerInstructions = "You are a conversation summarizer for a customer support assistant."

// summarize collapses older history into the thread's rolling summary and
// truncates the retained messages. The summary only ever grows: an existing
// summary is extended, never rewritten from scratch or discarded.
func (e *Engine) summarize(ctx context.Context, th *domain.Thread, msgs []domain.Message) error {
	transcript := summaryInput(msgs)
	if transcript == "" {
		// Nothing with textual content to compress; just truncate.
		return e.truncate(ctx, th.ID, msgs)
	}

	var sb strings.Builder
	if th.Summary == "" {
		sb.WriteString("Create a dense summary of the following support conversation. Preserve:\n")
	} else {
		sb.WriteString("Below is the existing summary of a support conversation, followed by newer messages. " +
			"Extend the summary to cover the new messages without dropping anything from the existing summary. Preserve:\n")
	}
	sb.WriteString("- The user's questions and the answers they were given\n" +
		"- Any ticket IDs, email addresses, or other identifiers mentioned\n" +
		"- Open requests that have not been resolved yet\n\n")

	if th.Summary != "" {
		sb.WriteString("EXISTING SUMMARY:\n")
		sb.WriteString(th.Summary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("CONVERSATION:\n")
	sb.WriteString(transcript)

	summary, err := e.provider.GenerateText(ctx, e.opts.SummaryModel, summarizerInstructions, sb.String())
	if err != nil {
		return fmt.Errorf("generating summary: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return fmt.Errorf("model returned empty summary")
	}

	if err := e.store.SetSummary(ctx, th.ID, summary); err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	th.Summary = summary

	return e.truncate(ctx, th.ID, msgs)
}

// truncate keeps at most the retained window. When the window boundary would
// separate a tool call from its result, the split moves forward past the
// straddling pair: the pair is dropped whole and the window only ever
// shrinks, never grows.
func (e *Engine) truncate(ctx context.Context, threadID string, msgs []domain.Message) error {
	keep := e.opts.RetainMessages
	if keep >= len(msgs) {
		return nil
	}

	splitIdx := len(msgs) - keep
	for splitIdx < len(msgs) {
		m := msgs[splitIdx]
		// Don't start the retained window on a tool result (its call is
		// already gone), and don't cut right after an unanswered tool call.
		if m.Role == domain.RoleTool {
			splitIdx++
			continue
		}
		if msgs[splitIdx-1].ContentType == domain.ContentTypeToolCall {
			splitIdx++
			continue
		}
		break
	}

	if err := e.store.TruncateMessages(ctx, threadID, len(msgs)-splitIdx); err != nil {
		return fmt.Errorf("truncating messages: %w", err)
	}
	return nil
}

// summaryInput renders the messages that carry prose. Tool-call-only
// assistant messages are excluded; tool results contribute their decoded
// content rather than the raw envelope.
func summaryInput(msgs []domain.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		switch m.ContentType {
		case domain.ContentTypeText:
			if m.Content == "" {
				continue
			}
			fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
		case domain.ContentTypeToolResult:
			var tr domain.ToolResult
			if err := json.Unmarshal([]byte(m.Content), &tr); err != nil {
				continue
			}
			if tr.Content == "" {
				continue
			}
			fmt.Fprintf(&sb, "[tool %s] %s\n", tr.ToolName, tr.Content)
		}
	}
	return sb.String()
}
