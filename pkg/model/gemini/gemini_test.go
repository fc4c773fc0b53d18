package gemini

import (
	"testing"

	"github.com/mpatwa/resolute/pkg/domain"
	"github.com/mpatwa/resolute/pkg/model"
	"github.com/mpatwa/resolute/pkg/tool"
	"google.golang.org/genai"
)

func TestBuildToolDeclarations(t *testing.T) {
	specs := []tool.Spec{
		{
			Name:        "kb_tool",
			Description: "search the knowledge base",
			Params: []tool.Param{
				{Name: "query", Type: "string", Description: "search query", Required: true},
				{Name: "limit", Type: "integer"},
			},
		},
		{Name: "create_ticket", Description: "open a ticket"},
	}

	tools := buildToolDeclarations(specs)
	if len(tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(tools))
	}
	decls := tools[0].FunctionDeclarations
	if len(decls) != 2 {
		t.Fatalf("declarations = %d, want 2", len(decls))
	}

	kb := decls[0]
	if kb.Name != "kb_tool" || kb.Description != "search the knowledge base" {
		t.Errorf("decl = %+v", kb)
	}
	q := kb.Parameters.Properties["query"]
	if q == nil || q.Type != genai.TypeString || q.Description != "search query" {
		t.Errorf("query schema = %+v", q)
	}
	if l := kb.Parameters.Properties["limit"]; l == nil || l.Type != genai.TypeInteger {
		t.Errorf("limit schema = %+v", l)
	}
	if len(kb.Parameters.Required) != 1 || kb.Parameters.Required[0] != "query" {
		t.Errorf("required = %v", kb.Parameters.Required)
	}
}

func TestMessagesToContents(t *testing.T) {
	msgs := []model.Message{
		{
			Role:    domain.RoleUser,
			Content: []model.Content{{Type: domain.ContentTypeText, Text: "what errors happened?"}},
		},
		{
			Role: domain.RoleAssistant,
			Content: []model.Content{{
				Type: domain.ContentTypeToolCall,
				ToolCall: &domain.ToolCall{
					ID:    "c1",
					Name:  "lq_tool",
					Input: map[string]any{"query": "errors"},
				},
			}},
		},
		{
			Role: domain.RoleTool,
			Content: []model.Content{{
				Type: domain.ContentTypeToolResult,
				ToolResult: &domain.ToolResult{
					ToolCallID: "c1",
					ToolName:   "lq_tool",
					Content:    "2 rows",
				},
			}},
		},
	}

	contents := messagesToContents(msgs)
	if len(contents) != 3 {
		t.Fatalf("contents = %d, want 3", len(contents))
	}

	if contents[0].Role != "user" || contents[0].Parts[0].Text != "what errors happened?" {
		t.Errorf("contents[0] = %+v", contents[0])
	}

	if contents[1].Role != "model" {
		t.Errorf("tool call role = %q, want model", contents[1].Role)
	}
	fc := contents[1].Parts[0].FunctionCall
	if fc == nil || fc.Name != "lq_tool" || fc.ID != "c1" {
		t.Errorf("FunctionCall = %+v", fc)
	}

	// Tool results go back on the user role as function responses.
	if contents[2].Role != "user" {
		t.Errorf("tool result role = %q, want user", contents[2].Role)
	}
	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "lq_tool" || fr.ID != "c1" {
		t.Errorf("FunctionResponse = %+v", fr)
	}
	if fr.Response["result"] != "2 rows" {
		t.Errorf("Response = %v", fr.Response)
	}
}

func TestMessagesToContentsNameFallback(t *testing.T) {
	// A result without a tool name resolves it from the matching call ID.
	msgs := []model.Message{
		{
			Role: domain.RoleAssistant,
			Content: []model.Content{{
				Type:     domain.ContentTypeToolCall,
				ToolCall: &domain.ToolCall{ID: "c9", Name: "kb_tool"},
			}},
		},
		{
			Role: domain.RoleTool,
			Content: []model.Content{{
				Type:       domain.ContentTypeToolResult,
				ToolResult: &domain.ToolResult{ToolCallID: "c9", Content: "doc"},
			}},
		},
	}

	contents := messagesToContents(msgs)
	fr := contents[1].Parts[0].FunctionResponse
	if fr.Name != "kb_tool" {
		t.Errorf("FunctionResponse.Name = %q, want resolved kb_tool", fr.Name)
	}
}

func TestMessagesToContentsSkipsEmpty(t *testing.T) {
	msgs := []model.Message{
		{Role: domain.RoleUser, Content: nil},
		{Role: domain.RoleUser, Content: []model.Content{{Type: domain.ContentTypeText, Text: "hi"}}},
	}

	contents := messagesToContents(msgs)
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1 (empty message dropped)", len(contents))
	}
}
