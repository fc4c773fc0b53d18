package nlsql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// fakeGenerator replays scripted completions.
type fakeGenerator struct {
	outputs []string
	calls   int
	prompts []string
}

func (g *fakeGenerator) GenerateText(ctx context.Context, modelName, instructions, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.calls >= len(g.outputs) {
		return "", context.Canceled
	}
	out := g.outputs[g.calls]
	g.calls++
	return out, nil
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE logs (
		source_system TEXT,
		log_type TEXT,
		description TEXT
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, row := range [][]string{
		{"billing", "ERROR", "payment declined"},
		{"auth", "ERROR", "token expired"},
		{"auth", "INFO", "login ok"},
	} {
		if _, err := db.Exec(`INSERT INTO logs VALUES (?, ?, ?)`, row[0], row[1], row[2]); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return db
}

func TestCall(t *testing.T) {
	gen := &fakeGenerator{outputs: []string{
		"```sql\nSELECT source_system, description FROM logs WHERE log_type = 'ERROR'\n```",
		"There were two errors, one in billing and one in auth.",
	}}
	s := NewWithDB(newTestDB(t), gen, "test-model")

	out, err := s.Call(context.Background(), map[string]string{"query": "what errors happened?"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var resp struct {
		SQLString     string           `json:"sql_string"`
		SQLResult     string           `json:"sql_result"`
		ExplainResult string           `json:"explain_result"`
		ResultList    []map[string]any `json:"result_list"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if !strings.HasPrefix(resp.SQLString, "SELECT source_system") {
		t.Errorf("sql_string = %q, fence not stripped", resp.SQLString)
	}
	if len(resp.ResultList) != 2 {
		t.Fatalf("result_list len = %d, want 2", len(resp.ResultList))
	}
	if resp.ResultList[0]["source_system"] != "billing" {
		t.Errorf("first row = %v", resp.ResultList[0])
	}
	if resp.ExplainResult != "There were two errors, one in billing and one in auth." {
		t.Errorf("explain_result = %q", resp.ExplainResult)
	}
	if resp.SQLResult == "" {
		t.Error("sql_result empty")
	}
}

func TestCallRetriesOnBadSQL(t *testing.T) {
	gen := &fakeGenerator{outputs: []string{
		"SELECT nonexistent_column FROM logs",
		"SELECT description FROM logs WHERE log_type = 'INFO'",
		"One informational entry about a successful login.",
	}}
	s := NewWithDB(newTestDB(t), gen, "test-model")

	out, err := s.Call(context.Background(), map[string]string{"query": "info logs"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	// The regeneration prompt must carry the execution error back.
	if len(gen.prompts) < 2 || !strings.Contains(gen.prompts[1], "previous attempt failed") {
		t.Errorf("retry prompt missing error feedback: %q", gen.prompts)
	}

	var resp struct {
		ResultList []map[string]any `json:"result_list"`
	}
	json.Unmarshal([]byte(out), &resp)
	if len(resp.ResultList) != 1 {
		t.Errorf("result_list len = %d, want 1", len(resp.ResultList))
	}
}

func TestCallGivesUpAfterRetries(t *testing.T) {
	gen := &fakeGenerator{outputs: []string{
		"SELECT broken FROM logs",
		"SELECT broken FROM logs",
		"SELECT broken FROM logs",
	}}
	s := NewWithDB(newTestDB(t), gen, "test-model")

	_, err := s.Call(context.Background(), map[string]string{"query": "anything"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if gen.calls != maxGenRetries {
		t.Errorf("generator calls = %d, want %d", gen.calls, maxGenRetries)
	}
}

func TestStripFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "SELECT 1", "SELECT 1"},
		{"plain fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"uppercase tag", "```SQL\nSELECT 1\n```", "SELECT 1"},
		{"leading prose", "Here you go:\n```sql\nSELECT 1\n```", "SELECT 1"},
		{"trailing prose", "```sql\nSELECT 1\n```\nHope that helps.", "SELECT 1"},
		{"unterminated fence", "```sql\nSELECT 1", "SELECT 1"},
		{"whitespace only", "  SELECT 1  ", "SELECT 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFence(tc.in); got != tc.want {
				t.Errorf("StripFence(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSetSchema(t *testing.T) {
	gen := &fakeGenerator{outputs: []string{
		"SELECT description FROM logs LIMIT 1",
		"ok",
	}}
	s := NewWithDB(newTestDB(t), gen, "test-model")
	s.SetSchema("CREATE TABLE logs (description TEXT)")

	if _, err := s.Call(context.Background(), map[string]string{"query": "q"}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(gen.prompts[0], "CREATE TABLE logs (description TEXT)") {
		t.Errorf("generator prompt missing overridden schema: %q", gen.prompts[0])
	}
}
