// Package nlsql implements the natural-language-to-SQL tool: it asks the
// model to generate a SQL query for the support database, executes it, and
// asks the model to explain the result.
package nlsql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"

	"github.com/mpatwa/resolute/pkg/tool"
)

const maxGenRetries = 3

// DefaultSchema describes the support-log table the generator may query.
const DefaultSchema = `CREATE TABLE logs (
	log_time timestamp NULL,
	source_system varchar(100) NULL,
	source_application text NULL,
	source_module text NULL,
	log_type text NULL,
	tags text NULL,
	description text NULL
)`

const generatorInstructions = `You are a PostgreSQL expert. Given an input question, create a complete, syntactically correct PostgreSQL query to run on the database.
- Ensure case-insensitive filtering for string columns.
- Trim spaces when filtering values to avoid mismatches.
- Unless the user asks for a specific number of examples, query for at most 5 results using LIMIT, ordered to return the most informative rows.
- If the user asks to list source systems, applications or modules, use DISTINCT and return the complete list without a LIMIT.
- Never query for all columns from a table; use only the column names visible in the schema below, and be careful not to query columns that do not exist.
- Make sure generated SQL has an alias for calculated fields.
- Use CURRENT_DATE if the question involves "today".`

// Generator produces text completions for SQL generation and explanation.
// Satisfied by the model provider.
type Generator interface {
	GenerateText(ctx context.Context, modelName, instructions, prompt string) (string, error)
}

// Service answers database questions by generating and executing SQL.
type Service struct {
	db     *sql.DB
	gen    Generator
	model  string
	schema string
}

// New opens the support database and returns a Service.
func New(databaseURL string, gen Generator, modelName string) (*Service, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewWithDB(db, gen, modelName), nil
}

// NewWithDB wraps an existing database handle.
func NewWithDB(db *sql.DB, gen Generator, modelName string) *Service {
	return &Service{db: db, gen: gen, model: modelName, schema: DefaultSchema}
}

// SetSchema overrides the table schema shown to the generator.
func (s *Service) SetSchema(ddl string) { s.schema = ddl }

// Close closes the underlying database connection.
func (s *Service) Close() error {
	return s.db.Close()
}

// Spec declares the database tool. Terminal: its structured result is the
// answer and is returned without another model pass.
func (s *Service) Spec() tool.Spec {
	return tool.Spec{
		Name:        "lq_tool",
		Description: "Answer for database query related questions.",
		Params: []tool.Param{
			{Name: "query", Type: "string", Description: "The user's question about the data.", Required: true},
		},
		Terminal: true,
	}
}

// response is the serialized tool payload.
type response struct {
	SQLString     string `json:"sql_string"`
	SQLResult     string `json:"sql_result"`
	ExplainResult string `json:"explain_result"`
	ResultList    []any  `json:"result_list"`
}

// Call implements tool.Handler.
func (s *Service) Call(ctx context.Context, args map[string]string) (string, error) {
	question := args["query"]

	sqlString, rows, err := s.generateAndRun(ctx, question)
	if err != nil {
		return "", err
	}

	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encoding rows: %w", err)
	}

	explain, err := s.explain(ctx, question, string(rowsJSON))
	if err != nil {
		return "", err
	}

	resultList := make([]any, 0, len(rows))
	for _, r := range rows {
		resultList = append(resultList, r)
	}

	out, err := json.Marshal(response{
		SQLString:     sqlString,
		SQLResult:     string(rowsJSON),
		ExplainResult: explain,
		ResultList:    resultList,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// generateAndRun asks the model for SQL and executes it, feeding execution
// errors back into regeneration up to maxGenRetries attempts.
func (s *Service) generateAndRun(ctx context.Context, question string) (string, []map[string]any, error) {
	prompt := fmt.Sprintf("%s\n\nGenerate SQL for: %s", s.schema, question)

	var lastErr error
	for attempt := 0; attempt < maxGenRetries; attempt++ {
		p := prompt
		if lastErr != nil {
			p += fmt.Sprintf("\n\nThe previous attempt failed with: %v\nGenerate a corrected query.", lastErr)
		}

		raw, err := s.gen.GenerateText(ctx, s.model, generatorInstructions, p)
		if err != nil {
			return "", nil, fmt.Errorf("generating SQL: %w", err)
		}
		sqlString := StripFence(raw)

		rows, err := s.runQuery(ctx, sqlString)
		if err != nil {
			slog.Warn("Generated SQL failed", "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		return sqlString, rows, nil
	}
	return "", nil, fmt.Errorf("executing generated SQL: %w", lastErr)
}

func (s *Service) runQuery(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[col] = v
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *Service) explain(ctx context.Context, question, rowsJSON string) (string, error) {
	prompt := fmt.Sprintf(
		"A user asked: %s\n\nThe database returned these rows as JSON:\n%s\n\n"+
			"Summarize the result for the user in plain language. Do not mention SQL or the database schema.",
		question, rowsJSON,
	)
	explain, err := s.gen.GenerateText(ctx, s.model, "", prompt)
	if err != nil {
		return "", fmt.Errorf("explaining result: %w", err)
	}
	return explain, nil
}

// StripFence extracts the SQL from a markdown code fence if present.
func StripFence(in string) string {
	lower := strings.ToLower(in)
	start := strings.Index(lower, "```sql")
	if start == -1 {
		return strings.TrimSpace(in)
	}
	rest := in[start+len("```sql"):]
	if end := strings.LastIndex(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
