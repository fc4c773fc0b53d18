// Package resolution implements the issue-resolution-matching tool: it
// retrieves the resolution section of known issues similar to the user's
// problem description.
package resolution

import (
	"context"
	"strings"

	"github.com/mpatwa/resolute/pkg/tool"
)

// NoResolutionFound is the sentinel returned when no known issue matches.
// It is an ordinary successful result, not an error.
const NoResolutionFound = "No resolution found."

// Retriever returns document chunks matching a query, best first.
// Satisfied by *knowledge.Service.
type Retriever interface {
	Chunks(ctx context.Context, query string) ([]string, error)
}

// Service matches issue descriptions against indexed resolutions.
type Service struct {
	index Retriever
}

// New creates a resolution-matching service. The retriever should be scoped
// to the resolutions namespace of the index.
func New(index Retriever) *Service {
	return &Service{index: index}
}

// Spec declares the resolution tool. Advisory: the model phrases the final
// answer around the matched resolution.
func (s *Service) Spec() tool.Spec {
	return tool.Spec{
		Name:        "ir_tool",
		Description: "Find the known resolution for an issue or error the user describes.",
		Params: []tool.Param{
			{Name: "query", Type: "string", Description: "Description of the issue.", Required: true},
		},
	}
}

// Call implements tool.Handler.
func (s *Service) Call(ctx context.Context, args map[string]string) (string, error) {
	chunks, err := s.index.Chunks(ctx, args["query"])
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return NoResolutionFound, nil
	}
	return strings.Join(chunks, "\n\n---\n\n"), nil
}
