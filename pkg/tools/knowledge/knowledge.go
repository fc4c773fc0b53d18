// Package knowledge implements vector-index-backed document retrieval for the
// knowledge-base tool.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"

	"github.com/mpatwa/resolute/pkg/tool"
)

const defaultTopK = 5

// Embedder produces an embedding vector for a query string.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service retrieves document chunks from a Pinecone index namespace.
type Service struct {
	client    *pinecone.Client
	embedder  Embedder
	indexName string
	namespace string
	topK      uint32
}

// NewService creates a retrieval service over the given index namespace.
func NewService(apiKey string, embedder Embedder, indexName, namespace string) (*Service, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}
	return &Service{
		client:    pc,
		embedder:  embedder,
		indexName: indexName,
		namespace: namespace,
		topK:      defaultTopK,
	}, nil
}

// Chunks embeds the query and returns the matching document chunks, best first.
func (s *Service) Chunks(ctx context.Context, query string) ([]string, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	idxDesc, err := s.client.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index: %w", err)
	}

	idxConn, err := s.client.Index(pinecone.NewIndexConnParams{
		Host:      idxDesc.Host,
		Namespace: s.namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}

	result, err := idxConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            s.topK,
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	slog.Debug("Knowledge retrieval", "namespace", s.namespace, "matches", len(result.Matches))

	var chunks []string
	for _, match := range result.Matches {
		if match.Vector == nil || match.Vector.Metadata == nil {
			continue
		}
		if chunk := formatChunk(match.Vector.Metadata.AsMap()); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// formatChunk renders one match's metadata as a text block.
func formatChunk(metadata map[string]any) string {
	var parts []string
	if title, ok := metadata["title"].(string); ok && title != "" {
		parts = append(parts, "Section: "+title)
	}
	if content, ok := metadata["content"].(string); ok && content != "" {
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n")
}

// Spec declares the knowledge tool. Advisory: the model phrases the final
// answer from the retrieved chunks.
func (s *Service) Spec() tool.Spec {
	return tool.Spec{
		Name:        "kb_tool",
		Description: "Answer for knowledge-based questions.",
		Params: []tool.Param{
			{Name: "query", Type: "string", Description: "The user's question.", Required: true},
		},
	}
}

// Call implements tool.Handler.
func (s *Service) Call(ctx context.Context, args map[string]string) (string, error) {
	chunks, err := s.Chunks(ctx, args["query"])
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "No relevant documents found.", nil
	}
	return strings.Join(chunks, "\n\n---\n\n"), nil
}
