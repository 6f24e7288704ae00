// Package llm provides OpenAI-compatible embedding client functionality.
package llm

import (
	"context"
)

// EmbeddingClient defines the interface for embedding generation.
// Use this interface for dependency injection to enable mocking in tests.
type EmbeddingClient interface {
	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs in one request.
	// The result preserves input order.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)

	// Dimensions returns the configured embedding dimensionality.
	Dimensions() int

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Ensure Client implements EmbeddingClient at compile time.
var _ EmbeddingClient = (*Client)(nil)
