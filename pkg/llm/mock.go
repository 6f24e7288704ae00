package llm

import (
	"context"
)

// MockEmbeddingClient is a configurable mock for testing embedding consumers.
// Set the function fields to control behavior in tests.
type MockEmbeddingClient struct {
	// CreateEmbeddingFunc is called when CreateEmbedding is invoked.
	// If nil, returns a fixed small vector and nil error.
	CreateEmbeddingFunc func(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddingsFunc is called when CreateEmbeddings is invoked.
	// If nil, returns one fixed vector per input and nil error.
	CreateEmbeddingsFunc func(ctx context.Context, inputs []string) ([][]float32, error)

	// Dims is returned by Dimensions. Defaults to 3.
	Dims int

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	// Call tracking for verification
	CreateEmbeddingCalls  int
	CreateEmbeddingsCalls int
}

// NewMockEmbeddingClient creates a new mock with sensible defaults.
func NewMockEmbeddingClient() *MockEmbeddingClient {
	return &MockEmbeddingClient{
		Dims:     3,
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

// CreateEmbedding implements EmbeddingClient.
func (m *MockEmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.CreateEmbeddingCalls++
	if m.CreateEmbeddingFunc != nil {
		return m.CreateEmbeddingFunc(ctx, input)
	}
	return m.defaultVector(), nil
}

// CreateEmbeddings implements EmbeddingClient.
func (m *MockEmbeddingClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	m.CreateEmbeddingsCalls++
	if m.CreateEmbeddingsFunc != nil {
		return m.CreateEmbeddingsFunc(ctx, inputs)
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = m.defaultVector()
	}
	return out, nil
}

// Dimensions implements EmbeddingClient.
func (m *MockEmbeddingClient) Dimensions() int {
	if m.Dims <= 0 {
		return 3
	}
	return m.Dims
}

// GetModel implements EmbeddingClient.
func (m *MockEmbeddingClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements EmbeddingClient.
func (m *MockEmbeddingClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Reset clears call tracking counters.
func (m *MockEmbeddingClient) Reset() {
	m.CreateEmbeddingCalls = 0
	m.CreateEmbeddingsCalls = 0
}

func (m *MockEmbeddingClient) defaultVector() []float32 {
	v := make([]float32, m.Dimensions())
	for i := range v {
		v[i] = 0.1
	}
	return v
}

// Ensure MockEmbeddingClient implements EmbeddingClient at compile time.
var _ EmbeddingClient = (*MockEmbeddingClient)(nil)
