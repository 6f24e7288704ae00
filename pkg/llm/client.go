package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/config"
)

// Client generates embeddings against an OpenAI-compatible endpoint.
type Client struct {
	client     *openai.Client
	endpoint   string
	model      string
	dimensions int
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a new OpenAI-compatible embedding client.
func NewClient(cfg *config.EmbeddingsConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	endpoint := clientConfig.BaseURL
	if cfg.BaseURL != "" {
		endpoint = strings.TrimSuffix(cfg.BaseURL, "/")
		clientConfig.BaseURL = endpoint
	}

	return &Client{
		client:     openai.NewClientWithConfig(clientConfig),
		endpoint:   endpoint,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.EmbedTimeout(),
		logger:     logger.Named("llm"),
	}, nil
}

// CreateEmbedding generates an embedding vector for the input text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	embeddings, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// CreateEmbeddings generates embeddings for multiple inputs in one request.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: inputs,
	})
	if err != nil {
		c.logger.Error("embedding request failed",
			zap.Int("inputs", len(inputs)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings in response, got %d", len(inputs), len(resp.Data))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != c.dimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(d.Embedding), c.dimensions)
		}
		embeddings[i] = d.Embedding
	}

	c.logger.Debug("embedding request completed",
		zap.Int("inputs", len(inputs)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Duration("elapsed", time.Since(start)))

	return embeddings, nil
}

// Dimensions returns the configured embedding dimensionality.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}
