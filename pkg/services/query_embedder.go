package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/llm"
	"github.com/schemalink/schemalink-engine/pkg/retry"
)

// QueryEmbedder turns a search query into a vector. Distinct from the
// EmbeddingCache: query vectors are ephemeral and keyed by query text, not
// attached to catalog entities.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type queryEmbedder struct {
	client llm.EmbeddingClient
	cache  *redis.Client // nil disables caching
	ttl    time.Duration
	logger *zap.Logger
}

// NewQueryEmbedder creates a QueryEmbedder. A nil redis client disables the
// cache and every call hits the generator. Repeated questions against the
// same schema are common enough that the cache pays for itself.
func NewQueryEmbedder(client llm.EmbeddingClient, cache *redis.Client, ttl time.Duration, logger *zap.Logger) QueryEmbedder {
	return &queryEmbedder{
		client: client,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("query-embedder"),
	}
}

var _ QueryEmbedder = (*queryEmbedder)(nil)

func (e *queryEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	key := "query-embedding:" + Fingerprint(query)

	if e.cache != nil {
		raw, err := e.cache.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var vec []float32
			if jsonErr := json.Unmarshal(raw, &vec); jsonErr == nil && len(vec) == e.client.Dimensions() {
				return vec, nil
			}
			// Corrupt or stale-dimension entry; fall through and overwrite.
		case !errors.Is(err, redis.Nil):
			e.logger.Warn("query embedding cache read failed", zap.Error(err))
		}
	}

	var vec []float32
	err := retry.DoIfRetryable(ctx, nil, func() error {
		var embedErr error
		vec, embedErr = e.client.CreateEmbedding(ctx, query)
		return embedErr
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if raw, jsonErr := json.Marshal(vec); jsonErr == nil {
			if err := e.cache.Set(ctx, key, raw, e.ttl).Err(); err != nil {
				e.logger.Warn("query embedding cache write failed", zap.Error(err))
			}
		}
	}

	return vec, nil
}
