// Package services implements the retrieval engine: embedding maintenance,
// hybrid search, schema graph traversal, and context resolution.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/llm"
	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/repositories"
	"github.com/schemalink/schemalink-engine/pkg/retry"
)

// Fingerprint returns the content hash of an entity's search text. A stored
// fingerprint equal to the current one means the cached embedding is fresh.
func Fingerprint(searchText string) string {
	sum := sha256.Sum256([]byte(searchText))
	return hex.EncodeToString(sum[:])
}

// embedBatchSize caps how many search texts go into one generator request.
const embedBatchSize = 64

// EmbeddingCache keeps entity embeddings in sync with their search text.
// The write path calls EnsureEmbedding after any entity mutation; the
// fingerprint check makes the call a no-op when no searchable field changed.
type EmbeddingCache interface {
	// EnsureEmbedding returns the entity's embedding, regenerating and
	// persisting it only when the search text's fingerprint has changed.
	// The returned bool reports whether a new embedding was computed.
	EnsureEmbedding(ctx context.Context, entity models.Searchable) ([]float32, bool, error)

	// EnsureEmbeddings refreshes a batch of entities, sending every stale
	// search text to the generator in chunked batch requests instead of one
	// call per entity. Returns how many embeddings were persisted.
	EnsureEmbeddings(ctx context.Context, entities []models.Searchable) (int, error)
}

type embeddingCache struct {
	client   llm.EmbeddingClient
	updaters map[models.EntityKind]embeddingUpdater
	locks    keyedMutex
	logger   *zap.Logger
}

type embeddingUpdater func(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error

// NewEmbeddingCache creates an EmbeddingCache backed by the per-kind
// repositories. Categorical values carry no embeddings and are absent from
// the dispatch table.
func NewEmbeddingCache(
	client llm.EmbeddingClient,
	datasources repositories.DatasourceRepository,
	tables repositories.TableRepository,
	columns repositories.ColumnRepository,
	edges repositories.EdgeRepository,
	metrics repositories.MetricRepository,
	synonyms repositories.SynonymRepository,
	rules repositories.ContextRuleRepository,
	examples repositories.ExampleQueryRepository,
	logger *zap.Logger,
) EmbeddingCache {
	return &embeddingCache{
		client: client,
		updaters: map[models.EntityKind]embeddingUpdater{
			models.KindDatasource:   datasources.UpdateEmbedding,
			models.KindTable:        tables.UpdateEmbedding,
			models.KindColumn:       columns.UpdateEmbedding,
			models.KindEdge:         edges.UpdateEmbedding,
			models.KindMetric:       metrics.UpdateEmbedding,
			models.KindSynonym:      synonyms.UpdateEmbedding,
			models.KindContextRule:  rules.UpdateEmbedding,
			models.KindExampleQuery: examples.UpdateEmbedding,
		},
		logger: logger.Named("embedding-cache"),
	}
}

var _ EmbeddingCache = (*embeddingCache)(nil)

func (c *embeddingCache) EnsureEmbedding(ctx context.Context, entity models.Searchable) ([]float32, bool, error) {
	text := entity.SearchText()
	fingerprint := Fingerprint(text)

	if entity.CurrentFingerprint() == fingerprint && entity.CurrentEmbedding() != nil {
		return entity.CurrentEmbedding(), false, nil
	}

	updater, ok := c.updaters[entity.Kind()]
	if !ok {
		return nil, false, fmt.Errorf("%w: entity kind %q does not carry embeddings", apperrors.ErrInvalidArgument, entity.Kind())
	}

	// Two writers racing on the same entity would both see a stale
	// fingerprint and both call the generator; serialize per entity.
	unlock := c.locks.lock(entity.EntityID())
	defer unlock()

	embedding, err := c.computeEmbedding(ctx, text)
	if err != nil {
		// Leave the previous embedding and fingerprint untouched so the
		// next write attempt retries. Lexical search keeps working.
		c.logger.Warn("embedding generation failed, keeping stale embedding",
			zap.String("kind", string(entity.Kind())),
			zap.String("entity_id", entity.EntityID().String()),
			zap.Error(err))
		return nil, false, fmt.Errorf("%w: embed %s: %v", apperrors.ErrUpstreamUnavailable, entity.Kind(), err)
	}

	if err := updater(ctx, entity.EntityID(), embedding, fingerprint); err != nil {
		return nil, false, fmt.Errorf("failed to persist embedding: %w", err)
	}

	c.logger.Debug("embedding refreshed",
		zap.String("kind", string(entity.Kind())),
		zap.String("entity_id", entity.EntityID().String()))

	return embedding, true, nil
}

func (c *embeddingCache) EnsureEmbeddings(ctx context.Context, entities []models.Searchable) (int, error) {
	type stale struct {
		entity      models.Searchable
		text        string
		fingerprint string
	}

	var pending []stale
	for _, entity := range entities {
		text := entity.SearchText()
		fingerprint := Fingerprint(text)
		if entity.CurrentFingerprint() == fingerprint && entity.CurrentEmbedding() != nil {
			continue
		}
		if _, ok := c.updaters[entity.Kind()]; !ok {
			return 0, fmt.Errorf("%w: entity kind %q does not carry embeddings", apperrors.ErrInvalidArgument, entity.Kind())
		}
		pending = append(pending, stale{entity, text, fingerprint})
	}

	updated := 0
	for start := 0; start < len(pending); start += embedBatchSize {
		chunk := pending[start:min(start+embedBatchSize, len(pending))]

		// Blank texts get the canonical zero vector locally; everything
		// else goes to the generator in one request.
		vectors := make([][]float32, len(chunk))
		var texts []string
		var textIdx []int
		for i, p := range chunk {
			if strings.TrimSpace(p.text) == "" {
				vectors[i] = make([]float32, c.client.Dimensions())
				continue
			}
			texts = append(texts, p.text)
			textIdx = append(textIdx, i)
		}

		if len(texts) > 0 {
			generated, err := c.computeEmbeddingBatch(ctx, texts)
			if err != nil {
				return updated, fmt.Errorf("%w: embed batch of %d: %v", apperrors.ErrUpstreamUnavailable, len(texts), err)
			}
			if len(generated) != len(texts) {
				return updated, fmt.Errorf("%w: embed batch returned %d vectors for %d inputs",
					apperrors.ErrUpstreamUnavailable, len(generated), len(texts))
			}
			for j, vec := range generated {
				vectors[textIdx[j]] = vec
			}
		}

		for i, p := range chunk {
			unlock := c.locks.lock(p.entity.EntityID())
			err := c.updaters[p.entity.Kind()](ctx, p.entity.EntityID(), vectors[i], p.fingerprint)
			unlock()
			if err != nil {
				return updated, fmt.Errorf("failed to persist embedding: %w", err)
			}
			updated++
		}
	}

	if updated > 0 {
		c.logger.Debug("embedding batch refreshed", zap.Int("updated", updated))
	}
	return updated, nil
}

// computeEmbedding calls the external generator, short-circuiting blank text
// to the canonical zero vector.
func (c *embeddingCache) computeEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.client.Dimensions()), nil
	}

	var embedding []float32
	err := retry.DoIfRetryable(ctx, nil, func() error {
		var embedErr error
		embedding, embedErr = c.client.CreateEmbedding(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

func (c *embeddingCache) computeEmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32
	err := retry.DoIfRetryable(ctx, nil, func() error {
		var embedErr error
		embeddings, embedErr = c.client.CreateEmbeddings(ctx, texts)
		return embedErr
	})
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

// keyedMutex serializes callers holding the same key. Entries are removed
// once the last holder releases, so the map stays bounded by concurrency,
// not by entity count.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu      sync.Mutex
	holders int
}

func (k *keyedMutex) lock(key uuid.UUID) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[uuid.UUID]*lockEntry)
	}
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.holders++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.holders--
		if entry.holders == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
