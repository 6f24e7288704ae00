package models

import (
	"time"

	"github.com/google/uuid"
)

// ExampleQuery is a verified natural-language prompt / SQL pair ("golden
// SQL") used as a few-shot example for the agent.
type ExampleQuery struct {
	ID           uuid.UUID `json:"id"`
	DatasourceID uuid.UUID `json:"datasource_id"`
	Slug         string    `json:"slug"`
	PromptText   string    `json:"prompt"`
	SQLQuery     string    `json:"sql"`
	// ComplexityScore grades the query 1 (single-table select) to 5
	// (multi-CTE analytics); the agent prefers examples near the
	// complexity of the question at hand.
	ComplexityScore int       `json:"complexity"`
	Verified        bool      `json:"verified"`
	Embedding       []float32 `json:"-"`
	EmbeddingHash   string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (q *ExampleQuery) EntityID() uuid.UUID { return q.ID }

func (q *ExampleQuery) Kind() EntityKind { return KindExampleQuery }

// SearchText is the prompt alone: matching happens against the question,
// never against the SQL text.
func (q *ExampleQuery) SearchText() string { return q.PromptText }

func (q *ExampleQuery) CurrentEmbedding() []float32 { return q.Embedding }

func (q *ExampleQuery) CurrentFingerprint() string { return q.EmbeddingHash }
