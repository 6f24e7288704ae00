package models

import (
	"time"

	"github.com/google/uuid"
)

// ContextRule is a free-text interpretation rule attached to a column, e.g.
// "amounts are stored in cents; divide by 100 for euros".
type ContextRule struct {
	ID            uuid.UUID `json:"id"`
	ColumnID      uuid.UUID `json:"column_id"`
	Slug          string    `json:"slug"`
	RuleText      string    `json:"rule_text"`
	Embedding     []float32 `json:"-"`
	EmbeddingHash string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (r *ContextRule) EntityID() uuid.UUID { return r.ID }

func (r *ContextRule) Kind() EntityKind { return KindContextRule }

func (r *ContextRule) SearchText() string { return r.RuleText }

func (r *ContextRule) CurrentEmbedding() []float32 { return r.Embedding }

func (r *ContextRule) CurrentFingerprint() string { return r.EmbeddingHash }
