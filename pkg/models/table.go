package models

import (
	"time"

	"github.com/google/uuid"
)

// Table describes a physical table within a datasource, enriched with the
// semantic name and description the agent uses to pick tables for a question.
type Table struct {
	ID           uuid.UUID `json:"id"`
	DatasourceID uuid.UUID `json:"datasource_id"`
	Slug         string    `json:"slug"`
	PhysicalName string    `json:"physical_name"`
	SemanticName string    `json:"semantic_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	// DDLContext is the table's CREATE statement (or a trimmed version),
	// handed to the agent verbatim when the table is in context.
	DDLContext    string    `json:"ddl_context,omitempty"`
	Embedding     []float32 `json:"-"`
	EmbeddingHash string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (t *Table) EntityID() uuid.UUID { return t.ID }

func (t *Table) Kind() EntityKind { return KindTable }

// SearchText concatenates semantic name and description.
func (t *Table) SearchText() string {
	return joinSearchParts(t.SemanticName, t.Description)
}

func (t *Table) CurrentEmbedding() []float32 { return t.Embedding }

func (t *Table) CurrentFingerprint() string { return t.EmbeddingHash }
