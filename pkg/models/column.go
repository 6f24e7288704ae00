package models

import (
	"time"

	"github.com/google/uuid"
)

// Column describes a single column of a table.
type Column struct {
	ID           uuid.UUID `json:"id"`
	TableID      uuid.UUID `json:"table_id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	SemanticName string    `json:"semantic_name,omitempty"`
	DataType     string    `json:"data_type"`
	IsPrimaryKey bool      `json:"is_primary_key"`
	Description  string    `json:"description,omitempty"`
	// ContextNote carries interpretation hints, e.g. "NULL means the order
	// was never shipped".
	ContextNote   string    `json:"context_note,omitempty"`
	Embedding     []float32 `json:"-"`
	EmbeddingHash string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *Column) EntityID() uuid.UUID { return c.ID }

func (c *Column) Kind() EntityKind { return KindColumn }

// SearchText concatenates semantic name, description, and context note.
func (c *Column) SearchText() string {
	return joinSearchParts(c.SemanticName, c.Description, c.ContextNote)
}

func (c *Column) CurrentEmbedding() []float32 { return c.Embedding }

func (c *Column) CurrentFingerprint() string { return c.EmbeddingHash }
