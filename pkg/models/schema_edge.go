package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType tags the cardinality of a schema edge.
type RelationshipType string

const (
	OneToOne   RelationshipType = "ONE_TO_ONE"
	OneToMany  RelationshipType = "ONE_TO_MANY"
	ManyToOne  RelationshipType = "MANY_TO_ONE"
	ManyToMany RelationshipType = "MANY_TO_MANY"
)

// SchemaEdge is a directed relationship between two columns. Table-level
// adjacency for path finding is derived by projecting edges through the
// columns' owning tables.
type SchemaEdge struct {
	ID               uuid.UUID        `json:"id"`
	SourceColumnID   uuid.UUID        `json:"source_column_id"`
	TargetColumnID   uuid.UUID        `json:"target_column_id"`
	RelationshipType RelationshipType `json:"relationship_type"`
	// Inferred is false when a physical foreign key backs the edge, true
	// when the relationship was declared or discovered without one.
	Inferred      bool      `json:"is_inferred"`
	Description   string    `json:"description,omitempty"`
	ContextNote   string    `json:"context_note,omitempty"`
	Embedding     []float32 `json:"-"`
	EmbeddingHash string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

func (e *SchemaEdge) EntityID() uuid.UUID { return e.ID }

func (e *SchemaEdge) Kind() EntityKind { return KindEdge }

// SearchText concatenates description and context note.
func (e *SchemaEdge) SearchText() string {
	return joinSearchParts(e.Description, e.ContextNote)
}

func (e *SchemaEdge) CurrentEmbedding() []float32 { return e.Embedding }

func (e *SchemaEdge) CurrentFingerprint() string { return e.EmbeddingHash }

// Reversed returns the cardinality seen when traversing the edge backwards.
func (r RelationshipType) Reversed() RelationshipType {
	switch r {
	case OneToMany:
		return ManyToOne
	case ManyToOne:
		return OneToMany
	default:
		return r
	}
}
