package models

import (
	"time"

	"github.com/google/uuid"
)

// SQLEngineType is the SQL dialect of a datasource. The dialect determines
// how the downstream agent renders queries; the engine itself only stores it.
type SQLEngineType string

const (
	EnginePostgres  SQLEngineType = "postgres"
	EngineBigQuery  SQLEngineType = "bigquery"
	EngineSnowflake SQLEngineType = "snowflake"
	EngineTSQL      SQLEngineType = "tsql"
	EngineMySQL     SQLEngineType = "mysql"
)

// Datasource is the root of the knowledge graph hierarchy: every table, and
// through tables every column, belongs to exactly one datasource. It defines
// the physical query perimeter - join paths never cross datasources.
type Datasource struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description,omitempty"`
	Engine      SQLEngineType `json:"engine"`
	// ContextSignature is a free-text blob of keywords, table names, and key
	// metrics used to match a datasource against a question.
	ContextSignature string    `json:"context_signature,omitempty"`
	Embedding        []float32 `json:"-"`
	EmbeddingHash    string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (d *Datasource) EntityID() uuid.UUID { return d.ID }

func (d *Datasource) Kind() EntityKind { return KindDatasource }

// SearchText concatenates description and context signature.
func (d *Datasource) SearchText() string {
	return joinSearchParts(d.Description, d.ContextSignature)
}

func (d *Datasource) CurrentEmbedding() []float32 { return d.Embedding }

func (d *Datasource) CurrentFingerprint() string { return d.EmbeddingHash }
