package models

import (
	"time"

	"github.com/google/uuid"
)

// CategoricalValue is one value of a low-cardinality column together with a
// human label, e.g. raw "S2" labelled "Shipped". Lets the agent translate
// "shipped orders" into the literal the database stores.
//
// Values are lexical-only searchable (KindCategoricalValue.SearchMode): a
// one-word label gives embeddings nothing to work with.
type CategoricalValue struct {
	ID         uuid.UUID `json:"id"`
	ColumnID   uuid.UUID `json:"column_id"`
	Slug       string    `json:"slug"`
	ValueRaw   string    `json:"value_raw"`
	ValueLabel string    `json:"value_label"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (v *CategoricalValue) EntityID() uuid.UUID { return v.ID }

func (v *CategoricalValue) Kind() EntityKind { return KindCategoricalValue }

func (v *CategoricalValue) SearchText() string { return v.ValueLabel }

func (v *CategoricalValue) CurrentEmbedding() []float32 { return nil }

func (v *CategoricalValue) CurrentFingerprint() string { return "" }
