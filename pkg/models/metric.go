package models

import (
	"time"

	"github.com/google/uuid"
)

// Metric is the authoritative definition of a business KPI. Keeping the
// calculation expression in the graph prevents the agent from improvising
// its own formula.
type Metric struct {
	ID           uuid.UUID `json:"id"`
	DatasourceID uuid.UUID `json:"datasource_id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	// CalculationSQL is the canonical expression, e.g.
	// "SUM(order_total) - SUM(refund_total)".
	CalculationSQL string `json:"calculation_sql"`
	// RequiredTables lists the tables the calculation depends on.
	RequiredTables []uuid.UUID `json:"required_tables,omitempty"`
	// FilterCondition is an optional WHERE fragment the metric assumes,
	// e.g. "status != 'cancelled'".
	FilterCondition string    `json:"filter_condition,omitempty"`
	Embedding       []float32 `json:"-"`
	EmbeddingHash   string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (m *Metric) EntityID() uuid.UUID { return m.ID }

func (m *Metric) Kind() EntityKind { return KindMetric }

// SearchText concatenates name and description.
func (m *Metric) SearchText() string {
	return joinSearchParts(m.Name, m.Description)
}

func (m *Metric) CurrentEmbedding() []float32 { return m.Embedding }

func (m *Metric) CurrentFingerprint() string { return m.EmbeddingHash }
