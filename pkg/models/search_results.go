package models

// Hit types denormalize the fields a caller needs without a second lookup.
// Parent fields (owning table slug for a column, target slug for a synonym)
// are resolved by the search executor in batched lookups.

// DatasourceHit is a datasource search result.
type DatasourceHit struct {
	Datasource
	Score float64 `json:"score"`
}

// TableHit is a table search result.
type TableHit struct {
	Table
	Score float64 `json:"score"`
}

// ColumnHit is a column search result with its owning table denormalized.
type ColumnHit struct {
	Column
	TableSlug string  `json:"table_slug"`
	TableName string  `json:"table_name"`
	Score     float64 `json:"score"`
}

// EdgeHit is a schema edge search result. Source and Target are rendered as
// "table_slug.column_slug" for direct use in a JOIN sketch.
type EdgeHit struct {
	SchemaEdge
	Source string  `json:"source"`
	Target string  `json:"target"`
	Score  float64 `json:"score"`
}

// MetricHit is a metric search result with required table ids resolved to
// slugs.
type MetricHit struct {
	Metric
	RequiredTableSlugs []string `json:"required_tables"`
	Score              float64  `json:"score"`
}

// SynonymHit is a synonym search result with its polymorphic target
// resolved to a slug.
type SynonymHit struct {
	Synonym
	MapsToSlug string  `json:"maps_to_slug"`
	Score      float64 `json:"score"`
}

// ContextRuleHit is a context rule search result with its owning column and
// table denormalized.
type ContextRuleHit struct {
	ContextRule
	ColumnSlug string  `json:"column_slug"`
	TableSlug  string  `json:"table_slug"`
	Score      float64 `json:"score"`
}

// CategoricalValueHit is a categorical value search result with its owning
// column and table denormalized.
type CategoricalValueHit struct {
	CategoricalValue
	ColumnSlug string  `json:"column_slug"`
	TableSlug  string  `json:"table_slug"`
	Score      float64 `json:"score"`
}

// ExampleQueryHit is an example query search result.
type ExampleQueryHit struct {
	ExampleQuery
	Score float64 `json:"score"`
}
