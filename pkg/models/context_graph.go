package models

import "time"

// ContextSearchItem is one request in a context resolution batch: search one
// entity kind with one piece of text.
type ContextSearchItem struct {
	Kind       EntityKind `json:"entity"`
	SearchText string     `json:"search_text"`
	// MinRatioToBest is forwarded to the underlying search (see PageRequest).
	MinRatioToBest float64 `json:"min_ratio_to_best,omitempty"`
}

// ColumnContext is a column with its attached rules and values, nested
// inside a resolved table.
type ColumnContext struct {
	Column
	Score        *float64              `json:"score,omitempty"`
	ContextRules []ContextRuleHit      `json:"context_rules"`
	Values       []CategoricalValueHit `json:"nominal_values"`
}

// TableContext is a table with its surfaced columns, nested inside a
// resolved datasource.
type TableContext struct {
	Table
	Score   *float64         `json:"score,omitempty"`
	Columns []*ColumnContext `json:"columns"`
}

// DatasourceContext is one root of the resolved context forest. Metrics,
// edges, and example queries attach at the datasource level because they may
// reference several tables.
type DatasourceContext struct {
	Datasource
	Score          *float64          `json:"score,omitempty"`
	Tables         []*TableContext   `json:"tables"`
	Metrics        []MetricHit       `json:"metrics"`
	Edges          []EdgeHit         `json:"edges"`
	ExampleQueries []ExampleQueryHit `json:"example_queries"`
}

// ContextGraph is the merged, deduplicated result of a context resolution
// request: one root per datasource that contributed at least one hit.
type ContextGraph struct {
	Datasources []*DatasourceContext `json:"graph"`
	// Partial is set when the global timeout expired before every
	// sub-search finished; the graph contains the completed subset.
	Partial bool          `json:"partial,omitempty"`
	Elapsed time.Duration `json:"-"`
	// ElapsedMs mirrors Elapsed for JSON consumers.
	ElapsedMs int64 `json:"elapsed_ms"`
}
