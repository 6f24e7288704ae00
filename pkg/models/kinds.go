package models

import "fmt"

// EntityKind identifies a searchable entity collection in the knowledge graph.
type EntityKind string

const (
	KindDatasource       EntityKind = "datasources"
	KindTable            EntityKind = "tables"
	KindColumn           EntityKind = "columns"
	KindEdge             EntityKind = "edges"
	KindMetric           EntityKind = "metrics"
	KindSynonym          EntityKind = "synonyms"
	KindContextRule      EntityKind = "context_rules"
	KindCategoricalValue EntityKind = "values"
	KindExampleQuery     EntityKind = "example_queries"
)

// SearchMode selects how a kind's collection is searched.
type SearchMode string

const (
	// SearchModeHybrid fuses vector similarity and lexical full-text ranks.
	SearchModeHybrid SearchMode = "hybrid"
	// SearchModeLexicalOnly skips the vector branch entirely. Used for
	// kinds whose search text is too short for embeddings to help.
	SearchModeLexicalOnly SearchMode = "lexical_only"
)

// ParseEntityKind validates a caller-supplied kind string.
func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(s) {
	case KindDatasource, KindTable, KindColumn, KindEdge, KindMetric,
		KindSynonym, KindContextRule, KindCategoricalValue, KindExampleQuery:
		return EntityKind(s), nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// SearchMode returns the search strategy for this kind. Categorical values
// carry a single short label, so lexical matching alone is more precise
// than embedding distance on near-empty text.
func (k EntityKind) SearchMode() SearchMode {
	if k == KindCategoricalValue {
		return SearchModeLexicalOnly
	}
	return SearchModeHybrid
}

// EmptyQueryLists reports whether an empty query returns an unranked
// filtered listing for this kind. Example queries return an empty page on a
// blank prompt instead: listing golden SQL is a browse operation, not a
// search.
func (k EntityKind) EmptyQueryLists() bool {
	return k != KindExampleQuery
}
