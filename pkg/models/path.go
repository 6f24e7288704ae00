package models

// PathEndpoint names one side of a traversed relationship.
type PathEndpoint struct {
	TableSlug  string `json:"table_slug"`
	ColumnSlug string `json:"column_slug"`
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
}

// PathHop is one traversed relationship in a join path. Traversal is
// direction-agnostic, but each hop reports the direction actually walked:
// Source is the side the path came from, and RelationshipType is adjusted
// accordingly when an edge is walked in reverse.
type PathHop struct {
	Source           PathEndpoint     `json:"source"`
	Target           PathEndpoint     `json:"target"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Inferred         bool             `json:"is_inferred"`
	Description      string           `json:"description,omitempty"`
}

// PathResult holds all simple paths found between two tables. A path is an
// ordered hop list; the trivial source==target case is a single empty path.
type PathResult struct {
	SourceTable string      `json:"source_table"`
	TargetTable string      `json:"target_table"`
	Paths       [][]PathHop `json:"paths"`
	TotalPaths  int         `json:"total_paths"`
	// Truncated is set when the expansion budget was exhausted before the
	// search space was fully enumerated; the paths returned are still valid.
	Truncated bool `json:"truncated,omitempty"`
}
