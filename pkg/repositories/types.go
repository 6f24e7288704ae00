// Package repositories provides PostgreSQL data access for the schema
// catalog. Search methods come in pairs: VectorSearch ranks by pgvector
// cosine distance, LexicalSearch ranks by full-text relevance. Both return
// candidates in rank order so the service layer can fuse them.
package repositories

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RankedID is one candidate from a single search branch. Rank is 1-indexed
// in the branch's own ordering.
type RankedID struct {
	ID   uuid.UUID
	Rank int
}

// SearchScope narrows a search or listing to part of the catalog. Nil fields
// mean unscoped. Repositories apply only the fields that make sense for
// their entity.
type SearchScope struct {
	DatasourceID *uuid.UUID
	TableID      *uuid.UUID
	ColumnID     *uuid.UUID
}

// scanRankedIDs collects ids from rows already ordered by relevance,
// assigning 1-indexed ranks by position.
func scanRankedIDs(rows pgx.Rows) ([]RankedID, error) {
	defer rows.Close()

	var ranked []RankedID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedID{ID: id, Rank: len(ranked) + 1})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ranked, nil
}
