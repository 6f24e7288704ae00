package models

import "github.com/google/uuid"

// Searchable is implemented by every entity that participates in hybrid
// search. The embedding cache compares Fingerprint-of-SearchText against the
// stored fingerprint to decide whether the stored embedding is still current;
// an embedding is never trusted without that check.
type Searchable interface {
	// EntityID returns the stable identifier of the entity.
	EntityID() uuid.UUID

	// Kind returns the entity's collection kind.
	Kind() EntityKind

	// SearchText returns the derived text used for embedding generation and
	// search. Each kind concatenates its own fields; see the individual
	// model implementations.
	SearchText() string

	// CurrentEmbedding returns the stored embedding, or nil if none.
	CurrentEmbedding() []float32

	// CurrentFingerprint returns the content hash recorded when the stored
	// embedding was computed, or "" if none.
	CurrentFingerprint() string
}

// joinSearchParts concatenates non-empty parts with single spaces, matching
// how the lexical index's generated tsvector columns are built.
func joinSearchParts(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
