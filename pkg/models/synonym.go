package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
)

// SynonymTargetKind identifies which entity collection a synonym points at.
type SynonymTargetKind string

const (
	TargetTable  SynonymTargetKind = "TABLE"
	TargetColumn SynonymTargetKind = "COLUMN"
	TargetMetric SynonymTargetKind = "METRIC"
	TargetValue  SynonymTargetKind = "VALUE"
)

// Synonym maps a human term to a graph entity, so "clients" can resolve to
// the customers table even though no schema text contains the word.
type Synonym struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Term string    `json:"term"`
	// TermNormalized is the singularized form of Term, stored so the
	// lexical index matches "customers" against a synonym entered as
	// "customer". Set by the write path via NormalizeTerm.
	TermNormalized string            `json:"-"`
	TargetKind     SynonymTargetKind `json:"target_type"`
	TargetID       uuid.UUID         `json:"target_id"`
	Embedding      []float32         `json:"-"`
	EmbeddingHash  string            `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NormalizeTerm returns the singular form of a synonym term, or "" when the
// term is already singular. Only the distinct form is stored to keep the
// lexical index free of duplicate lexemes.
func NormalizeTerm(term string) string {
	singular := inflection.Singular(term)
	if singular == term {
		return ""
	}
	return singular
}

func (s *Synonym) EntityID() uuid.UUID { return s.ID }

func (s *Synonym) Kind() EntityKind { return KindSynonym }

// SearchText is the term plus its normalized form.
func (s *Synonym) SearchText() string {
	return joinSearchParts(s.Term, s.TermNormalized)
}

func (s *Synonym) CurrentEmbedding() []float32 { return s.Embedding }

func (s *Synonym) CurrentFingerprint() string { return s.EmbeddingHash }
