package services

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"github.com/schemalink/schemalink-engine/pkg/repositories"
)

// fusedHit is one entity after rank fusion, ordered best-first.
type fusedHit struct {
	ID    uuid.UUID
	Score float64
}

// fuseRRF combines ranked candidate lists with Reciprocal Rank Fusion:
// score(id) = sum over branches of 1/(k + rank). An id absent from a branch
// contributes nothing from it. Output order is deterministic: descending
// score, then ascending id, so repeated calls over the same branch inputs
// produce identical pages.
func fuseRRF(k int, branches ...[]repositories.RankedID) []fusedHit {
	scores := make(map[uuid.UUID]float64)
	for _, branch := range branches {
		for _, candidate := range branch {
			scores[candidate.ID] += 1.0 / float64(k+candidate.Rank)
		}
	}

	fused := make([]fusedHit, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, fusedHit{ID: id, Score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return bytes.Compare(fused[i].ID[:], fused[j].ID[:]) < 0
	})

	return fused
}

// applyMinRatio drops fused results scoring below ratio*topScore. A ratio
// outside (0, 1] disables pruning. RRF scores are relative, not calibrated,
// so the cutoff is always expressed against the page's best hit.
func applyMinRatio(fused []fusedHit, ratio float64) []fusedHit {
	if ratio <= 0 || ratio > 1 || len(fused) == 0 {
		return fused
	}

	cutoff := fused[0].Score * ratio
	kept := fused[:0:0]
	for _, hit := range fused {
		if hit.Score >= cutoff {
			kept = append(kept, hit)
		}
	}
	return kept
}
