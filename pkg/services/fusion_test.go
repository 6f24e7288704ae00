package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemalink/schemalink-engine/pkg/repositories"
)

func TestFuseRRF_CombinesBranches(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	vector := ranked(a, b, c)
	lexical := ranked(b, c, d)

	fused := fuseRRF(60, vector, lexical)

	require.Len(t, fused, 4)
	// B appears at rank 2 and rank 1, C at 3 and 2; both beat the
	// single-branch rank-1 hits A and D.
	assert.Equal(t, b, fused[0].ID)
	assert.Equal(t, c, fused[1].ID)
	assert.InDelta(t, 1.0/62+1.0/61, fused[0].Score, 1e-12)
	assert.InDelta(t, 1.0/63+1.0/62, fused[1].Score, 1e-12)
	assert.InDelta(t, 1.0/61, scoreOf(t, fused, a), 1e-12)
	assert.InDelta(t, 1.0/63, scoreOf(t, fused, d), 1e-12)
	assert.Greater(t, scoreOf(t, fused, a), scoreOf(t, fused, d))
}

func TestFuseRRF_TieBreakIsDeterministic(t *testing.T) {
	lo := uuid.UUID{0x01}
	hi := uuid.UUID{0xfe}

	// Same rank in opposite branches means identical scores.
	fused := fuseRRF(60,
		[]repositories.RankedID{{ID: hi, Rank: 1}},
		[]repositories.RankedID{{ID: lo, Rank: 1}},
	)

	require.Len(t, fused, 2)
	assert.Equal(t, fused[0].Score, fused[1].Score)
	assert.Equal(t, lo, fused[0].ID)
	assert.Equal(t, hi, fused[1].ID)

	// Branch order must not change the result.
	again := fuseRRF(60,
		[]repositories.RankedID{{ID: lo, Rank: 1}},
		[]repositories.RankedID{{ID: hi, Rank: 1}},
	)
	assert.Equal(t, fused, again)
}

func TestFuseRRF_SingleBranch(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	fused := fuseRRF(60, ranked(a, b), nil)

	require.Len(t, fused, 2)
	assert.Equal(t, a, fused[0].ID)
	assert.Equal(t, b, fused[1].ID)
}

func TestFuseRRF_Empty(t *testing.T) {
	assert.Empty(t, fuseRRF(60))
	assert.Empty(t, fuseRRF(60, nil, nil))
}

func TestApplyMinRatio(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	fused := []fusedHit{
		{ID: a, Score: 1.0},
		{ID: b, Score: 0.5},
		{ID: c, Score: 0.1},
	}

	kept := applyMinRatio(fused, 0.5)
	require.Len(t, kept, 2)
	assert.Equal(t, a, kept[0].ID)
	assert.Equal(t, b, kept[1].ID)

	// A cutoff exactly at a hit's score keeps that hit.
	kept = applyMinRatio(fused, 0.1)
	assert.Len(t, kept, 3)
}

func TestApplyMinRatio_DisabledOutsideRange(t *testing.T) {
	fused := []fusedHit{
		{ID: uuid.New(), Score: 1.0},
		{ID: uuid.New(), Score: 0.01},
	}

	assert.Len(t, applyMinRatio(fused, 0), 2)
	assert.Len(t, applyMinRatio(fused, -0.5), 2)
	assert.Len(t, applyMinRatio(fused, 1.5), 2)
	assert.Len(t, applyMinRatio(fused, 1.0), 1)
	assert.Empty(t, applyMinRatio(nil, 0.5))
}

func scoreOf(t *testing.T, fused []fusedHit, id uuid.UUID) float64 {
	t.Helper()
	for _, hit := range fused {
		if hit.ID == id {
			return hit.Score
		}
	}
	t.Fatalf("id %s not in fused results", id)
	return 0
}
