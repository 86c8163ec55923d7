package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelativeNeighborhoodReturnsAllWhenUnderM(t *testing.T) {
	cands := []Candidate{{ID: 1, Dist: 1}, {ID: 2, Dist: 2}}
	out := RelativeNeighborhood(cands, func(a, b uint32) float32 { return 0 }, 5)
	assert.ElementsMatch(t, []uint32{1, 2}, out)
}

func TestRelativeNeighborhoodPrunesCloseDuplicates(t *testing.T) {
	// Three candidates on a line: query at 0, candidates at 1, 1.1, -10.
	// The second candidate is closer to the first accepted candidate
	// than it is to the query, so it should be rejected; the third lies
	// on the other side of the query (11 from the first, 10 from the
	// query), so it is accepted.
	cands := []Candidate{
		{ID: 1, Dist: 1.0},
		{ID: 2, Dist: 1.1},
		{ID: 3, Dist: 10.0},
	}
	pairDist := func(a, b uint32) float32 {
		pos := map[uint32]float32{1: 1.0, 2: 1.1, 3: -10.0}
		d := pos[a] - pos[b]
		if d < 0 {
			d = -d
		}
		return d
	}
	out := RelativeNeighborhood(cands, pairDist, 2)
	require.Len(t, out, 2)
	assert.Contains(t, out, uint32(1))
	assert.Contains(t, out, uint32(3))
	assert.NotContains(t, out, uint32(2))
}

func TestNaiveNearestPicksMClosest(t *testing.T) {
	cands := []Candidate{{ID: 1, Dist: 5}, {ID: 2, Dist: 1}, {ID: 3, Dist: 3}}
	out := NaiveNearest(cands, nil, 2)
	assert.Equal(t, []uint32{2, 3}, out)
}

func TestNaiveNearestClampsToLenWhenMTooLarge(t *testing.T) {
	cands := []Candidate{{ID: 1, Dist: 1}}
	out := NaiveNearest(cands, nil, 5)
	assert.Equal(t, []uint32{1}, out)
}
