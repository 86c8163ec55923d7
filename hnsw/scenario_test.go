package hnsw

import (
	"bytes"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ann-go/hnswgraph/internal/heuristic"
)

func normalize(v Vector) Vector {
	var norm float32
	for _, x := range v {
		norm += x * x
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm == 0 {
		return v
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func seededVectors(seed int64, n, dim int) []Vector {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Vector, n)
	for i := range out {
		out[i] = normalize(randomVector(rng, dim))
	}
	return out
}

func degreeBalance(t *testing.T, idx *Index[Vector]) {
	t.Helper()
	info, err := idx.Info()
	require.NoError(t, err)
	for l, s := range info.Layers {
		if s.NodeCount == 0 {
			continue
		}
		assert.InDelta(t, s.AvgOutDegree, s.AvgInDegree, 0.01, "layer %d out/in degree imbalance", l)
	}
}

// scenario 1: build/query, single thread.
func TestScenarioSingleThreadBuildAndSelfKnnRecall(t *testing.T) {
	const n, dim = 800, 32
	p := testParams(101)
	p.CollectionSize = n
	idx, err := New(p)
	require.NoError(t, err)

	vectors := seededVectors(1, n, dim)
	ids := make([]int64, n)
	for i, v := range vectors {
		id, err := idx.Add(v)
		require.NoError(t, err)
		ids[i] = id
	}

	hits := 0
	for i, v := range vectors {
		results, err := idx.Knn(v, 1, nil, 0)
		require.NoError(t, err)
		if len(results) == 1 && results[0].ID == ids[i] {
			hits++
		}
	}
	recall := float64(hits) / float64(n)
	assert.GreaterOrEqual(t, recall, 0.85, "self-knn recall too low: %f", recall)

	degreeBalance(t, idx)
}

// scenario 2: build/query, parallel insert.
func TestScenarioParallelBuildSameRecallAndBalance(t *testing.T) {
	const n, dim = 800, 32
	p := testParams(102)
	p.CollectionSize = n
	idx, err := New(p)
	require.NoError(t, err)

	vectors := seededVectors(2, n, dim)
	ids, err := idx.AddBatch(vectors)
	require.NoError(t, err)

	hits := 0
	for i, v := range vectors {
		results, err := idx.Knn(v, 1, nil, 0)
		require.NoError(t, err)
		if len(results) == 1 && results[0].ID == ids[i] {
			hits++
		}
	}
	recall := float64(hits) / float64(n)
	assert.GreaterOrEqual(t, recall, 0.85, "parallel-build self-knn recall too low: %f", recall)

	degreeBalance(t, idx)
}

// scenario 3: sequential vs parallel query determinism.
func TestScenarioParallelQueryMatchesSequential(t *testing.T) {
	const n, dim = 500, 24
	p := testParams(103)
	p.CollectionSize = n
	idx, err := New(p)
	require.NoError(t, err)

	vectors := seededVectors(3, n, dim)
	for _, v := range vectors {
		_, err := idx.Add(v)
		require.NoError(t, err)
	}

	sequential := make([][]Result[Vector], n)
	for i, v := range vectors {
		res, err := idx.Knn(v, 10, nil, 0)
		require.NoError(t, err)
		sequential[i] = res
	}

	parallelResults := make([][]Result[Vector], n)
	var wg sync.WaitGroup
	for i, v := range vectors {
		wg.Add(1)
		go func(i int, v Vector) {
			defer wg.Done()
			res, err := idx.Knn(v, 10, nil, 0)
			require.NoError(t, err)
			parallelResults[i] = res
		}(i, v)
	}
	wg.Wait()

	for i := range vectors {
		require.Len(t, parallelResults[i], len(sequential[i]))
		for j := range sequential[i] {
			assert.Equal(t, sequential[i][j].ID, parallelResults[i][j].ID)
		}
	}
}

// scenario 4: remove half, recall on survivors must not collapse.
func TestScenarioRemoveHalfPreservesRecallOnSurvivors(t *testing.T) {
	const n, dim = 600, 24
	p := testParams(104)
	p.CollectionSize = n
	idx, err := New(p)
	require.NoError(t, err)

	vectors := seededVectors(4, n, dim)
	ids := make([]int64, n)
	for i, v := range vectors {
		id, err := idx.Add(v)
		require.NoError(t, err)
		ids[i] = id
	}

	before := 0
	for i, v := range vectors {
		if i%2 != 0 {
			continue
		}
		results, err := idx.Knn(v, 1, nil, 0)
		require.NoError(t, err)
		if len(results) == 1 && results[0].ID == ids[i] {
			before++
		}
	}
	recallBefore := float64(before) / float64(n/2)

	var toRemove []int64
	for i := 1; i < n; i += 2 {
		toRemove = append(toRemove, ids[i])
	}
	require.NoError(t, idx.RemoveBatch(toRemove))

	after := 0
	for i, v := range vectors {
		if i%2 != 0 {
			continue
		}
		results, err := idx.Knn(v, 1, nil, 0)
		require.NoError(t, err)
		if len(results) == 1 && results[0].ID == ids[i] {
			after++
		}
	}
	recallAfter := float64(after) / float64(n/2)

	assert.GreaterOrEqual(t, recallAfter, recallBefore-0.10, "recall dropped more than 10%% after removing half: before=%f after=%f", recallBefore, recallAfter)

	degreeBalance(t, idx)
}

// scenario 5: update in place.
func TestScenarioUpdateInPlaceRecallWithinBound(t *testing.T) {
	const n, dim = 600, 24
	p := testParams(105)
	p.CollectionSize = n
	idx, err := New(p)
	require.NoError(t, err)

	original := seededVectors(5, n, dim)
	ids := make([]int64, n)
	for i, v := range original {
		id, err := idx.Add(v)
		require.NoError(t, err)
		ids[i] = id
	}

	before := 0
	for i, v := range original {
		results, err := idx.Knn(v, 1, nil, 0)
		require.NoError(t, err)
		if len(results) == 1 && results[0].ID == ids[i] {
			before++
		}
	}
	recallBefore := float64(before) / float64(n)

	updated := seededVectors(6, n, dim)
	require.NoError(t, idx.Update(ids, updated))

	after := 0
	for i, v := range updated {
		results, err := idx.Knn(v, 1, nil, 0)
		require.NoError(t, err)
		if len(results) == 1 && results[0].ID == ids[i] {
			after++
		}
	}
	recallAfter := float64(after) / float64(n)

	assert.GreaterOrEqual(t, recallAfter, recallBefore-0.05, "post-update recall dropped more than 5%%: before=%f after=%f", recallBefore, recallAfter)
}

// scenario 6: serialize/deserialize round trip.
func TestScenarioSerializeDeserializeExactKnn(t *testing.T) {
	const n, dim = 600, 16
	p := testParams(106)
	p.CollectionSize = n
	p.Distance = SquaredEuclideanDistance
	idx, err := New(p)
	require.NoError(t, err)

	vectors := seededVectors(7, n, dim)
	for _, v := range vectors {
		_, err := idx.Add(v)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, idx.Serialize(&buf))

	restored, err := Deserialize[Vector](&buf, SquaredEuclideanDistance)
	require.NoError(t, err)

	for _, v := range vectors {
		want, err := idx.Knn(v, 5, nil, 0)
		require.NoError(t, err)
		got, err := restored.Knn(v, 5, nil, 0)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID)
			assert.Equal(t, want[i].Label, got[i].Label)
			assert.InDelta(t, want[i].Dist, got[i].Dist, 1e-6)
		}
	}
}

// Q2: the naive-nearest heuristic trades diversity for raw recall.
func TestQ2NaiveNearestHeuristicRecall(t *testing.T) {
	const n, dim = 1200, 24
	p := testParams(107)
	p.CollectionSize = n
	p.Heuristic = heuristic.NaiveNearest
	idx, err := New(p)
	require.NoError(t, err)

	vectors := seededVectors(8, n, dim)
	ids := make([]int64, n)
	for i, v := range vectors {
		id, err := idx.Add(v)
		require.NoError(t, err)
		ids[i] = id
	}

	hits := 0
	for i, v := range vectors {
		results, err := idx.Knn(v, 1, nil, 0)
		require.NoError(t, err)
		if len(results) == 1 && results[0].ID == ids[i] {
			hits++
		}
	}
	recall := float64(hits) / float64(n)
	assert.GreaterOrEqual(t, recall, 0.90, "naive-nearest recall too low: %f", recall)
}

// Q3: aggressive parameters degrade recall noticeably below the default.
func TestQ3AggressiveParamsDegradeRecall(t *testing.T) {
	const n, dim = 1200, 24
	p := testParams(108)
	p.CollectionSize = n
	p.MaxEdges = 8
	p.EfSearch = 1
	p.EfConstruction = 16
	idx, err := New(p)
	require.NoError(t, err)

	vectors := seededVectors(9, n, dim)
	ids := make([]int64, n)
	for i, v := range vectors {
		id, err := idx.Add(v)
		require.NoError(t, err)
		ids[i] = id
	}

	hits := 0
	for i, v := range vectors {
		results, err := idx.Knn(v, 1, nil, 0)
		require.NoError(t, err)
		if len(results) == 1 && results[0].ID == ids[i] {
			hits++
		}
	}
	recall := float64(hits) / float64(n)
	assert.Less(t, recall, 0.5, "aggressive parameters should degrade recall below 0.5, got %f", recall)
}
