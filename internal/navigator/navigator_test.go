package navigator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ann-go/hnswgraph/internal/arena"
	"github.com/ann-go/hnswgraph/internal/visited"
)

// buildLine creates a chain 0-1-...-(n-1) at layer 0, all at vector position
// equal to their id, so distance is just |a-b|.
func buildLine(t *testing.T, n int) (*arena.Arena[float32], func(from uint32) DistanceTo) {
	t.Helper()
	a := arena.New[float32](arena.Config{InitialCapacity: 16, DistributionRate: 1.0})
	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		ids[i] = a.AddItem(float32(i), 0, func(int) int { return 8 })
	}
	for i := 0; i < n-1; i++ {
		node := a.Node(ids[i])
		node.OutEdges[0].Push(ids[i+1])
		next := a.Node(ids[i+1])
		next.OutEdges[0].Push(ids[i])
	}
	deltaFrom := func(from uint32) DistanceTo {
		fromLabel, _ := a.Label(from)
		return func(id uint32) float32 {
			label, _ := a.Label(id)
			d := label - fromLabel
			if d < 0 {
				d = -d
			}
			return d
		}
	}
	return a, deltaFrom
}

func TestSearchLayerFindsNearestOnLine(t *testing.T) {
	a, deltaFrom := buildLine(t, 6)
	pool := visited.NewPool(16)
	vs := pool.Checkout(16)

	delta := deltaFrom(0) // query == label of id 0
	results := SearchLayer(a, 2, 0, 3, delta, nil, vs)
	require.Len(t, results, 3)
	assert.Equal(t, uint32(0), results[0].ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Dist, results[i-1].Dist)
	}
}

func TestSearchLayerRespectsFilter(t *testing.T) {
	a, deltaFrom := buildLine(t, 6)
	pool := visited.NewPool(16)
	vs := pool.Checkout(16)

	delta := deltaFrom(0)
	evenOnly := func(id uint32) bool { return id%2 == 0 }
	results := SearchLayer(a, 3, 0, 2, delta, evenOnly, vs)
	for _, r := range results {
		assert.True(t, evenOnly(r.ID))
	}
}

func TestRangeSearchAdmitsWithinRadius(t *testing.T) {
	a, deltaFrom := buildLine(t, 6)
	pool := visited.NewPool(16)
	vs := pool.Checkout(16)

	delta := deltaFrom(0)
	results := RangeSearch(a, 0, 0, 2.0, delta, nil, vs)
	for _, r := range results {
		assert.LessOrEqual(t, r.Dist, float32(2.0))
	}
	assert.NotEmpty(t, results)
}

func TestFindEntryPointNoDescentWhenTargetIsEntryTopLayer(t *testing.T) {
	a := arena.New[float32](arena.Config{InitialCapacity: 16, DistributionRate: 1.0})
	// Both nodes live only at layer 0 and are linked there; with the
	// target layer equal to the entry's top layer, FindEntryPoint must
	// return the entry unchanged even though the other node is closer.
	id0 := a.AddItem(0.0, 0, func(int) int { return 8 })
	id1 := a.AddItem(5.0, 0, func(int) int { return 8 })
	a.Node(id0).OutEdges[0].Push(id1)
	a.Node(id1).OutEdges[0].Push(id0)

	delta := func(id uint32) float32 {
		label, _ := a.Label(id)
		return label // query "at" 0.0
	}
	best := FindEntryPoint(a, id1, 0, delta, nil)
	assert.Equal(t, id1, best, "target layer equals entry's max layer: no descent should occur")
}
