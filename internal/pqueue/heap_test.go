package pqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinHeapOrdering(t *testing.T) {
	h := MinHeap(4)
	h.PushItem(Item{ID: 1, Dist: 5})
	h.PushItem(Item{ID: 2, Dist: 1})
	h.PushItem(Item{ID: 3, Dist: 3})

	require.Equal(t, 3, h.Len())
	assert.Equal(t, float32(1), h.Peek().Dist)

	var got []float32
	for !h.Empty() {
		got = append(got, h.PopItem().Dist)
	}
	assert.Equal(t, []float32{1, 3, 5}, got)
}

func TestMaxHeapOrdering(t *testing.T) {
	h := MaxHeap(4)
	h.PushItem(Item{ID: 1, Dist: 5})
	h.PushItem(Item{ID: 2, Dist: 1})
	h.PushItem(Item{ID: 3, Dist: 3})

	assert.Equal(t, float32(5), h.Peek().Dist)

	var got []float32
	for !h.Empty() {
		got = append(got, h.PopItem().Dist)
	}
	assert.Equal(t, []float32{5, 3, 1}, got)
}

func TestSortedDrainsMaxHeapDescending(t *testing.T) {
	h := MaxHeap(3)
	h.PushItem(Item{ID: 1, Dist: 2})
	h.PushItem(Item{ID: 2, Dist: 4})
	h.PushItem(Item{ID: 3, Dist: 1})

	items := h.Sorted() // descending since max-heap
	require.Len(t, items, 3)
	assert.Equal(t, []float32{4, 2, 1}, []float32{items[0].Dist, items[1].Dist, items[2].Dist})
}
