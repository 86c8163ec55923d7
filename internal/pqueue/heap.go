// Package pqueue implements the binary heap used twofold during beam
// search: a min-heap of candidates still to expand, and a max-heap of
// the best-k accepted results seen so far. Both are the same generic
// Heap type, told apart only by the Less function passed to New.
package pqueue

import "container/heap"

// Item pairs a node id with its distance to the current query. It is
// the payload stored in every Heap in this package.
type Item struct {
	ID   uint32
	Dist float32
}

// Heap is a binary heap over Item, ordered by a caller-supplied Less.
// A "smaller is higher priority" Less gives a min-heap; inverting it
// gives a max-heap — this is how navigator.SearchLayer builds the
// candidate min-heap and the accepted-results max-heap from the same
// type.
type Heap struct {
	items []Item
	less  func(a, b Item) bool
}

// New returns an empty heap using less to order items. Capacity is a
// sizing hint (typically efConstruction or efSearch).
func New(capacity int, less func(a, b Item) bool) *Heap {
	if capacity < 0 {
		capacity = 0
	}
	return &Heap{items: make([]Item, 0, capacity), less: less}
}

// MinHeap returns a heap ordered smallest-distance-first.
func MinHeap(capacity int) *Heap {
	return New(capacity, func(a, b Item) bool { return a.Dist < b.Dist })
}

// MaxHeap returns a heap ordered largest-distance-first (farthest on top).
func MaxHeap(capacity int) *Heap {
	return New(capacity, func(a, b Item) bool { return a.Dist > b.Dist })
}

func (h *Heap) Len() int            { return len(h.items) }
func (h *Heap) Less(i, j int) bool  { return h.less(h.items[i], h.items[j]) }
func (h *Heap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *Heap) Push(x any) {
	h.items = append(h.items, x.(Item))
}

func (h *Heap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// PushItem pushes an item and restores the heap invariant.
func (h *Heap) PushItem(it Item) { heap.Push(h, it) }

// PopItem removes and returns the top item.
func (h *Heap) PopItem() Item { return heap.Pop(h).(Item) }

// Peek returns the top item without removing it. Panics if empty;
// callers always check Len first, matching the beam-search skeleton in
// spec.md §4.5 ("peek c = C.top()").
func (h *Heap) Peek() Item { return h.items[0] }

// Empty reports whether the heap has no items.
func (h *Heap) Empty() bool { return len(h.items) == 0 }

// Items returns the heap's items in heap (not sorted) order. Useful
// when the caller only needs the set, e.g. extracting the final
// accepted-results max-heap before sorting ascending.
func (h *Heap) Items() []Item { return h.items }

// Sorted drains the heap and returns items in pop order, top first:
// ascending distance for a min-heap, descending for a max-heap. For the
// accepted-results max-heap (farthest-first) the caller reverses once
// at the end to get ascending distance — this
// mirrors spec.md §4.5's "Return W (order: ascending distance once
// sorted by the caller)".
func (h *Heap) Sorted() []Item {
	out := make([]Item, 0, h.Len())
	for !h.Empty() {
		out = append(out, h.PopItem())
	}
	return out
}
