// Package navigator implements the lock-free read side of the graph:
// greedy descent across upper layers, best-first beam search within a
// single layer, and range search (spec.md §4.5). None of these
// functions take a region lock — they traverse OutEdges snapshots and
// tolerate a concurrently mutating graph, per spec.md §5.
package navigator

import (
	"math"

	"github.com/ann-go/hnswgraph/internal/arena"
	"github.com/ann-go/hnswgraph/internal/pqueue"
	"github.com/ann-go/hnswgraph/internal/visited"
)

// DistanceTo computes the distance from the current query/point to id.
type DistanceTo func(id uint32) float32

// Filter reports whether id is an admissible result. A nil Filter
// admits everything.
type Filter func(id uint32) bool

func passes(f Filter, id uint32) bool { return f == nil || f(id) }

// nodeAt fetches node id from the arena, tolerating a stale or removed
// id by returning nil — a lock-free reader must never crash on a torn
// view of the graph (spec.md §5).
func nodeAt[L any](a *arena.Arena[L], id uint32) *arena.Node {
	return a.Node(id)
}

func outNeighbors(n *arena.Node, layer int) []uint32 {
	if n == nil || layer < 0 || layer >= len(n.OutEdges) {
		return nil
	}
	return n.OutEdges[layer].Snapshot()
}

// FindEntryPoint performs the greedy multi-layer descent of spec.md
// §4.5: starting at entry, repeatedly move to the neighbor with the
// smallest distance at each layer from entry's top layer down to
// targetLayer+1. When filter is non-nil, only filter-passing candidates
// may become the returned "best"; the traversal pointer itself ignores
// the filter so a filtered-out region doesn't strand the search.
func FindEntryPoint[L any](a *arena.Arena[L], entry uint32, targetLayer int, delta DistanceTo, filter Filter) uint32 {
	entryNode := nodeAt(a, entry)
	if entryNode == nil {
		return entry
	}

	curr := entry
	currDist := delta(curr)
	var best uint32
	bestDist := float32(math.MaxFloat32)
	bestValid := false
	if passes(filter, curr) {
		best, bestDist, bestValid = curr, currDist, true
	}

	top := entryNode.MaxLayer
	for l := top; l > targetLayer; l-- {
		for {
			improved := false
			node := nodeAt(a, curr)
			for _, n := range outNeighbors(node, l) {
				nd := delta(n)
				if passes(filter, n) && (!bestValid || nd < bestDist) {
					best, bestDist, bestValid = n, nd, true
				}
				if nd < currDist {
					curr, currDist = n, nd
					improved = true
				}
			}
			if !improved {
				break
			}
		}
	}

	if filter != nil && bestValid {
		return best
	}
	return curr
}

// SearchLayer is the best-first beam search of spec.md §4.5: maintain a
// min-heap of expansion candidates and a bounded max-heap of accepted
// results, expanding the closest unvisited candidate until the
// characteristic HNSW early-exit condition fires. vs is a checked-out
// visited.Set the caller owns (typically from a pool); SearchLayer marks
// it but never returns it.
func SearchLayer[L any](a *arena.Arena[L], entry uint32, layer int, k int, delta DistanceTo, filter Filter, vs *visited.Set) []pqueue.Item {
	entryDist := delta(entry)

	candidates := pqueue.MinHeap(k * 2)
	accepted := pqueue.MaxHeap(k)

	candidates.PushItem(pqueue.Item{ID: entry, Dist: entryDist})
	vs.Visit(entry)

	worstAccepted := float32(math.MaxFloat32)
	if passes(filter, entry) {
		accepted.PushItem(pqueue.Item{ID: entry, Dist: entryDist})
		worstAccepted = entryDist
	}

	for !candidates.Empty() {
		top := candidates.Peek()
		if top.Dist > worstAccepted && accepted.Len() >= k {
			break
		}
		c := candidates.PopItem()
		node := nodeAt(a, c.ID)

		for _, n := range outNeighbors(node, layer) {
			if vs.Visit(n) {
				continue
			}
			nd := delta(n)
			if accepted.Len() < k || nd < worstAccepted {
				candidates.PushItem(pqueue.Item{ID: n, Dist: nd})
				if passes(filter, n) {
					accepted.PushItem(pqueue.Item{ID: n, Dist: nd})
					if accepted.Len() > k {
						accepted.PopItem()
					}
					if !accepted.Empty() {
						worstAccepted = accepted.Peek().Dist
					}
				}
			}
		}
	}

	items := accepted.Sorted() // descending (max-heap)
	reverse(items)
	return items
}

// RangeSearch admits every node within radius of the query, using the
// same beam skeleton as SearchLayer with an unbounded accepted set.
func RangeSearch[L any](a *arena.Arena[L], entry uint32, layer int, radius float32, delta DistanceTo, filter Filter, vs *visited.Set) []pqueue.Item {
	entryDist := delta(entry)

	candidates := pqueue.MinHeap(16)
	var accepted []pqueue.Item

	candidates.PushItem(pqueue.Item{ID: entry, Dist: entryDist})
	vs.Visit(entry)

	if entryDist <= radius && passes(filter, entry) {
		accepted = append(accepted, pqueue.Item{ID: entry, Dist: entryDist})
	}

	for !candidates.Empty() {
		top := candidates.Peek()
		if top.Dist > radius {
			break
		}
		c := candidates.PopItem()
		node := nodeAt(a, c.ID)

		for _, n := range outNeighbors(node, layer) {
			if vs.Visit(n) {
				continue
			}
			nd := delta(n)
			if nd <= radius {
				candidates.PushItem(pqueue.Item{ID: n, Dist: nd})
				if passes(filter, n) {
					accepted = append(accepted, pqueue.Item{ID: n, Dist: nd})
				}
			}
		}
	}

	sortAscending(accepted)
	return accepted
}

func reverse(items []pqueue.Item) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

func sortAscending(items []pqueue.Item) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Dist < items[j-1].Dist; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
