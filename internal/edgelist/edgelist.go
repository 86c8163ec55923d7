// Package edgelist implements the compact dynamic neighbor list used for
// each node's per-layer adjacency. It favors dense storage and cheap
// unordered mutation over stable ordering: the HNSW algorithm never
// depends on the order neighbors are stored in.
package edgelist

import "sync/atomic"

// List is a small dense vector of neighbor ids.
//
// List is not safe for concurrent writers: callers (the Connector,
// under a node's mutex) serialize Push/Remove/Reset. Readers (the
// Navigator) call Snapshot without holding that mutex, so every
// mutation publishes a brand-new backing slice via an atomic pointer
// swap rather than mutating the previous one in place — a lock-free
// Snapshot() therefore always observes a complete, internally
// consistent slice header, never a torn mix of an old pointer/cap with
// a new length (or vice versa), and never a value that changes under
// its feet mid-read.
type List struct {
	ids *atomic.Pointer[[]uint32]
}

// New returns an empty list pre-sized for the given per-layer cap, per
// spec.md §4.1 ("starting capacity = max_edges+1 for that layer").
func New(layerCap int) List {
	if layerCap < 0 {
		layerCap = 0
	}
	backing := make([]uint32, 0, layerCap+1)
	p := new(atomic.Pointer[[]uint32])
	p.Store(&backing)
	return List{ids: p}
}

// Len returns the number of live neighbors.
func (l *List) Len() int { return len(*l.ids.Load()) }

// Contains reports whether v is present. O(len).
func (l *List) Contains(v uint32) bool {
	for _, x := range *l.ids.Load() {
		if x == v {
			return true
		}
	}
	return false
}

// Push appends v, publishing a new backing array so a concurrent
// lock-free Snapshot never observes a length that outruns its pointer.
// It does not check for duplicates; callers that need dedup semantics
// (the Connector) check Contains first.
func (l *List) Push(v uint32) {
	cur := *l.ids.Load()
	next := make([]uint32, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = v
	l.ids.Store(&next)
}

// Remove deletes the first occurrence of v by swapping it with the last
// element and shrinking — O(len), no stable ordering preserved. Reports
// whether v was found. Builds a fresh backing array rather than
// swapping within the existing one, so a concurrent Snapshot reader
// never sees an in-place value change.
func (l *List) Remove(v uint32) bool {
	cur := *l.ids.Load()
	for i, x := range cur {
		if x == v {
			last := len(cur) - 1
			next := make([]uint32, last)
			copy(next, cur[:last])
			if i != last {
				next[i] = cur[last]
			}
			l.ids.Store(&next)
			return true
		}
	}
	return false
}

// Reset replaces the contents with ids. Used by the Connector's
// overflow-prune path (§4.7.2) and by remove/update's layer wipe.
func (l *List) Reset(ids []uint32) {
	next := make([]uint32, len(ids))
	copy(next, ids)
	l.ids.Store(&next)
}

// Snapshot returns the live ids as a slice the caller must not mutate.
// Safe to call without holding any per-node mutex: it is a single
// atomic load of the current backing array, so it always returns a
// slice some writer actually published, never a partial one.
func (l *List) Snapshot() []uint32 {
	return *l.ids.Load()
}

// Clone returns an independent copy, used when the Connector needs a
// stable working copy of a neighbor's current edges before pruning.
func (l *List) Clone() []uint32 {
	cur := *l.ids.Load()
	out := make([]uint32, len(cur))
	copy(out, cur)
	return out
}
