// Package connector implements the graph-mutating half of the index:
// inserting a new node's edges with overflow pruning (spec.md §4.7.1,
// §4.7.2), removing a node and repairing the graph around it (§4.7.3),
// and selectively rewiring a node whose label changed (§4.7.4). Every
// exported entry point is a structural writer and acquires region
// locks for the (node, layer) pairs it touches, per spec.md §5.
package connector

import (
	"github.com/ann-go/hnswgraph/internal/arena"
	"github.com/ann-go/hnswgraph/internal/heuristic"
	"github.com/ann-go/hnswgraph/internal/navigator"
	"github.com/ann-go/hnswgraph/internal/pqueue"
	"github.com/ann-go/hnswgraph/internal/regionlock"
	"github.com/ann-go/hnswgraph/internal/visited"
)

// Params carries the knobs the Connector needs from spec.md §6 that
// affect graph shape: M (MaxEdges), EfConstruction, and the pluggable
// Heuristic.
type Params struct {
	MaxEdges       int
	EfConstruction int
	Heuristic      heuristic.Func
}

// MaxEdgesAt returns the per-layer degree cap: 2M at layer 0, M above
// it, per spec.md §3/§4.7 ("layer-0 fatter than the rest").
func (p Params) MaxEdgesAt(layer int) int {
	if layer == 0 {
		return p.MaxEdges * 2
	}
	return p.MaxEdges
}

// DistanceFunc computes the distance between two labels.
type DistanceFunc[L any] func(a, b L) float32

// Connector mutates the graph held in arena, using locker for
// structural exclusion and dist as the label distance function.
type Connector[L any] struct {
	arena  *arena.Arena[L]
	locker *regionlock.Locker
	dist   DistanceFunc[L]
	params Params
	visited *visited.Pool
}

// New returns a Connector wired to the given arena, locker, distance
// function, parameters, and visited-set pool (shared with the façade's
// query path so both sides benefit from the same pooling).
func New[L any](a *arena.Arena[L], locker *regionlock.Locker, dist DistanceFunc[L], params Params, vpool *visited.Pool) *Connector[L] {
	return &Connector[L]{arena: a, locker: locker, dist: dist, params: params, visited: vpool}
}

// pairDist computes the distance between two existing graph nodes by
// their stored labels. Used by the Heuristic (spec.md §4.6's d(i,j)).
func (c *Connector[L]) pairDist(a, b uint32) float32 {
	la, _ := c.arena.Label(a)
	lb, _ := c.arena.Label(b)
	return c.dist(la, lb)
}

// deltaFor returns a DistanceTo computing distance from query to any
// graph node id, for use by the Navigator.
func (c *Connector[L]) deltaFor(query L) navigator.DistanceTo {
	return func(id uint32) float32 {
		label, _ := c.arena.Label(id)
		return c.dist(query, label)
	}
}

// regionSnapshot builds the {v} ∪ out(v,l) ∪ in(v,l) snapshot function
// the RegionLocker needs (spec.md §4.4 step 1/3).
func (c *Connector[L]) regionSnapshot(v uint32, layer int) func() []uint32 {
	return func() []uint32 {
		node := c.arena.Node(v)
		if node == nil {
			return []uint32{v}
		}
		seen := map[uint32]struct{}{v: {}}
		if layer >= 0 && layer < len(node.OutEdges) {
			for _, n := range node.OutEdges[layer].Snapshot() {
				seen[n] = struct{}{}
			}
		}
		if c.arena.TracksInEdges() && layer >= 0 && layer < len(node.InEdges) {
			for _, n := range node.InEdges[layer].Snapshot() {
				seen[n] = struct{}{}
			}
		}
		out := make([]uint32, 0, len(seen))
		for id := range seen {
			out = append(out, id)
		}
		return out
	}
}

// connect adds the directed edge a->b at layer (and, when in-edges are
// tracked, the reverse entry into b's in-edge list), then prunes a's
// out-edge list back down to the layer cap if it overflowed — spec.md
// §4.7.2. Callers are expected to already hold a region lock covering
// a's neighborhood; connect itself only takes the finer-grained
// edge-list mutexes.
func (c *Connector[L]) connect(a, b uint32, layer int) {
	if a == b {
		return
	}
	aNode := c.arena.Node(a)
	bNode := c.arena.Node(b)
	if aNode == nil || bNode == nil || layer < 0 || layer >= len(aNode.OutEdges) {
		return
	}

	aNode.Lock()
	if aNode.OutEdges[layer].Contains(b) {
		aNode.Unlock()
		return
	}
	aNode.OutEdges[layer].Push(b)
	aNode.Unlock()

	if c.arena.TracksInEdges() && layer < len(bNode.InEdges) {
		bNode.Lock()
		if !bNode.InEdges[layer].Contains(a) {
			bNode.InEdges[layer].Push(a)
		}
		bNode.Unlock()
	}

	aNode.Lock()
	overflow := aNode.OutEdges[layer].Len() > c.params.MaxEdgesAt(layer)
	var current []uint32
	if overflow {
		current = aNode.OutEdges[layer].Clone()
	}
	aNode.Unlock()
	if !overflow {
		return
	}

	cands := make([]heuristic.Candidate, 0, len(current))
	for _, n := range current {
		cands = append(cands, heuristic.Candidate{ID: n, Dist: c.pairDist(n, a)})
	}
	newSet := c.params.Heuristic(cands, c.pairDist, c.params.MaxEdgesAt(layer))
	removed, added := diffSets(current, newSet)

	aNode.Lock()
	aNode.OutEdges[layer].Reset(newSet)
	aNode.Unlock()

	if !c.arena.TracksInEdges() {
		return
	}
	for _, r := range removed {
		if rn := c.arena.Node(r); rn != nil && layer < len(rn.InEdges) {
			rn.Lock()
			rn.InEdges[layer].Remove(a)
			rn.Unlock()
		}
	}
	for _, x := range added {
		if xn := c.arena.Node(x); xn != nil && layer < len(xn.InEdges) {
			xn.Lock()
			if !xn.InEdges[layer].Contains(a) {
				xn.InEdges[layer].Push(a)
			}
			xn.Unlock()
		}
	}
}

// connectAtLayer runs one layer of the insert-style wiring shared by
// ConnectNewNode (§4.7.1 step 4) and Update's Phase B (§4.7.4): search
// the layer from peer, prune candidates with the heuristic, wire edges
// both directions, and report the closest chosen neighbor as the next
// layer's starting peer.
func (c *Connector[L]) connectAtLayer(v, peer uint32, layer int, delta navigator.DistanceTo, filter navigator.Filter, token regionlock.Token) (nextPeer uint32, ok bool) {
	vs := c.visited.Checkout(int(c.arena.Capacity()))
	items := navigator.SearchLayer(c.arena, peer, layer, c.params.EfConstruction, delta, filter, vs)
	c.visited.Return(vs)

	if len(items) == 0 {
		return peer, false
	}

	cands := make([]heuristic.Candidate, len(items))
	distByID := make(map[uint32]float32, len(items))
	for i, it := range items {
		cands[i] = heuristic.Candidate{ID: it.ID, Dist: it.Dist}
		distByID[it.ID] = it.Dist
	}

	chosen := c.params.Heuristic(cands, c.pairDist, c.params.MaxEdgesAt(layer))

	guard := c.locker.Acquire(c.regionSnapshot(v, layer), token)
	for _, n := range chosen {
		c.connect(v, n, layer)
	}
	guard.Release()

	for _, n := range chosen {
		ng := c.locker.Acquire(c.regionSnapshot(n, layer), token)
		c.connect(n, v, layer)
		ng.Release()
	}

	if len(chosen) == 0 {
		return peer, false
	}
	best := chosen[0]
	bestDist := distByID[best]
	for _, n := range chosen[1:] {
		if d := distByID[n]; d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, true
}

func diffSets(old, next []uint32) (removed, added []uint32) {
	inNext := make(map[uint32]struct{}, len(next))
	for _, id := range next {
		inNext[id] = struct{}{}
	}
	inOld := make(map[uint32]struct{}, len(old))
	for _, id := range old {
		inOld[id] = struct{}{}
	}
	for _, id := range old {
		if _, ok := inNext[id]; !ok {
			removed = append(removed, id)
		}
	}
	for _, id := range next {
		if _, ok := inOld[id]; !ok {
			added = append(added, id)
		}
	}
	return removed, added
}

// largestOutDegreeNeighbor scans node's out-edges at layer and returns
// the neighbor with the highest out-degree at that same layer, or -1
// if node has no neighbors there. Used for entry-point handover on
// removal (§4.7.3 step 1) and clean-anchor maintenance during update
// (§4.7.4 Phase A).
func (c *Connector[L]) largestOutDegreeNeighbor(node *arena.Node, layer int) int64 {
	if layer < 0 || layer >= len(node.OutEdges) {
		return -1
	}
	best := int64(-1)
	bestDeg := -1
	for _, n := range node.OutEdges[layer].Snapshot() {
		nn := c.arena.Node(n)
		if nn == nil || layer >= len(nn.OutEdges) {
			continue
		}
		if deg := nn.OutEdges[layer].Len(); deg > bestDeg {
			bestDeg, best = deg, int64(n)
		}
	}
	return best
}

func toCandidates(items []pqueue.Item) []heuristic.Candidate {
	out := make([]heuristic.Candidate, len(items))
	for i, it := range items {
		out[i] = heuristic.Candidate{ID: it.ID, Dist: it.Dist}
	}
	return out
}
