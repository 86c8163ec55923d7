package connector

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ann-go/hnswgraph/internal/arena"
	"github.com/ann-go/hnswgraph/internal/navigator"
	"github.com/ann-go/hnswgraph/internal/regionlock"
)

// UpdateRequest is one (id, new label) pair in an Update batch.
type UpdateRequest[L any] struct {
	ID       uint32
	NewLabel L
}

// Update rewrites labels in place for every request, rewiring only the
// layers where the move is large enough to matter (spec.md §4.7.4).
// Phase A runs per-node, bounded to parallelism concurrent workers, and
// marks a node "dirty" up to the highest layer where its neighborhood
// no longer brackets its new position. Phase B reconnects every dirty
// node from the top of its dirty range down, using the other requests'
// dirty status as a scratch exclusion filter so two nodes mid-update
// don't wire to each other's about-to-be-replaced edges.
func (c *Connector[L]) Update(requests []UpdateRequest[L], nextToken func() regionlock.Token, parallelism int) error {
	if len(requests) == 0 {
		return nil
	}

	origEntry := c.arena.EntryPoint()

	dirty := make(map[uint32]int, len(requests))
	newLabelByID := make(map[uint32]L, len(requests))
	var dirtyMu sync.Mutex

	cleanAnchors := make(map[int]int64)
	var anchorMu sync.Mutex
	getAnchor := func(l int) int64 {
		anchorMu.Lock()
		defer anchorMu.Unlock()
		if v, ok := cleanAnchors[l]; ok {
			return v
		}
		v := c.arena.EntryPoint()
		cleanAnchors[l] = v
		return v
	}
	demoteAnchor := func(l int, node *arena.Node) {
		anchorMu.Lock()
		defer anchorMu.Unlock()
		if _, ok := cleanAnchors[l]; !ok {
			cleanAnchors[l] = c.arena.EntryPoint()
		}
		if next := c.largestOutDegreeNeighbor(node, l); next >= 0 {
			cleanAnchors[l] = next
		} else {
			cleanAnchors[l] = -1
		}
	}

	if parallelism <= 0 {
		parallelism = 1
	}

	// Phase A: per-node dirty marking and edge wipe of layers whose
	// neighborhood no longer brackets the node's new position.
	eg := new(errgroup.Group)
	eg.SetLimit(parallelism)
	for _, req := range requests {
		req := req
		eg.Go(func() error {
			c.updatePhaseA(req, nextToken(), dirty, &dirtyMu, demoteAnchor)
			dirtyMu.Lock()
			newLabelByID[req.ID] = req.NewLabel
			dirtyMu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	// Special-case: if the original entry point itself went dirty,
	// reconnect it top-down against the clean anchors recorded before
	// any rewiring happened, then drop it from the dirty set so Phase B
	// doesn't reprocess it with a find_entry_point-based peer.
	if origEntry >= 0 {
		v := uint32(origEntry)
		if top, ok := dirty[v]; ok {
			newLabel := newLabelByID[v]
			delta := c.deltaFor(newLabel)
			token := nextToken()
			peer := uint32(origEntry)
			for l := top; l >= 0; l-- {
				anchor := getAnchor(l)
				if anchor < 0 {
					if ep := c.arena.EntryPoint(); ep >= 0 {
						anchor = ep
					} else {
						continue
					}
				}
				if next, ok := c.connectAtLayer(v, uint32(anchor), l, delta, nil, token); ok {
					peer = next
				}
			}
			_ = peer
			delete(dirty, v)
		}
	}

	// Phase B: reconnect every remaining dirty node, excluding peers
	// that are themselves dirty at or above the layer being wired (they
	// may be mid-rewire or about to be).
	type dirtyItem struct {
		id  uint32
		top int
	}
	items := make([]dirtyItem, 0, len(dirty))
	for id, top := range dirty {
		items = append(items, dirtyItem{id, top})
	}

	eg2 := new(errgroup.Group)
	eg2.SetLimit(parallelism)
	for _, it := range items {
		it := it
		eg2.Go(func() error {
			newLabel := newLabelByID[it.id]
			delta := c.deltaFor(newLabel)
			token := nextToken()

			currentLayer := it.top
			filter := func(cand uint32) bool {
				if cand == it.id {
					return false
				}
				dirtyMu.Lock()
				otherTop, isDirty := dirty[cand]
				dirtyMu.Unlock()
				if !isDirty {
					return true
				}
				return otherTop < currentLayer
			}

			ep := c.arena.EntryPoint()
			if ep < 0 {
				return nil
			}
			peer := navigator.FindEntryPoint(c.arena, uint32(ep), it.top, delta, filter)
			for l := it.top; l >= 0; l-- {
				currentLayer = l
				if next, ok := c.connectAtLayer(it.id, peer, l, delta, filter, token); ok {
					peer = next
				} else if ep := c.arena.EntryPoint(); ep >= 0 {
					peer = uint32(ep)
				}
			}
			return nil
		})
	}
	return eg2.Wait()
}

// updatePhaseA implements spec.md §4.7.4's Phase A for a single
// request: compute the move distance Δ against the OLD label, and for
// every layer from 0 to the node's max layer, compare Δ against μ (the
// node's distance to its nearest current neighbor, also under the old
// label). When Δ exceeds μ the layer's neighborhood no longer brackets
// the new position — wipe it and mark the node dirty up through that
// layer. The label itself is swapped in only after every layer has
// been inspected.
func (c *Connector[L]) updatePhaseA(req UpdateRequest[L], token regionlock.Token, dirty map[uint32]int, dirtyMu *sync.Mutex, demoteAnchor func(int, *arena.Node)) {
	node := c.arena.Node(req.ID)
	if node == nil || !node.IsLive() {
		return
	}

	oldLabel, ok := c.arena.Label(req.ID)
	if !ok {
		return
	}
	delta := c.dist(req.NewLabel, oldLabel)
	if delta == 0 {
		return
	}

	topDirty := -1
	for l := 0; l <= node.MaxLayer; l++ {
		guard := c.locker.Acquire(c.regionSnapshot(req.ID, l), token)

		neighbors := node.OutEdges[l].Clone()
		if len(neighbors) == 0 {
			guard.Release()
			continue
		}

		mu := float32(-1)
		for _, n := range neighbors {
			nLabel, ok := c.arena.Label(n)
			if !ok {
				continue
			}
			d := c.dist(oldLabel, nLabel)
			if mu < 0 || d < mu {
				mu = d
			}
		}

		if mu >= 0 && delta < mu {
			guard.Release()
			continue
		}

		if ep := c.arena.EntryPoint(); ep >= 0 && uint32(ep) == req.ID {
			demoteAnchor(l, node)
		}

		c.repairLayer(req.ID, node, l)

		node.Lock()
		node.OutEdges[l].Reset(nil)
		if c.arena.TracksInEdges() && l < len(node.InEdges) {
			node.InEdges[l].Reset(nil)
		}
		node.Unlock()

		topDirty = l
		guard.Release()
	}

	c.arena.SetLabel(req.ID, req.NewLabel)

	if topDirty >= 0 {
		dirtyMu.Lock()
		dirty[req.ID] = topDirty
		dirtyMu.Unlock()
	}
}
