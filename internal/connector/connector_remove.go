package connector

import (
	"sort"

	"github.com/ann-go/hnswgraph/internal/arena"
	"github.com/ann-go/hnswgraph/internal/heuristic"
	"github.com/ann-go/hnswgraph/internal/regionlock"
)

// RemoveNode deletes v from the graph and repairs the neighborhoods
// that pointed into it, layer by layer from the top down, per spec.md
// §4.7.3. Callers (the façade) are responsible for rejecting removal
// when the index was built with AllowRemovals=false — RemoveNode
// itself assumes in-edges are tracked.
func (c *Connector[L]) RemoveNode(v uint32, token regionlock.Token) {
	node := c.arena.Node(v)
	if node == nil || !node.IsLive() {
		return
	}

	for l := node.MaxLayer; l >= 0; l-- {
		guard := c.locker.Acquire(c.regionSnapshot(v, l), token)

		if ep := c.arena.EntryPoint(); ep >= 0 && uint32(ep) == v {
			if next := c.largestOutDegreeNeighbor(node, l); next >= 0 {
				c.arena.SetEntryPoint(next)
			} else if l == 0 {
				c.arena.SetEntryPoint(-1)
			}
		}

		c.repairLayer(v, node, l)

		if l == 0 {
			c.arena.RemoveItem(v)
		}
		guard.Release()
	}
}

// repairLayer performs steps 2-3 of spec.md §4.7.3 for a single layer:
// strip v out of every out-neighbor's in-edges, then for every node
// that pointed into v, admit v's donor out-neighbors as replacements,
// nearest first and one at a time until that node's layer cap is
// reached, re-running the relative-neighborhood admission test against
// that node's current neighborhood for each.
func (c *Connector[L]) repairLayer(v uint32, node *arena.Node, l int) {
	if l < 0 || l >= len(node.OutEdges) {
		return
	}

	donors := node.OutEdges[l].Clone()
	if c.arena.TracksInEdges() {
		for _, n := range donors {
			if nn := c.arena.Node(n); nn != nil && l < len(nn.InEdges) {
				nn.Lock()
				nn.InEdges[l].Remove(v)
				nn.Unlock()
			}
		}
	}

	if !c.arena.TracksInEdges() || l >= len(node.InEdges) {
		return
	}
	affected := node.InEdges[l].Clone()
	maxE := c.params.MaxEdgesAt(l)

	for _, aID := range affected {
		aNode := c.arena.Node(aID)
		if aNode == nil || l >= len(aNode.OutEdges) {
			continue
		}

		aNode.Lock()
		aNode.OutEdges[l].Remove(v)
		current := aNode.OutEdges[l].Clone()
		aNode.Unlock()

		if len(current) >= maxE {
			continue
		}

		currentSet := make(map[uint32]struct{}, len(current))
		for _, id := range current {
			currentSet[id] = struct{}{}
		}

		cands := make([]heuristic.Candidate, 0, len(donors))
		for _, d := range donors {
			if d == aID {
				continue
			}
			if _, already := currentSet[d]; already {
				continue
			}
			cands = append(cands, heuristic.Candidate{ID: d, Dist: c.pairDist(d, aID)})
		}
		sort.Slice(cands, func(i, j int) bool { return cands[i].Dist < cands[j].Dist })

		for _, cand := range cands {
			if len(current) >= maxE {
				break
			}
			admit := true
			for _, r := range current {
				if c.pairDist(r, cand.ID) < cand.Dist {
					admit = false
					break
				}
			}
			if !admit {
				continue
			}
			current = append(current, cand.ID)

			aNode.Lock()
			if !aNode.OutEdges[l].Contains(cand.ID) {
				aNode.OutEdges[l].Push(cand.ID)
			}
			aNode.Unlock()

			if c.arena.TracksInEdges() {
				if xn := c.arena.Node(cand.ID); xn != nil && l < len(xn.InEdges) {
					xn.Lock()
					if !xn.InEdges[l].Contains(aID) {
						xn.InEdges[l].Push(aID)
					}
					xn.Unlock()
				}
			}
		}
	}
}
