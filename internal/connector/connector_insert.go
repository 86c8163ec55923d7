package connector

import (
	"github.com/ann-go/hnswgraph/internal/navigator"
	"github.com/ann-go/hnswgraph/internal/regionlock"
)

// ConnectNewNode wires a freshly allocated node id into the graph,
// spec.md §4.7.1. The node must already exist in the arena (its label
// and per-layer edge-list slots allocated by Arena.AddItem) with empty
// edge lists; ConnectNewNode only adds edges, it never allocates ids.
func (c *Connector[L]) ConnectNewNode(id uint32, token regionlock.Token) {
	entryMu := c.arena.EntryMutex()
	entryMu.Lock()

	ep := c.arena.EntryPoint()
	if ep < 0 {
		c.arena.SetEntryPoint(int64(id))
		entryMu.Unlock()
		return
	}

	newNode := c.arena.Node(id)
	epNode := c.arena.Node(uint32(ep))
	topLayer := epNode.MaxLayer
	raisesTop := newNode.MaxLayer > topLayer
	if !raisesTop {
		entryMu.Unlock()
	}

	label, _ := c.arena.Label(id)
	delta := c.deltaFor(label)

	peer := uint32(ep)
	if newNode.MaxLayer < topLayer {
		peer = navigator.FindEntryPoint(c.arena, uint32(ep), newNode.MaxLayer, delta, nil)
	}

	startLayer := newNode.MaxLayer
	if topLayer < startLayer {
		startLayer = topLayer
	}

	for l := startLayer; l >= 0; l-- {
		if next, ok := c.connectAtLayer(id, peer, l, delta, nil, token); ok {
			peer = next
		}
	}

	if raisesTop {
		c.arena.SetEntryPoint(int64(id))
		entryMu.Unlock()
	}
}
