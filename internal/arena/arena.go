// Package arena implements the fixed-indexed node/label storage described
// in spec.md §3 and §4.3: a pair of parallel arrays (nodes, labels) that
// double in capacity on overflow, plus a free-id queue that lets removed
// ids be reused before the arrays are extended.
package arena

import (
	"math"
	"math/rand"
	"sync"

	"github.com/ann-go/hnswgraph/internal/edgelist"
	"github.com/ann-go/hnswgraph/internal/logger"
)

// Node is the record stored at a fixed id. OutEdges/InEdges are indexed
// by layer, 0..MaxLayer. The Node itself is heap-allocated once and
// never moved, so a reader holding a *Node survives arena growth —
// growth only reallocates the slice of *Node pointers, never the nodes
// themselves (spec.md §5: "the arena never shrinks or deallocates old
// storage while readers may hold a pointer to it").
type Node struct {
	ID       uint32
	MaxLayer int

	// mu guards OutEdges/InEdges mutation for this node (the "per-node
	// edge-list mutexes" of spec.md §5). Lock-free readers (the
	// Navigator) never take this lock; they rely on edgelist.List's
	// Snapshot tolerating a concurrent writer.
	mu        sync.Mutex
	OutEdges  []edgelist.List
	InEdges   []edgelist.List // nil when the arena doesn't track in-edges
	live      bool
}

// Arena holds the node/label arrays for label type L and the id
// allocation machinery described in spec.md §4.3.
type Arena[L any] struct {
	indexMu sync.Mutex // guards length/capacity/nodes/labels growth
	freeMu  sync.Mutex
	free    []uint32

	nodes  []*Node
	labels []L

	length   int
	capacity int
	count    int

	trackInEdges bool

	rngMu sync.Mutex
	rng   *rand.Rand
	mL    float64
	zeroLayerGuaranteed bool

	resizeMu   sync.Mutex
	onResize   []func(newCapacity int)

	entryMu       sync.Mutex
	entryPointID  int64 // -1 when empty
}

// Config configures a new Arena.
type Config struct {
	InitialCapacity     int
	TrackInEdges        bool
	DistributionRate    float64 // mL
	ZeroLayerGuaranteed bool
	RandomSeed          int64 // negative means time-seeded
}

// New creates an empty Arena sized to cfg.InitialCapacity.
func New[L any](cfg Config) *Arena[L] {
	if cfg.InitialCapacity <= 0 {
		cfg.InitialCapacity = 1024
	}
	seed := cfg.RandomSeed
	src := rand.NewSource(seed)
	if seed < 0 {
		src = rand.NewSource(rand.Int63())
	}
	return &Arena[L]{
		nodes:               make([]*Node, cfg.InitialCapacity),
		labels:              make([]L, cfg.InitialCapacity),
		capacity:            cfg.InitialCapacity,
		trackInEdges:        cfg.TrackInEdges,
		rng:                 rand.New(src),
		mL:                  cfg.DistributionRate,
		zeroLayerGuaranteed: cfg.ZeroLayerGuaranteed,
		entryPointID:        -1,
	}
}

// OnResize registers a callback fired synchronously, inside the same
// critical section that installs a new capacity, whenever the arena
// grows. This is the "reallocation event" of spec.md §4.3/§5: downstream
// pools (visited-set pool, region locker bitmap) must observe the new
// capacity before any writer proceeds past the critical section, which
// running the callback before indexMu.Unlock guarantees.
func (a *Arena[L]) OnResize(fn func(newCapacity int)) {
	a.resizeMu.Lock()
	a.onResize = append(a.onResize, fn)
	a.resizeMu.Unlock()
}

// Capacity returns the current array capacity.
func (a *Arena[L]) Capacity() int {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	return a.capacity
}

// Count returns the number of live ids.
func (a *Arena[L]) Count() int {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	return a.count
}

// TracksInEdges reports whether reverse adjacency is maintained.
func (a *Arena[L]) TracksInEdges() bool { return a.trackInEdges }

// EntryPoint returns the current entry point id, or -1 if the graph is
// empty (spec.md §3 invariant 4).
func (a *Arena[L]) EntryPoint() int64 {
	a.entryMu.Lock()
	defer a.entryMu.Unlock()
	return a.entryPointID
}

// SetEntryPoint installs a new entry point. Called by the Connector
// under the entry-point mutex described in spec.md §4.7.1; Arena itself
// doesn't serialize entry-point transitions beyond the access below —
// the Connector is the sole writer.
func (a *Arena[L]) SetEntryPoint(id int64) {
	a.entryMu.Lock()
	a.entryPointID = id
	a.entryMu.Unlock()
}

// EntryMutex exposes the entry-point mutex itself so the Connector can
// hold it across the multi-step insert procedure of spec.md §4.7.1 step
// 1-2, not just around a single read/write.
func (a *Arena[L]) EntryMutex() *sync.Mutex { return &a.entryMu }

// SampleLayer draws a layer for a new node via ⌊-ln(U(0,1]) · mL⌋, per
// spec.md §4.3 step 1. Returns (0, false) when zeroLayerGuaranteed
// is false and the draw should veto the insert (layer < 0 after the -1
// adjustment).
func (a *Arena[L]) SampleLayer() (layer int, ok bool) {
	a.rngMu.Lock()
	u := a.rng.Float64()
	a.rngMu.Unlock()

	for u <= 0 {
		a.rngMu.Lock()
		u = a.rng.Float64()
		a.rngMu.Unlock()
	}

	layer = int(math.Floor(-math.Log(u) * a.mL))
	if !a.zeroLayerGuaranteed {
		layer--
	}
	if layer < 0 {
		return 0, false
	}
	return layer, true
}

// AddItem allocates an id for label, initializing per-layer edge lists
// sized to each layer's cap, per spec.md §4.3 steps 2-4. maxEdges(layer)
// is supplied by the caller (the Index façade knows M and 2M).
func (a *Arena[L]) AddItem(label L, maxLayer int, maxEdges func(layer int) int) uint32 {
	id := a.allocate()

	out := make([]edgelist.List, maxLayer+1)
	var in []edgelist.List
	if a.trackInEdges {
		in = make([]edgelist.List, maxLayer+1)
	}
	for l := 0; l <= maxLayer; l++ {
		out[l] = edgelist.New(maxEdges(l))
		if a.trackInEdges {
			in[l] = edgelist.New(maxEdges(l))
		}
	}

	node := &Node{ID: id, MaxLayer: maxLayer, OutEdges: out, InEdges: in, live: true}

	a.indexMu.Lock()
	a.nodes[id] = node
	a.labels[id] = label
	a.count++
	a.indexMu.Unlock()

	return id
}

// allocate reserves an id: dequeue from the free list if possible,
// otherwise extend length, doubling capacity (and firing the
// reallocation event) if length would exceed capacity.
func (a *Arena[L]) allocate() uint32 {
	a.freeMu.Lock()
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		a.freeMu.Unlock()
		return id
	}
	a.freeMu.Unlock()

	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	if a.length == a.capacity {
		a.grow()
	}
	id := uint32(a.length)
	a.length++
	return id
}

// grow doubles capacity. Must be called with indexMu held. The
// reallocation event fires before indexMu is released by the caller,
// satisfying spec.md's "observable-before any writer proceeds" ordering.
func (a *Arena[L]) grow() {
	newCap := a.capacity * 2
	if newCap == 0 {
		newCap = 1024
	}

	grownNodes := make([]*Node, newCap)
	copy(grownNodes, a.nodes)
	a.nodes = grownNodes

	grownLabels := make([]L, newCap)
	copy(grownLabels, a.labels)
	a.labels = grownLabels

	a.capacity = newCap

	logger.Debug("arena reallocation", "old_capacity", newCap/2, "new_capacity", newCap)

	a.resizeMu.Lock()
	callbacks := append([]func(int){}, a.onResize...)
	a.resizeMu.Unlock()
	for _, fn := range callbacks {
		fn(newCap)
	}
}

// RemoveItem clears label[id], enqueues id for reuse, and decrements
// count. The Node record is left intact (spec.md §4.3: "so concurrent
// readers holding only an id can still observe a consistent (though
// soon-stale) adjacency"). Callers (the Connector) must hold the region
// lock for (id, 0) across this call so the id cannot be reused by a
// concurrent Add before the caller's own mutation finishes.
func (a *Arena[L]) RemoveItem(id uint32) {
	a.indexMu.Lock()
	var zero L
	a.labels[id] = zero
	if node := a.nodes[id]; node != nil {
		node.mu.Lock()
		node.live = false
		node.mu.Unlock()
	}
	a.count--
	a.indexMu.Unlock()

	a.freeMu.Lock()
	a.free = append(a.free, id)
	a.freeMu.Unlock()
}

// Node returns the node record at id, or nil if id is out of range.
// Safe to call lock-free; the returned pointer is stable for the
// lifetime of the process (see Node's doc comment).
func (a *Arena[L]) Node(id uint32) *Node {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	if int(id) >= len(a.nodes) {
		return nil
	}
	return a.nodes[id]
}

// Label returns the label stored at id and whether id is currently live.
func (a *Arena[L]) Label(id uint32) (L, bool) {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	var zero L
	if int(id) >= len(a.labels) {
		return zero, false
	}
	node := a.nodes[id]
	if node == nil || !node.IsLive() {
		return zero, false
	}
	return a.labels[id], true
}

// SetLabel overwrites the label stored at id. Used by the Connector's
// Update operation (spec.md §4.7.4) once a node's edges have been
// rewired or confirmed stable; the caller is expected to hold the
// region lock for (id, 0) across the surrounding update so no reader
// observes the new label paired with stale edges for a structural
// write still in flight.
func (a *Arena[L]) SetLabel(id uint32, label L) {
	a.indexMu.Lock()
	if int(id) < len(a.labels) {
		a.labels[id] = label
	}
	a.indexMu.Unlock()
}

// IsLive reports whether the node is still a live member of the graph.
func (n *Node) IsLive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.live
}

// Lock/Unlock expose the node's edge-list mutex to the Connector, which
// serializes structural writers per spec.md §5 ("per-node edge-list
// mutexes when touching an out_edges[l] or in_edges[l]").
func (n *Node) Lock()   { n.mu.Lock() }
func (n *Node) Unlock() { n.mu.Unlock() }

// Length returns the number of ids ever allocated (including freed
// ones still holding a slot). Serialize records it in the snapshot's
// Meta record.
func (a *Arena[L]) Length() int {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	return a.length
}

// FreeIDs returns a copy of the current free-id queue.
func (a *Arena[L]) FreeIDs() []uint32 {
	a.freeMu.Lock()
	defer a.freeMu.Unlock()
	out := make([]uint32, len(a.free))
	copy(out, a.free)
	return out
}

// Restore builds an Arena sized and positioned per a snapshot's Meta
// record, bypassing the normal allocate/grow path. Callers populate
// live nodes afterward with RestoreNode. Used only by Deserialize.
func Restore[L any](cfg Config, capacity, length int, entryPointID int64, freeIDs []uint32) *Arena[L] {
	a := New[L](cfg)
	if capacity > a.capacity {
		a.nodes = make([]*Node, capacity)
		a.labels = make([]L, capacity)
		a.capacity = capacity
	}
	a.length = length
	a.entryPointID = entryPointID
	a.free = append([]uint32{}, freeIDs...)
	return a
}

// RestoreNode installs a live node's label and adjacency directly,
// without running the heuristic or touching the region locker — the
// snapshot already encodes the post-pruning edge lists. in may be nil
// when the arena doesn't track in-edges.
func (a *Arena[L]) RestoreNode(id uint32, label L, maxLayer int, out, in [][]uint32) {
	outLists := make([]edgelist.List, len(out))
	for l, ids := range out {
		outLists[l] = edgelist.New(len(ids))
		outLists[l].Reset(ids)
	}
	var inLists []edgelist.List
	if a.trackInEdges && in != nil {
		inLists = make([]edgelist.List, len(in))
		for l, ids := range in {
			inLists[l] = edgelist.New(len(ids))
			inLists[l].Reset(ids)
		}
	}

	node := &Node{ID: id, MaxLayer: maxLayer, OutEdges: outLists, InEdges: inLists, live: true}

	a.indexMu.Lock()
	a.nodes[id] = node
	a.labels[id] = label
	a.count++
	a.indexMu.Unlock()
}

// Snapshot returns a copy of every currently live id. Used by the
// façade's Info and Serialize; never called from a hot path.
func (a *Arena[L]) Snapshot() []uint32 {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()
	out := make([]uint32, 0, a.count)
	for id, n := range a.nodes {
		if n != nil && n.IsLive() {
			out = append(out, uint32(id))
		}
	}
	return out
}
