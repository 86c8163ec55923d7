package hnsw

import (
	"io"
	"reflect"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ann-go/hnswgraph/internal/arena"
	"github.com/ann-go/hnswgraph/internal/connector"
	"github.com/ann-go/hnswgraph/internal/heuristic"
	"github.com/ann-go/hnswgraph/internal/navigator"
	"github.com/ann-go/hnswgraph/internal/pqueue"
	"github.com/ann-go/hnswgraph/internal/regionlock"
	"github.com/ann-go/hnswgraph/internal/snapshot"
	"github.com/ann-go/hnswgraph/internal/visited"
)

// Result is one entry of a Knn/Range/MultiLayerKnn answer.
type Result[L any] struct {
	ID    int64
	Label L
	Dist  float32
}

// LayerStats summarizes the degree distribution of every node whose
// MaxLayer reaches a given layer.
type LayerStats struct {
	NodeCount int

	MinOutDegree, MaxOutDegree       int
	AvgOutDegree, MedianOutDegree    float64
	MinInDegree, MaxInDegree         int
	AvgInDegree, MedianInDegree      float64
}

// Info is the per-layer breakdown returned by Index.Info.
type Info struct {
	Layers map[int]LayerStats
}

// Index is the generic façade over the graph core, wiring together the
// id arena, the region locker, the pooled visited-sets, and the
// Connector per spec.md §4.8. L is the label type stored at each node.
type Index[L any] struct {
	arena    *arena.Arena[L]
	locker   *regionlock.Locker
	vpool    *visited.Pool
	conn     *connector.Connector[L]
	params   Params[L]
	cparams  connector.Params
	tokenSeq atomic.Uint64
}

// New builds an empty Index from params, validating it first.
func New[L any](params Params[L]) (*Index[L], error) {
	if params.Heuristic == nil {
		params.Heuristic = heuristic.RelativeNeighborhood
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.Parallelism <= 0 {
		params.Parallelism = runtime.GOMAXPROCS(0)
	}

	cfg := arena.Config{
		InitialCapacity:     params.CollectionSize,
		TrackInEdges:        params.AllowRemovals,
		DistributionRate:    params.DistributionRate,
		ZeroLayerGuaranteed: params.ZeroLayerGuaranteed,
		RandomSeed:          params.RandomSeed,
	}
	a := arena.New[L](cfg)
	locker := regionlock.New()
	vpool := visited.NewPool(params.CollectionSize)
	a.OnResize(vpool.Resize)
	a.OnResize(locker.Resize)

	cparams := connector.Params{
		MaxEdges:       params.MaxEdges,
		EfConstruction: params.EfConstruction,
		Heuristic:      params.Heuristic,
	}
	conn := connector.New[L](a, locker, connector.DistanceFunc[L](params.Distance), cparams, vpool)

	return &Index[L]{arena: a, locker: locker, vpool: vpool, conn: conn, params: params, cparams: cparams}, nil
}

func (idx *Index[L]) nextToken() regionlock.Token {
	return regionlock.Token(idx.tokenSeq.Add(1))
}

func (idx *Index[L]) maxEdgesAt(layer int) int { return idx.cparams.MaxEdgesAt(layer) }

// Add inserts label and returns its new id. Returns (-1, nil) when the
// index was built with ZeroLayerGuaranteed=false and the layer sampler
// vetoed this insert (spec.md §4.3 step 1).
func (idx *Index[L]) Add(label L) (int64, error) {
	layer, ok := idx.arena.SampleLayer()
	if !ok {
		return -1, nil
	}
	id := idx.arena.AddItem(label, layer, idx.maxEdgesAt)
	idx.conn.ConnectNewNode(id, idx.nextToken())
	return int64(id), nil
}

// AddBatch inserts every label, in parallel bounded by
// Params.Parallelism. Individual vetoed inserts show up as -1 at their
// slot; the batch itself never fails because of a veto.
func (idx *Index[L]) AddBatch(labels []L) ([]int64, error) {
	ids := make([]int64, len(labels))
	eg := new(errgroup.Group)
	eg.SetLimit(idx.params.Parallelism)
	for i, label := range labels {
		i, label := i, label
		eg.Go(func() error {
			id, err := idx.Add(label)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Remove deletes id from the graph. Returns ErrNotSupported when the
// index was built with AllowRemovals=false.
func (idx *Index[L]) Remove(id int64) error {
	if !idx.params.AllowRemovals {
		return notSupported("removals are disabled for this index")
	}
	if id < 0 {
		return invalidArgument("id must be >= 0")
	}
	idx.conn.RemoveNode(uint32(id), idx.nextToken())
	return nil
}

// RemoveBatch removes every id, in parallel bounded by Params.Parallelism.
func (idx *Index[L]) RemoveBatch(ids []int64) error {
	if !idx.params.AllowRemovals {
		return notSupported("removals are disabled for this index")
	}
	eg := new(errgroup.Group)
	eg.SetLimit(idx.params.Parallelism)
	for _, id := range ids {
		id := id
		eg.Go(func() error { return idx.Remove(id) })
	}
	return eg.Wait()
}

// Update replaces the labels at ids with newLabels, rewiring edges only
// where the move is large enough to matter (spec.md §4.7.4). ids and
// newLabels must be the same length.
func (idx *Index[L]) Update(ids []int64, newLabels []L) error {
	if len(ids) != len(newLabels) {
		return invalidArgument("ids and newLabels must have the same length")
	}
	reqs := make([]connector.UpdateRequest[L], len(ids))
	for i, id := range ids {
		if id < 0 {
			return invalidArgument("id must be >= 0")
		}
		reqs[i] = connector.UpdateRequest[L]{ID: uint32(id), NewLabel: newLabels[i]}
	}
	return idx.conn.Update(reqs, idx.nextToken, idx.params.Parallelism)
}

// Knn returns the k nearest labels to query at layer, honoring filter
// (nil admits everything). Returns an empty slice when the graph is
// empty or k<1, per spec.md §4.8 — never an error for those cases.
func (idx *Index[L]) Knn(query L, k int, filter func(id int64) bool, layer int) ([]Result[L], error) {
	if k < 1 {
		return nil, nil
	}
	ep := idx.arena.EntryPoint()
	if ep < 0 {
		return nil, nil
	}

	ef := idx.params.EfSearch
	if k > ef {
		ef = k
	}

	delta := idx.deltaFor(query)
	navFilter := wrapFilter(filter)

	peer := navigator.FindEntryPoint(idx.arena, uint32(ep), layer, delta, navFilter)

	vs := idx.vpool.Checkout(idx.arena.Capacity())
	items := navigator.SearchLayer(idx.arena, peer, layer, ef, delta, navFilter, vs)
	idx.vpool.Return(vs)

	if len(items) > k {
		items = items[:k]
	}
	return idx.toResults(items), nil
}

// Range returns every label within radius of query at layer, honoring
// filter.
func (idx *Index[L]) Range(query L, radius float32, filter func(id int64) bool, layer int) ([]Result[L], error) {
	ep := idx.arena.EntryPoint()
	if ep < 0 {
		return nil, nil
	}

	delta := idx.deltaFor(query)
	navFilter := wrapFilter(filter)

	peer := navigator.FindEntryPoint(idx.arena, uint32(ep), layer, delta, navFilter)

	vs := idx.vpool.Checkout(idx.arena.Capacity())
	items := navigator.RangeSearch(idx.arena, peer, layer, radius, delta, navFilter, vs)
	idx.vpool.Return(vs)

	return idx.toResults(items), nil
}

// MultiLayerKnn runs Knn independently at every layer in
// [minLayer, maxLayer], returning a map keyed by layer.
func (idx *Index[L]) MultiLayerKnn(query L, k int, minLayer, maxLayer int) (map[int][]Result[L], error) {
	if minLayer > maxLayer {
		return nil, invalidArgument("minLayer must be <= maxLayer")
	}
	out := make(map[int][]Result[L], maxLayer-minLayer+1)
	for l := minLayer; l <= maxLayer; l++ {
		res, err := idx.Knn(query, k, nil, l)
		if err != nil {
			return nil, err
		}
		out[l] = res
	}
	return out, nil
}

func (idx *Index[L]) deltaFor(query L) navigator.DistanceTo {
	return func(id uint32) float32 {
		label, _ := idx.arena.Label(id)
		return idx.params.Distance(query, label)
	}
}

func wrapFilter(filter func(id int64) bool) navigator.Filter {
	if filter == nil {
		return nil
	}
	return func(id uint32) bool { return filter(int64(id)) }
}

func (idx *Index[L]) toResults(items []pqueue.Item) []Result[L] {
	out := make([]Result[L], len(items))
	for i, it := range items {
		label, _ := idx.arena.Label(it.ID)
		out[i] = Result[L]{ID: int64(it.ID), Label: label, Dist: it.Dist}
	}
	return out
}

// Info reports per-layer node counts and in/out-degree statistics,
// per spec.md §4.8.
func (idx *Index[L]) Info() (Info, error) {
	byLayer := make(map[int][]uint32)
	for _, id := range idx.arena.Snapshot() {
		node := idx.arena.Node(id)
		if node == nil {
			continue
		}
		for l := 0; l <= node.MaxLayer; l++ {
			byLayer[l] = append(byLayer[l], id)
		}
	}

	out := Info{Layers: make(map[int]LayerStats, len(byLayer))}
	for l, ids := range byLayer {
		out.Layers[l] = idx.layerStats(ids, l)
	}
	return out, nil
}

func (idx *Index[L]) layerStats(ids []uint32, layer int) LayerStats {
	outDeg := make([]int, 0, len(ids))
	inDeg := make([]int, 0, len(ids))
	for _, id := range ids {
		node := idx.arena.Node(id)
		if node == nil || layer >= len(node.OutEdges) {
			continue
		}
		outDeg = append(outDeg, node.OutEdges[layer].Len())
		if idx.arena.TracksInEdges() && layer < len(node.InEdges) {
			inDeg = append(inDeg, node.InEdges[layer].Len())
		}
	}

	stats := LayerStats{NodeCount: len(ids)}
	stats.MinOutDegree, stats.MaxOutDegree, stats.AvgOutDegree, stats.MedianOutDegree = degreeStats(outDeg)
	stats.MinInDegree, stats.MaxInDegree, stats.AvgInDegree, stats.MedianInDegree = degreeStats(inDeg)
	return stats
}

func degreeStats(degrees []int) (min, max int, avg, median float64) {
	if len(degrees) == 0 {
		return 0, 0, 0, 0
	}
	sorted := append([]int{}, degrees...)
	sort.Ints(sorted)

	min, max = sorted[0], sorted[len(sorted)-1]
	var sum int
	for _, d := range sorted {
		sum += d
	}
	avg = float64(sum) / float64(len(sorted))

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = float64(sorted[mid-1]+sorted[mid]) / 2
	} else {
		median = float64(sorted[mid])
	}
	return min, max, avg, median
}

// Serialize writes the graph to w in the length-prefixed msgpack format
// of spec.md §6.
func (idx *Index[L]) Serialize(w io.Writer) error {
	doc := &snapshot.Document[L]{
		Params: snapshot.Params{
			MaxEdges:            idx.params.MaxEdges,
			DistributionRate:    idx.params.DistributionRate,
			EfConstruction:      idx.params.EfConstruction,
			EfSearch:            idx.params.EfSearch,
			CollectionSize:      idx.params.CollectionSize,
			RandomSeed:          idx.params.RandomSeed,
			AllowRemovals:       idx.params.AllowRemovals,
			ZeroLayerGuaranteed: idx.params.ZeroLayerGuaranteed,
			HeuristicName:       idx.heuristicName(),
		},
		Meta: snapshot.Meta{
			Capacity:     idx.arena.Capacity(),
			Length:       idx.arena.Length(),
			Count:        idx.arena.Count(),
			EntryPointID: idx.arena.EntryPoint(),
			FreeIDs:      idx.arena.FreeIDs(),
		},
	}

	for _, id := range idx.arena.Snapshot() {
		label, ok := idx.arena.Label(id)
		if !ok {
			continue
		}
		doc.Labels = append(doc.Labels, snapshot.LabelEntry[L]{ID: id, Label: label})

		node := idx.arena.Node(id)
		entry := snapshot.NodeEntry{ID: id, MaxLayer: node.MaxLayer}
		entry.OutEdges = make([][]uint32, len(node.OutEdges))
		for l := range node.OutEdges {
			entry.OutEdges[l] = node.OutEdges[l].Clone()
		}
		if idx.arena.TracksInEdges() {
			entry.InEdges = make([][]uint32, len(node.InEdges))
			for l := range node.InEdges {
				entry.InEdges[l] = node.InEdges[l].Clone()
			}
		}
		doc.Nodes = append(doc.Nodes, entry)
	}

	if err := snapshot.Write(w, doc); err != nil {
		return corrupt("serialize failed", err)
	}
	return nil
}

// Deserialize reads a snapshot written by Serialize and rebuilds an
// Index from it. distance is supplied by the caller since it isn't
// serializable; the heuristic is recovered from the snapshot's
// HeuristicName via HeuristicByName.
func Deserialize[L any](r io.Reader, distance func(a, b L) float32) (*Index[L], error) {
	doc, err := snapshot.Read[L](r)
	if err != nil {
		return nil, corrupt("deserialize failed", err)
	}

	h, ok := HeuristicByName(doc.Params.HeuristicName)
	if !ok {
		return nil, corrupt("unknown heuristic name in snapshot", nil)
	}

	params := Params[L]{
		MaxEdges:            doc.Params.MaxEdges,
		DistributionRate:    doc.Params.DistributionRate,
		EfConstruction:      doc.Params.EfConstruction,
		EfSearch:            doc.Params.EfSearch,
		CollectionSize:      doc.Params.CollectionSize,
		RandomSeed:          doc.Params.RandomSeed,
		AllowRemovals:       doc.Params.AllowRemovals,
		ZeroLayerGuaranteed: doc.Params.ZeroLayerGuaranteed,
		Heuristic:           h,
		Distance:            distance,
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	cfg := arena.Config{
		InitialCapacity:     doc.Meta.Capacity,
		TrackInEdges:        params.AllowRemovals,
		DistributionRate:    params.DistributionRate,
		ZeroLayerGuaranteed: params.ZeroLayerGuaranteed,
		RandomSeed:          params.RandomSeed,
	}
	a := arena.Restore[L](cfg, doc.Meta.Capacity, doc.Meta.Length, doc.Meta.EntryPointID, doc.Meta.FreeIDs)

	labelByID := make(map[uint32]L, len(doc.Labels))
	for _, le := range doc.Labels {
		labelByID[le.ID] = le.Label
	}
	for _, ne := range doc.Nodes {
		a.RestoreNode(ne.ID, labelByID[ne.ID], ne.MaxLayer, ne.OutEdges, ne.InEdges)
	}

	locker := regionlock.New()
	vpool := visited.NewPool(doc.Meta.Capacity)
	a.OnResize(vpool.Resize)
	a.OnResize(locker.Resize)

	cparams := connector.Params{
		MaxEdges:       params.MaxEdges,
		EfConstruction: params.EfConstruction,
		Heuristic:      params.Heuristic,
	}
	conn := connector.New[L](a, locker, connector.DistanceFunc[L](params.Distance), cparams, vpool)

	if params.Parallelism <= 0 {
		params.Parallelism = runtime.GOMAXPROCS(0)
	}
	return &Index[L]{arena: a, locker: locker, vpool: vpool, conn: conn, params: params, cparams: cparams}, nil
}

func (idx *Index[L]) heuristicName() string {
	// Only the two built-in heuristics round-trip through a snapshot by
	// name; a custom Heuristic func falls back to the default on
	// Deserialize, same limitation Distance has (it isn't serializable
	// at all and must be re-supplied by the caller).
	if reflect.ValueOf(idx.params.Heuristic).Pointer() == reflect.ValueOf(heuristic.NaiveNearest).Pointer() {
		return "naive_nearest"
	}
	return "relative_neighborhood"
}
