package hnsw

import (
	"github.com/ann-go/hnswgraph/internal/heuristic"
)

// Params is the realization of spec.md §6's runtime-mutable parameter
// set, generic over the label type L stored at each node (spec.md §9:
// "generic numeric distance type" generalizes to a generic label type
// here, since the graph core never inspects a label beyond handing it
// to Distance).
type Params[L any] struct {
	// MaxEdges is M (default 16): out-degree cap for layers >= 1; the
	// base layer allows 2M.
	MaxEdges int

	// DistributionRate is mL (default 1/ln(16)): layer-sampler scale.
	DistributionRate float64

	// EfConstruction (default 100): beam width during insert/update.
	EfConstruction int

	// EfSearch is the default query beam width / min_nn (default 5).
	EfSearch int

	// CollectionSize (default 65536): initial arena capacity hint.
	CollectionSize int

	// RandomSeed (default 31337; negative means OS entropy).
	RandomSeed int64

	// AllowRemovals (default true): when false, in-edges are never
	// tracked and Remove/RemoveBatch return ErrNotSupported.
	AllowRemovals bool

	// ZeroLayerGuaranteed (default true): when false, the layer sampler
	// may veto an insert (Add returns -1).
	ZeroLayerGuaranteed bool

	// Heuristic is the pluggable neighbor selector (spec.md §4.6). Nil
	// defaults to heuristic.RelativeNeighborhood.
	Heuristic heuristic.Func

	// Distance computes the distance between two labels. Required.
	Distance func(a, b L) float32

	// Parallelism bounds concurrent workers in AddBatch/RemoveBatch/Update.
	// Defaults to runtime.GOMAXPROCS(0) when <= 0.
	Parallelism int
}

// DefaultParams returns spec.md §6's documented defaults for a
// Vector-labeled index (Distance = CosineDistance, Heuristic =
// RelativeNeighborhood). Callers with a custom label type build a
// Params[L] themselves: Distance is required, and MaxEdges,
// EfConstruction and EfSearch must be at least 1 (copying this shape's
// non-label-typed fields satisfies that).
func DefaultParams() Params[Vector] {
	return Params[Vector]{
		MaxEdges:            16,
		DistributionRate:    1.0 / 2.772588722239781, // 1/ln(16)
		EfConstruction:      100,
		EfSearch:            5,
		CollectionSize:      65536,
		RandomSeed:          31337,
		AllowRemovals:       true,
		ZeroLayerGuaranteed: true,
		Heuristic:           heuristic.RelativeNeighborhood,
		Distance:            CosineDistance,
	}
}

// HeuristicByName resolves one of the config-file heuristic names
// ("relative_neighborhood", "naive_nearest") to a heuristic.Func.
func HeuristicByName(name string) (heuristic.Func, bool) {
	switch name {
	case "relative_neighborhood", "":
		return heuristic.RelativeNeighborhood, true
	case "naive_nearest":
		return heuristic.NaiveNearest, true
	default:
		return nil, false
	}
}

func (p Params[L]) validate() error {
	if p.MaxEdges < 1 {
		return invalidArgument("max_edges must be >= 1")
	}
	if p.EfConstruction < 1 {
		return invalidArgument("ef_construction must be >= 1")
	}
	if p.EfSearch < 1 {
		return invalidArgument("ef_search must be >= 1")
	}
	if p.Distance == nil {
		return invalidArgument("distance function is required")
	}
	if p.Heuristic == nil {
		return invalidArgument("heuristic is required")
	}
	return nil
}
