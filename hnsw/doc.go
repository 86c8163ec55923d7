// Package hnsw is a concurrent, generic implementation of a
// Hierarchical Navigable Small World approximate-nearest-neighbor
// graph index.
//
// Build an Index with New, using DefaultParams for the common
// []float32-labeled case or a Params[L] with a custom Distance (and
// MaxEdges, EfConstruction and EfSearch set to at least 1) for
// anything else. Add/AddBatch insert labels, Knn/Range/MultiLayerKnn
// query, Update rewires moved labels in place, and Remove/RemoveBatch
// delete (when the index was built with AllowRemovals). Serialize and
// Deserialize round-trip the graph through a length-prefixed msgpack
// stream.
//
// Every exported method is safe for concurrent use from multiple
// goroutines: readers (Knn, Range, MultiLayerKnn, Info) never block
// writers, and writers (Add, Remove, Update) serialize only against
// the specific graph regions they touch.
package hnsw
