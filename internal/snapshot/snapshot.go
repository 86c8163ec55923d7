// Package snapshot implements the on-disk format of spec.md §6: a
// length-prefixed stream of msgpack records carrying the arena's
// parameters, capacity/length/count, entry point, the dense label
// array, the dense node array (out/in edges per layer), and the
// free-id queue. Each record is framed with a big-endian uint32 byte
// count, the same shape giztoy's hnsw_io.go uses for its vector store
// snapshots.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ann-go/hnswgraph/internal/logger"
)

// ErrCorrupt is returned when a stream fails a framing or schema check
// during Read. The façade maps this into its own Corrupt error kind.
var ErrCorrupt = errors.New("snapshot: corrupt stream")

// Params mirrors the runtime-mutable parameters of spec.md §6. Kept
// independent of the root hnsw.Params type so this package has no
// import-cycle back to the façade; hnsw.Params converts to and from
// this type at the serialize/deserialize boundary.
type Params struct {
	MaxEdges            int     `msgpack:"max_edges"`
	DistributionRate    float64 `msgpack:"distribution_rate"`
	EfConstruction      int     `msgpack:"ef_construction"`
	EfSearch            int     `msgpack:"ef_search"`
	CollectionSize      int     `msgpack:"collection_size"`
	RandomSeed          int64   `msgpack:"random_seed"`
	AllowRemovals       bool    `msgpack:"allow_removals"`
	ZeroLayerGuaranteed bool    `msgpack:"zero_layer_guaranteed"`
	HeuristicName       string  `msgpack:"heuristic_name"`
}

// Meta carries the arena bookkeeping fields that aren't per-node.
type Meta struct {
	Capacity     int     `msgpack:"capacity"`
	Length       int     `msgpack:"length"`
	Count        int     `msgpack:"count"`
	EntryPointID int64   `msgpack:"entry_point_id"`
	FreeIDs      []uint32 `msgpack:"free_ids"`
}

// LabelEntry is one live id's label.
type LabelEntry[L any] struct {
	ID    uint32 `msgpack:"id"`
	Label L      `msgpack:"label"`
}

// NodeEntry is one live id's adjacency. InEdges is nil when the source
// arena didn't track reverse edges (AllowRemovals=false).
type NodeEntry struct {
	ID       uint32     `msgpack:"id"`
	MaxLayer int        `msgpack:"max_layer"`
	OutEdges [][]uint32 `msgpack:"out_edges"`
	InEdges  [][]uint32 `msgpack:"in_edges,omitempty"`
}

// Document is the full snapshot payload for a label type L.
type Document[L any] struct {
	Params  Params
	Meta    Meta
	Labels  []LabelEntry[L]
	Nodes   []NodeEntry
}

// Write frames Document as four length-prefixed msgpack records, in a
// fixed order: params, meta, labels, nodes. Each record is independent
// so Read can validate one section without decoding the whole stream.
func Write[L any](w io.Writer, doc *Document[L]) error {
	sections := []any{doc.Params, doc.Meta, doc.Labels, doc.Nodes}
	for _, s := range sections {
		buf, err := msgpack.Marshal(s)
		if err != nil {
			return fmt.Errorf("snapshot: encode: %w", err)
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(buf))); err != nil {
			return fmt.Errorf("snapshot: write length: %w", err)
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("snapshot: write record: %w", err)
		}
	}
	return nil
}

// Read decodes a Document previously written by Write. Any framing or
// unmarshal failure is reported as ErrCorrupt (wrapped with detail);
// callers that care about invariant checks (P1-P5 of spec.md §3) run
// them separately once the Document is in hand.
func Read[L any](r io.Reader) (*Document[L], error) {
	doc := &Document[L]{}
	targets := []any{&doc.Params, &doc.Meta, &doc.Labels, &doc.Nodes}
	for _, t := range targets {
		buf, err := readRecord(r)
		if err != nil {
			return nil, err
		}
		if err := msgpack.Unmarshal(buf, t); err != nil {
			logger.Warn("snapshot rejected", "reason", "schema mismatch", "detail", err.Error())
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return doc, nil
}

func readRecord(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			logger.Warn("snapshot rejected", "reason", "truncated length prefix")
			return nil, fmt.Errorf("%w: truncated length prefix", ErrCorrupt)
		}
		return nil, fmt.Errorf("snapshot: read length: %w", err)
	}
	// Guard against a corrupt length prefix trying to allocate an
	// unreasonable buffer before we've read a single byte of payload.
	const maxRecordBytes = 1 << 32 / 4
	if n > maxRecordBytes {
		logger.Warn("snapshot rejected", "reason", "record length exceeds sanity bound", "length", n)
		return nil, fmt.Errorf("%w: record length %d exceeds sanity bound", ErrCorrupt, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		logger.Warn("snapshot rejected", "reason", "truncated record", "detail", err.Error())
		return nil, fmt.Errorf("%w: truncated record: %v", ErrCorrupt, err)
	}
	return buf, nil
}
