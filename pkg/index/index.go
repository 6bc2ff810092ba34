// Package index defines the ANN (approximate nearest neighbor) index
// capability (spec §4.6): insert/search/remove/stats, with three
// concrete variants (Flat, HNSW, IVF) living in the flat/hnsw/ivf
// subpackages. The capability is expressed as an interface rather than a
// class hierarchy — a tagged sum type plus dispatch by kind, per spec §9.
package index

import (
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/piramid"
)

// VectorsView looks up the live (dequantized) vector for id. Graph and
// cluster indices use it to compute distances against vectors they don't
// store inline.
type VectorsView func(id piramid.Id) ([]float32, bool)

// MetadataView looks up the metadata document for id, for indices that
// can skip non-matching candidates during traversal.
type MetadataView func(id piramid.Id) (piramid.Metadata, bool)

// SearchParams carries the per-call tuning knobs that only some index
// kinds understand; a kind ignores fields it doesn't need.
type SearchParams struct {
	Ef        int // HNSW dynamic candidate list size; 0 means "use the index default"
	NumProbes int // IVF clusters to scan; 0 means "use the index default"
}

// IndexStats reports an index's size and structural info.
type IndexStats struct {
	Kind              piramid.IndexKind
	TotalVectors      int
	Tombstones        int
	MaxLayer          int
	LayerSizes        []int
	AvgDegree         float32
	ApproxMemoryBytes int64
}

// Index is the capability set every ANN variant implements.
type Index interface {
	// Insert adds id/vector. vectors lets graph indices compute
	// distances against already-inserted neighbors.
	Insert(id piramid.Id, vector []float32, vectors VectorsView) error
	// Search returns up to k ids, best-first by the configured metric.
	// filter and mdView are optional (nil filter means unfiltered); an
	// index may use them to skip candidates during traversal, but the
	// caller is still responsible for authoritative post-filtering
	// (spec §4.7's search pipeline re-evaluates the filter after
	// hydrating each candidate's real metadata from the mmap).
	Search(query []float32, k int, vectors VectorsView, params SearchParams, filter metadata.Filter, mdView MetadataView) ([]piramid.Id, error)
	// Remove logically deletes id. Graph indices may retain it as a
	// tombstone until an explicit rebuild.
	Remove(id piramid.Id) error
	Stats() IndexStats
}

// Select resolves IndexAuto to a concrete kind given the current live
// document count (spec §4.6's size thresholds), evaluated once at
// collection-open time per the design note in DESIGN.md. An explicit
// (non-auto) kind always wins.
func Select(kind piramid.IndexKind, liveCount int) piramid.IndexKind {
	if kind != piramid.IndexAuto {
		return kind
	}
	switch {
	case liveCount < 10_000:
		return piramid.IndexFlat
	case liveCount < 100_000:
		return piramid.IndexIVF
	default:
		return piramid.IndexHNSW
	}
}
