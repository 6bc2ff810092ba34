// Package piramid exposes the embedded vector-collection library: core
// document/result types, configuration, and the error kinds every other
// package reports through.
package piramid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/piramid-db/piramid/pkg/metadata"
)

// Id is a document's 128-bit unique identifier, assigned at creation.
type Id uuid.UUID

// NewId allocates a fresh random Id.
func NewId() Id { return Id(uuid.New()) }

// ParseId parses the canonical string form of an Id.
func ParseId(s string) (Id, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Id{}, fmt.Errorf("piramid: invalid id %q: %w", s, err)
	}
	return Id(u), nil
}

func (id Id) String() string { return uuid.UUID(id).String() }

// MarshalText and UnmarshalText let Id round-trip through JSON (and any
// other encoding.TextMarshaler-aware format) as its canonical UUID
// string, rather than as a JSON array of 16 bytes.
func (id Id) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *Id) UnmarshalText(text []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(text); err != nil {
		return err
	}
	*id = Id(u)
	return nil
}

// Bytes returns the raw 16-byte form of id, for binary encodings that
// don't want the canonical string representation.
func (id Id) Bytes() []byte {
	u := uuid.UUID(id)
	return u[:]
}

// IdFromBytes parses the raw 16-byte form produced by Bytes.
func IdFromBytes(b []byte) (Id, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return Id{}, fmt.Errorf("piramid: invalid id bytes: %w", err)
	}
	return Id(u), nil
}

// Value re-exports the tagged metadata value union so callers only need
// to import pkg/piramid for the common path.
type Value = metadata.Value

// Metadata is the string-keyed bag of typed values attached to a document.
type Metadata = metadata.Map

// Document is the unit of storage: a vector plus its associated text and
// metadata, addressed by Id.
type Document struct {
	Id       Id
	Vector   []float32
	Text     []byte
	Metadata Metadata
}

// Hit is one scored result from a search: the matched document's id and
// score, together with its hydrated text and metadata.
type Hit struct {
	Id       Id
	Score    float32
	Text     []byte
	Metadata Metadata
}

// Metric selects the distance function used to score candidates.
type Metric int

const (
	MetricCosine Metric = iota
	MetricEuclidean
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	case MetricDot:
		return "dot"
	default:
		return "unknown"
	}
}

// IndexKind selects the ANN structure backing a collection.
type IndexKind int

const (
	IndexAuto IndexKind = iota
	IndexFlat
	IndexHNSW
	IndexIVF
)

func (k IndexKind) String() string {
	switch k {
	case IndexAuto:
		return "auto"
	case IndexFlat:
		return "flat"
	case IndexHNSW:
		return "hnsw"
	case IndexIVF:
		return "ivf"
	default:
		return "unknown"
	}
}

// ExecutionMode selects the distance-kernel implementation.
type ExecutionMode int

const (
	ExecutionAuto ExecutionMode = iota
	ExecutionSIMD
	ExecutionScalar
	ExecutionParallel
)

func (m ExecutionMode) String() string {
	switch m {
	case ExecutionAuto:
		return "auto"
	case ExecutionSIMD:
		return "simd"
	case ExecutionScalar:
		return "scalar"
	case ExecutionParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// QuantizationLevel selects the on-disk vector encoding.
type QuantizationLevel int

const (
	QuantizationNone QuantizationLevel = iota
	QuantizationInt8
)

// Pair is an unordered (id_a, id_b) near-duplicate match with its score.
type Pair struct {
	A, B  Id
	Score float32
}

// CompactStats summarizes a compact() run.
type CompactStats struct {
	DocumentsBefore int
	DocumentsAfter  int
	BytesReclaimed  int64
}

// CollectionStats is the result of Collection.Stats().
type CollectionStats struct {
	Name                   string
	VectorCount            int
	Dimensions             int
	IndexKind              IndexKind
	WALSizeBytes           int64
	SecondsSinceCheckpoint float64
}
