package search

import (
	"testing"

	"github.com/piramid-db/piramid/pkg/index/flat"
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/piramid"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	vecs map[piramid.Id][]float32
	docs map[piramid.Id]piramid.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{vecs: map[piramid.Id][]float32{}, docs: map[piramid.Id]piramid.Document{}}
}

func (s *fakeStore) put(doc piramid.Document) {
	s.vecs[doc.Id] = doc.Vector
	s.docs[doc.Id] = doc
}

func (s *fakeStore) vectorsView(id piramid.Id) ([]float32, bool) { v, ok := s.vecs[id]; return v, ok }
func (s *fakeStore) metadataView(id piramid.Id) (piramid.Metadata, bool) {
	d, ok := s.docs[id]
	return d.Metadata, ok
}
func (s *fakeStore) hydrate(id piramid.Id) (piramid.Document, bool) { d, ok := s.docs[id]; return d, ok }

func TestExecuteReturnsBestFirst(t *testing.T) {
	store := newFakeStore()
	idx := flat.New(piramid.MetricDot, piramid.ExecutionScalar)

	for i, v := range [][]float32{{1, 0}, {2, 0}, {3, 0}} {
		id := piramid.NewId()
		doc := piramid.Document{Id: id, Vector: v, Text: []byte("doc")}
		store.put(doc)
		require.NoError(t, idx.Insert(id, v, store.vectorsView))
		_ = i
	}

	hits, err := Execute(idx, []float32{1, 0}, 2, Params{Metric: piramid.MetricDot, Mode: piramid.ExecutionScalar}, store.vectorsView, store.metadataView, store.hydrate)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestExecuteAppliesAuthoritativeFilter(t *testing.T) {
	store := newFakeStore()
	idx := flat.New(piramid.MetricDot, piramid.ExecutionScalar)

	keep := piramid.NewId()
	store.put(piramid.Document{Id: keep, Vector: []float32{1, 0}, Metadata: piramid.Metadata{"kind": metadata.String("keep")}})
	require.NoError(t, idx.Insert(keep, []float32{1, 0}, store.vectorsView))

	drop := piramid.NewId()
	store.put(piramid.Document{Id: drop, Vector: []float32{1, 0}, Metadata: piramid.Metadata{"kind": metadata.String("drop")}})
	require.NoError(t, idx.Insert(drop, []float32{1, 0}, store.vectorsView))

	f := metadata.Eq("kind", metadata.String("keep"))
	hits, err := Execute(idx, []float32{1, 0}, 5, Params{Metric: piramid.MetricDot, Mode: piramid.ExecutionScalar, Filter: f, FilterOverfetch: 4}, store.vectorsView, store.metadataView, store.hydrate)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, keep, hits[0].Id)
}

func TestExecuteBatchParallelMatchesSequential(t *testing.T) {
	store := newFakeStore()
	idx := flat.New(piramid.MetricDot, piramid.ExecutionScalar)
	for _, v := range [][]float32{{1, 0}, {0, 1}, {1, 1}} {
		id := piramid.NewId()
		store.put(piramid.Document{Id: id, Vector: v})
		require.NoError(t, idx.Insert(id, v, store.vectorsView))
	}

	queries := [][]float32{{1, 0}, {0, 1}}
	seq, err := ExecuteBatch(idx, queries, 1, Params{Metric: piramid.MetricDot, Mode: piramid.ExecutionScalar}, store.vectorsView, store.metadataView, store.hydrate)
	require.NoError(t, err)

	par, err := ExecuteBatch(idx, queries, 1, Params{Metric: piramid.MetricDot, Mode: piramid.ExecutionParallel}, store.vectorsView, store.metadataView, store.hydrate)
	require.NoError(t, err)

	require.Len(t, seq, 2)
	require.Len(t, par, 2)
	for i := range seq {
		require.Equal(t, seq[i][0].Id, par[i][0].Id)
	}
}
