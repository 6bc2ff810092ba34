// Package search implements the filter-aware search pipeline (spec
// §4.7): overfetch from the ANN index when a filter is present, hydrate
// each candidate from the document store, authoritatively re-evaluate
// the filter against hydrated metadata, truncate to k, rescore with the
// requested metric, and sort best-first.
package search

import (
	"sort"
	"sync"

	"github.com/piramid-db/piramid/pkg/distance"
	"github.com/piramid-db/piramid/pkg/index"
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/piramid"
)

// Hydrate looks up the full document for id, used to rebuild text and
// metadata (and rescore against the stored vector, which is the
// dequantized copy when quantization is on) once the ANN pass has
// narrowed the candidate set.
type Hydrate func(id piramid.Id) (piramid.Document, bool)

// Params configures one Execute call.
type Params struct {
	Metric          piramid.Metric
	Mode            piramid.ExecutionMode
	Filter          metadata.Filter
	FilterOverfetch int
	IndexParams     index.SearchParams
}

// Execute runs the search pipeline against idx for a single query.
func Execute(idx index.Index, query []float32, k int, params Params, vectors index.VectorsView, mdView index.MetadataView, hydrate Hydrate) ([]piramid.Hit, error) {
	fetchK := k
	if params.Filter != nil {
		overfetch := params.FilterOverfetch
		if overfetch < 1 {
			overfetch = 1
		}
		fetchK = k * overfetch
	}

	ids, err := idx.Search(query, fetchK, vectors, params.IndexParams, params.Filter, mdView)
	if err != nil {
		return nil, err
	}

	hits := make([]piramid.Hit, 0, len(ids))
	for _, id := range ids {
		if len(hits) == k {
			break
		}
		doc, ok := hydrate(id)
		if !ok {
			continue
		}
		// The index may have already applied the filter during traversal
		// against a cached metadata view; re-evaluate against the
		// authoritative hydrated document so a stale view never leaks a
		// false positive into the result set.
		if params.Filter != nil && !params.Filter.Eval(doc.Metadata) {
			continue
		}
		score := distance.Score(params.Metric, params.Mode, query, doc.Vector)
		hits = append(hits, piramid.Hit{Id: id, Score: score, Text: doc.Text, Metadata: doc.Metadata})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// ExecuteBatch runs Execute once per query. Under ExecutionParallel it
// fans the queries out across goroutines; pkg/distance scores each pair
// on one goroutine and leaves parallelism across queries to this
// function.
func ExecuteBatch(idx index.Index, queries [][]float32, k int, params Params, vectors index.VectorsView, mdView index.MetadataView, hydrate Hydrate) ([][]piramid.Hit, error) {
	results := make([][]piramid.Hit, len(queries))

	if params.Mode != piramid.ExecutionParallel {
		for i, q := range queries {
			hits, err := Execute(idx, q, k, params, vectors, mdView, hydrate)
			if err != nil {
				return nil, err
			}
			results[i] = hits
		}
		return results, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(queries))
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q []float32) {
			defer wg.Done()
			hits, err := Execute(idx, q, k, params, vectors, mdView, hydrate)
			results[i] = hits
			errs[i] = err
		}(i, q)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
