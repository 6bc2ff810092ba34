// Package flat implements the brute-force linear-scan ANN index (spec
// §4.6.1): no structure beyond the live id set, exact results, and a
// deterministic ascending-id tie-break.
package flat

import (
	"sync"

	"github.com/piramid-db/piramid/pkg/distance"
	"github.com/piramid-db/piramid/pkg/index"
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/piramid"
)

// Index stores no structure: it just remembers which ids are live and
// scores every one of them at search time.
type Index struct {
	mu     sync.RWMutex
	metric piramid.Metric
	mode   piramid.ExecutionMode
	ids    map[piramid.Id]struct{}
}

// New returns an empty Flat index scoring with metric under mode.
func New(metric piramid.Metric, mode piramid.ExecutionMode) *Index {
	return &Index{metric: metric, mode: mode, ids: make(map[piramid.Id]struct{})}
}

func (idx *Index) Insert(id piramid.Id, vector []float32, vectors index.VectorsView) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ids[id] = struct{}{}
	return nil
}

func (idx *Index) Remove(id piramid.Id) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.ids, id)
	return nil
}

func (idx *Index) Search(query []float32, k int, vectors index.VectorsView, params index.SearchParams, filter metadata.Filter, mdView index.MetadataView) ([]piramid.Id, error) {
	idx.mu.RLock()
	metric, mode := idx.metric, idx.mode
	live := make([]piramid.Id, 0, len(idx.ids))
	for id := range idx.ids {
		live = append(live, id)
	}
	idx.mu.RUnlock()

	best := index.NewBestK(k)
	for _, id := range live {
		if filter != nil {
			md, ok := mdView(id)
			if !ok || !filter.Eval(md) {
				continue
			}
		}
		v, ok := vectors(id)
		if !ok {
			continue
		}
		score := distance.Score(metric, mode, query, v)
		best.Add(index.Candidate{Id: id, Score: score})
	}
	return best.Ids(), nil
}

func (idx *Index) Stats() index.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return index.IndexStats{Kind: piramid.IndexFlat, TotalVectors: len(idx.ids)}
}
