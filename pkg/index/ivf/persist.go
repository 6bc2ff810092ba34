package ivf

import (
	"encoding/json"
	"os"

	"github.com/piramid-db/piramid/pkg/piramid"
)

type wireIndex struct {
	NumClusters   int            `json:"num_clusters"`
	NumProbes     int            `json:"num_probes"`
	MaxIterations int            `json:"max_iterations"`
	Centroids     [][]float32    `json:"centroids"`
	Lists         [][]piramid.Id `json:"lists"`
	Untrained     []piramid.Id   `json:"untrained"`
}

// Save atomically persists idx to path.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	w := wireIndex{
		NumClusters:   idx.numClusters,
		NumProbes:     idx.numProbes,
		MaxIterations: idx.maxIterations,
		Centroids:     idx.centroids,
		Lists:         idx.lists,
	}
	for id := range idx.untrained {
		w.Untrained = append(w.Untrained, id)
	}
	idx.mu.RUnlock()

	data, err := json.Marshal(w)
	if err != nil {
		return piramid.NewSerializationError("ivf index", err)
	}
	return piramid.AtomicWriteFile(path, data)
}

// Load reconstructs an Index from a sidecar written by Save. A missing
// file yields an untrained empty index, the same "needs Train" state a
// brand new collection starts in.
func Load(path string, opts piramid.IVFOptions, metric piramid.Metric, mode piramid.ExecutionMode) (*Index, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(opts, metric, mode), false, nil
		}
		return nil, false, piramid.NewIOError("read", path, err)
	}

	var w wireIndex
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, false, piramid.NewCorruptedDataError("ivf index unparseable", err)
	}

	idx := New(opts, metric, mode)
	idx.centroids = w.Centroids
	idx.lists = w.Lists
	idx.assigned = make(map[piramid.Id]int)
	for c, list := range w.Lists {
		for _, id := range list {
			idx.assigned[id] = c
		}
	}
	idx.untrained = make(map[piramid.Id]struct{}, len(w.Untrained))
	for _, id := range w.Untrained {
		idx.untrained[id] = struct{}{}
	}
	return idx, true, nil
}
