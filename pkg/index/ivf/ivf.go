// Package ivf implements the Inverted File ANN index (spec §4.6.3):
// k-means centroids plus per-centroid posting lists, searched by
// probing the nearest few centroids and merging their lists.
package ivf

import (
	"math"
	"sync"

	"github.com/piramid-db/piramid/pkg/distance"
	"github.com/piramid-db/piramid/pkg/index"
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/piramid"
)

// Index is a trained (or untrained) IVF structure. Inserts before
// training fall back to a single implicit "untrained" bucket scanned
// exactly like Flat, so the index is always correct even if not yet
// clustered; after training every insert joins its nearest centroid.
type Index struct {
	mu sync.RWMutex

	metric piramid.Metric
	mode   piramid.ExecutionMode

	numClusters   int
	numProbes     int
	maxIterations int

	centroids [][]float32
	lists     [][]piramid.Id // lists[c] = ids assigned to centroid c
	assigned  map[piramid.Id]int
	untrained map[piramid.Id]struct{} // ids inserted before (re)training
}

// New returns an untrained IVF index configured by opts.
func New(opts piramid.IVFOptions, metric piramid.Metric, mode piramid.ExecutionMode) *Index {
	return &Index{
		metric:        metric,
		mode:          mode,
		numClusters:   opts.NumClusters,
		numProbes:     opts.NumProbes,
		maxIterations: opts.MaxIterations,
		assigned:      make(map[piramid.Id]int),
		untrained:     make(map[piramid.Id]struct{}),
	}
}

// AutoNumClusters implements original_source's auto-configuration rule:
// num_clusters ≈ √N (minimum 10).
func AutoNumClusters(numVectors int) int {
	c := int(math.Sqrt(float64(numVectors)))
	if c < 10 {
		c = 10
	}
	return c
}

// AutoNumProbes derives num_probes from num_clusters the same way
// original_source's IvfConfig::auto does: 10% of the clusters, clamped
// to [1, 10].
func AutoNumProbes(numClusters int) int {
	p := int(float64(numClusters) * 0.1)
	if p < 1 {
		p = 1
	}
	if p > 10 {
		p = 10
	}
	return p
}

// Insert adds id to the untrained set if the index hasn't been trained
// yet, otherwise assigns it to its nearest existing centroid without
// retraining (spec §4.6.3 doesn't require re-clustering on every
// insert; Train is a separate, explicit step).
func (idx *Index) Insert(id piramid.Id, vector []float32, vectors index.VectorsView) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.centroids) == 0 {
		idx.untrained[id] = struct{}{}
		return nil
	}
	c := idx.nearestCentroid(vector)
	idx.lists[c] = append(idx.lists[c], id)
	idx.assigned[id] = c
	return nil
}

// Remove logically deletes id from its posting list (or the untrained
// set). O(list length) since lists aren't indexed by id; acceptable
// since deletes are rare relative to search per spec §8.
func (idx *Index) Remove(id piramid.Id) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.untrained[id]; ok {
		delete(idx.untrained, id)
		return nil
	}
	c, ok := idx.assigned[id]
	if !ok {
		return nil
	}
	list := idx.lists[c]
	for i, lid := range list {
		if lid == id {
			idx.lists[c] = append(list[:i], list[i+1:]...)
			break
		}
	}
	delete(idx.assigned, id)
	return nil
}

// Train (re)runs k-means over the given ids/vectors and rebuilds the
// posting lists from scratch, folding in any ids inserted since the
// last training (spec §4.6.3).
func (idx *Index) Train(ids []piramid.Id, vectors index.VectorsView) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	k := idx.numClusters
	if k <= 0 {
		k = AutoNumClusters(len(ids))
	}
	if k > len(ids) {
		k = len(ids)
	}
	if k == 0 {
		idx.centroids = nil
		idx.lists = nil
		idx.assigned = make(map[piramid.Id]int)
		return nil
	}

	points := make([][]float32, 0, len(ids))
	pointIds := make([]piramid.Id, 0, len(ids))
	for _, id := range ids {
		v, ok := vectors(id)
		if !ok {
			continue
		}
		points = append(points, v)
		pointIds = append(pointIds, id)
	}

	centroids := initCentroids(points, k)
	iterations := idx.maxIterations
	if iterations <= 0 {
		iterations = 10
	}

	assignment := make([]int, len(points))
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, p := range points {
			c := nearestCentroidAmong(p, centroids, idx.metric, idx.mode)
			if assignment[i] != c {
				assignment[i] = c
				changed = true
			}
		}
		centroids = recomputeCentroids(points, assignment, k, len(points[0]))
		if !changed && iter > 0 {
			break
		}
	}

	lists := make([][]piramid.Id, k)
	assigned := make(map[piramid.Id]int, len(pointIds))
	for i, id := range pointIds {
		c := assignment[i]
		lists[c] = append(lists[c], id)
		assigned[id] = c
	}

	idx.centroids = centroids
	idx.lists = lists
	idx.assigned = assigned
	idx.untrained = make(map[piramid.Id]struct{})
	return nil
}

func (idx *Index) nearestCentroid(v []float32) int {
	return nearestCentroidAmong(v, idx.centroids, idx.metric, idx.mode)
}

func nearestCentroidAmong(v []float32, centroids [][]float32, metric piramid.Metric, mode piramid.ExecutionMode) int {
	best := 0
	bestScore := float32(math.Inf(-1))
	for i, c := range centroids {
		s := distance.Score(metric, mode, v, c)
		if s > bestScore {
			bestScore, best = s, i
		}
	}
	return best
}

// Search probes the num_probes nearest centroids to query and merges
// their posting lists into a bounded best-k heap (spec §4.6.3). ids
// inserted since the last Train are always scanned, since they have no
// centroid assignment to probe by.
func (idx *Index) Search(query []float32, k int, vectors index.VectorsView, params index.SearchParams, filter metadata.Filter, mdView index.MetadataView) ([]piramid.Id, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best := index.NewBestK(k)

	consider := func(id piramid.Id) {
		if filter != nil {
			if mdView == nil {
				return
			}
			md, ok := mdView(id)
			if !ok || !filter.Eval(md) {
				return
			}
		}
		v, ok := vectors(id)
		if !ok {
			return
		}
		best.Add(index.Candidate{Id: id, Score: distance.Score(idx.metric, idx.mode, query, v)})
	}

	for id := range idx.untrained {
		consider(id)
	}

	if len(idx.centroids) > 0 {
		probes := params.NumProbes
		if probes <= 0 {
			probes = idx.numProbes
		}
		if probes <= 0 {
			probes = 1
		}
		for _, c := range idx.nearestCentroids(query, probes) {
			for _, id := range idx.lists[c] {
				consider(id)
			}
		}
	}

	return best.Ids(), nil
}

// nearestCentroids returns the n centroid indices closest to query,
// best-first.
func (idx *Index) nearestCentroids(query []float32, n int) []int {
	type scored struct {
		idx   int
		score float32
	}
	scores := make([]scored, len(idx.centroids))
	for i, c := range idx.centroids {
		scores[i] = scored{i, distance.Score(idx.metric, idx.mode, query, c)}
	}
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].score > scores[j-1].score; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	if n > len(scores) {
		n = len(scores)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = scores[i].idx
	}
	return out
}

func (idx *Index) Stats() index.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	total := len(idx.untrained)
	for _, l := range idx.lists {
		total += len(l)
	}
	return index.IndexStats{
		Kind:         piramid.IndexIVF,
		TotalVectors: total,
	}
}

// initCentroids seeds k centroids by taking an evenly-spaced sample of
// points, a simple deterministic alternative to random restarts that's
// good enough given Train always runs to convergence or the iteration
// cap.
func initCentroids(points [][]float32, k int) [][]float32 {
	centroids := make([][]float32, k)
	n := len(points)
	for i := 0; i < k; i++ {
		src := points[(i*n)/k]
		c := make([]float32, len(src))
		copy(c, src)
		centroids[i] = c
	}
	return centroids
}

func recomputeCentroids(points [][]float32, assignment []int, k, dim int) [][]float32 {
	sums := make([][]float32, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float32, dim)
	}
	for i, p := range points {
		c := assignment[i]
		counts[c]++
		for d, v := range p {
			sums[c][d] += v
		}
	}
	centroids := make([][]float32, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			// Empty cluster: use training point c (mod n) as a
			// placeholder centroid rather than leaving a zero vector
			// that would attract nothing.
			centroids[c] = points[c%len(points)]
			continue
		}
		avg := make([]float32, dim)
		for d := 0; d < dim; d++ {
			avg[d] = sums[c][d] / float32(counts[c])
		}
		centroids[c] = avg
	}
	return centroids
}
