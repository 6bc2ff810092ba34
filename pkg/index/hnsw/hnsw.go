// Package hnsw implements the Hierarchical Navigable Small World ANN
// index (spec §4.6.2): a layered proximity graph with greedy descent,
// beam search, neighbor-heuristic pruning, and deletion tombstones.
package hnsw

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/piramid-db/piramid/pkg/distance"
	"github.com/piramid-db/piramid/pkg/index"
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/piramid"
)

// Index is a layered graph keyed by id; nodes and neighbor lists never
// move, so concurrent readers (search) and the single writer (insert)
// only need to coordinate through mu.
type Index struct {
	mu sync.RWMutex

	metric piramid.Metric
	mode   piramid.ExecutionMode

	m              int
	mMax           int
	efConstruction int
	efSearch       int
	ml             float64

	reg        *registry
	layers     []*layerGraph
	nodeLayer  map[piramid.Id]int
	tombstones map[piramid.Id]struct{}

	entrySet   bool
	entry      piramid.Id
	entryLayer int
}

// New returns an empty HNSW index configured by opts.
func New(opts piramid.HNSWOptions, metric piramid.Metric, mode piramid.ExecutionMode) *Index {
	return &Index{
		metric:         metric,
		mode:           mode,
		m:              opts.M,
		mMax:           opts.MMax,
		efConstruction: opts.EfConstruction,
		efSearch:       opts.EfSearch,
		ml:             opts.Ml,
		reg:            newRegistry(),
		nodeLayer:      make(map[piramid.Id]int),
		tombstones:     make(map[piramid.Id]struct{}),
	}
}

func (idx *Index) ensureLayers(layer int) {
	for len(idx.layers) <= layer {
		idx.layers = append(idx.layers, newLayerGraph(idx.reg))
	}
}

func drawLayer(ml float64) int {
	u := rand.Float64()
	for u == 0 {
		u = rand.Float64()
	}
	return int(math.Floor(-math.Log(u) * ml))
}

// Insert implements spec §4.6.2's six-step insertion.
func (idx *Index) Insert(id piramid.Id, vector []float32, vectors index.VectorsView) error {
	layer := drawLayer(idx.ml)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.ensureLayers(layer)
	delete(idx.tombstones, id)

	if !idx.entrySet {
		idx.entrySet = true
		idx.entry = id
		idx.entryLayer = layer
		idx.nodeLayer[id] = layer
		for l := 0; l <= layer; l++ {
			idx.layers[l].addNode(id)
		}
		return nil
	}

	current := idx.entry
	if layer < idx.entryLayer {
		current = idx.greedyDescend(vector, vectors, idx.entryLayer, layer)
	}

	top := layer
	if idx.entryLayer < top {
		top = idx.entryLayer
	}
	for l := top; l >= 0; l-- {
		neighborCap := idx.m
		if l == 0 {
			neighborCap = idx.mMax
		}

		candidates := idx.searchLayer(vector, vectors, []piramid.Id{current}, idx.efConstruction, l, nil, nil)
		selected := selectNeighborsHeuristic(candidates, neighborCap, vectors, idx.metric, idx.mode)

		idx.layers[l].addNode(id)
		for _, s := range selected {
			idx.layers[l].link(id, s.Id, s.Score)
			if deg := idx.layers[l].degree(s.Id); deg > neighborCap {
				idx.repruneNode(s.Id, l, neighborCap, vectors)
			}
		}
		if len(candidates) > 0 {
			current = candidates[0].Id
		}
	}

	idx.nodeLayer[id] = layer
	if layer > idx.entryLayer {
		idx.entry = id
		idx.entryLayer = layer
	}
	return nil
}

// repruneNode re-runs the neighbor heuristic over id's current
// neighbors at layer and drops whichever ones it no longer selects,
// after a link pushed id's degree past its cap (spec §4.6.2 step 5).
func (idx *Index) repruneNode(id piramid.Id, layer, neighborCap int, vectors index.VectorsView) {
	v, ok := vectors(id)
	if !ok {
		return
	}
	lg := idx.layers[layer]
	neighbors := lg.neighbors(id)
	cands := make([]index.Candidate, 0, len(neighbors))
	for _, nb := range neighbors {
		nv, ok := vectors(nb)
		if !ok {
			continue
		}
		cands = append(cands, index.Candidate{Id: nb, Score: distance.Score(idx.metric, idx.mode, v, nv)})
	}
	selected := selectNeighborsHeuristic(cands, neighborCap, vectors, idx.metric, idx.mode)
	keep := make(map[piramid.Id]bool, len(selected))
	for _, s := range selected {
		keep[s.Id] = true
	}
	for _, nb := range neighbors {
		if !keep[nb] {
			lg.unlink(id, nb)
		}
	}
}

// greedyDescend hill-climbs from the entry point down through layers
// fromLayer..toLayer+1 (toLayer itself is not visited), keeping a single
// best candidate at each layer
// (spec §4.6.2 step 3 / search step 1).
func (idx *Index) greedyDescend(query []float32, vectors index.VectorsView, fromLayer, toLayer int) piramid.Id {
	current := idx.entry
	for l := fromLayer; l > toLayer; l-- {
		curVec, ok := vectors(current)
		if !ok {
			continue
		}
		curScore := distance.Score(idx.metric, idx.mode, query, curVec)
		improved := true
		for improved {
			improved = false
			for _, nb := range idx.layers[l].neighbors(current) {
				nbVec, ok := vectors(nb)
				if !ok {
					continue
				}
				nbScore := distance.Score(idx.metric, idx.mode, query, nbVec)
				if nbScore > curScore {
					current, curScore = nb, nbScore
					improved = true
				}
			}
		}
	}
	return current
}

// frontierHeap is a max-heap by score, used to expand the most
// promising candidates first during a layer's beam search.
type frontierHeap []index.Candidate

func (h frontierHeap) Len() int            { return len(h) }
func (h frontierHeap) Less(i, j int) bool  { return h[i].Score > h[j].Score }
func (h frontierHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x interface{}) { *h = append(*h, x.(index.Candidate)) }
func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// searchLayer runs beam search at layer from entryPoints, retaining up
// to ef candidates. Traversal passes through tombstoned/filtered nodes
// to preserve connectivity, but they're excluded from the retained
// result set (spec §4.6.2 search step 2).
func (idx *Index) searchLayer(query []float32, vectors index.VectorsView, entryPoints []piramid.Id, ef, layer int, filter metadata.Filter, mdView index.MetadataView) []index.Candidate {
	visited := make(map[piramid.Id]struct{})
	results := index.NewBestK(ef)
	var frontier frontierHeap

	push := func(id piramid.Id) {
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		v, ok := vectors(id)
		if !ok {
			return
		}
		c := index.Candidate{Id: id, Score: distance.Score(idx.metric, idx.mode, query, v)}
		heap.Push(&frontier, c)
		if !idx.skipFromResults(id, filter, mdView) {
			results.Add(c)
		}
	}

	lg := idx.layers[layer]
	for _, id := range entryPoints {
		if lg.hasNode(id) {
			push(id)
		}
	}

	for frontier.Len() > 0 {
		cur := heap.Pop(&frontier).(index.Candidate)
		if worst, ok := results.PeekWorst(); ok && results.Len() >= ef && cur.Score < worst.Score {
			break
		}
		for _, nb := range lg.neighbors(cur.Id) {
			push(nb)
		}
	}

	return results.Sorted()
}

func (idx *Index) skipFromResults(id piramid.Id, filter metadata.Filter, mdView index.MetadataView) bool {
	if _, dead := idx.tombstones[id]; dead {
		return true
	}
	if filter != nil {
		if mdView == nil {
			return true
		}
		md, ok := mdView(id)
		if !ok || !filter.Eval(md) {
			return true
		}
	}
	return false
}

// Search implements spec §4.6.2's search procedure.
func (idx *Index) Search(query []float32, k int, vectors index.VectorsView, params index.SearchParams, filter metadata.Filter, mdView index.MetadataView) ([]piramid.Id, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.entrySet {
		return nil, nil
	}

	ef := params.Ef
	if ef <= 0 {
		ef = idx.efSearch
	}
	if ef < k {
		ef = k
	}

	entry := idx.greedyDescend(query, vectors, idx.entryLayer, 0)
	results := idx.searchLayer(query, vectors, []piramid.Id{entry}, ef, 0, filter, mdView)
	if len(results) > k {
		results = results[:k]
	}

	ids := make([]piramid.Id, len(results))
	for i, c := range results {
		ids[i] = c.Id
	}
	return ids, nil
}

// Remove marks id as a tombstone: it's skipped by future searches but
// kept in neighbor lists until an explicit Rebuild (spec §4.6.2).
func (idx *Index) Remove(id piramid.Id) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tombstones[id] = struct{}{}
	return nil
}

// Rebuild discards all graph state and re-inserts every (id, vector)
// pair, the "explicit operator action" spec §4.6.2 requires to actually
// drop tombstones from neighbor lists.
func (idx *Index) Rebuild(ids []piramid.Id, vectors index.VectorsView) error {
	idx.mu.Lock()
	idx.reg = newRegistry()
	idx.layers = nil
	idx.nodeLayer = make(map[piramid.Id]int)
	idx.tombstones = make(map[piramid.Id]struct{})
	idx.entrySet = false
	idx.mu.Unlock()

	for _, id := range ids {
		v, ok := vectors(id)
		if !ok {
			continue
		}
		if err := idx.Insert(id, v, vectors); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Index) Stats() index.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	layerSizes := make([]int, len(idx.layers))
	var totalDegree, totalNodes int
	for i, lg := range idx.layers {
		n := lg.nodeCount()
		layerSizes[i] = n
		totalNodes += n
		totalDegree += len(lg.edges()) * 2
	}
	var avg float32
	if totalNodes > 0 {
		avg = float32(totalDegree) / float32(totalNodes)
	}

	return index.IndexStats{
		Kind:         piramid.IndexHNSW,
		TotalVectors: len(idx.nodeLayer) - len(idx.tombstones),
		Tombstones:   len(idx.tombstones),
		MaxLayer:     len(idx.layers) - 1,
		LayerSizes:   layerSizes,
		AvgDegree:    avg,
	}
}

// selectNeighborsHeuristic implements spec §4.6.2 step 4: prefer
// candidates closer to the new node than to any already-selected
// neighbor, capped at m. candidates must all be scored against the same
// query vector the caller is linking.
func selectNeighborsHeuristic(candidates []index.Candidate, m int, vectors index.VectorsView, metric piramid.Metric, mode piramid.ExecutionMode) []index.Candidate {
	sorted := make([]index.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var selected []index.Candidate
	for _, c := range sorted {
		if len(selected) >= m {
			break
		}
		cVec, ok := vectors(c.Id)
		if !ok {
			continue
		}
		if isDiverse(c, cVec, selected, vectors, metric, mode) {
			selected = append(selected, c)
		}
	}
	return selected
}

func isDiverse(c index.Candidate, cVec []float32, selected []index.Candidate, vectors index.VectorsView, metric piramid.Metric, mode piramid.ExecutionMode) bool {
	for _, s := range selected {
		sVec, ok := vectors(s.Id)
		if !ok {
			continue
		}
		if distance.Score(metric, mode, cVec, sVec) > c.Score {
			return false
		}
	}
	return true
}
