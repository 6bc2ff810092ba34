package hnsw

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/piramid-db/piramid/pkg/piramid"
)

// registry assigns a stable, dense int64 id to every piramid.Id the
// index has ever seen. gonum's graph.Node requires an int64 ID and the
// persisted tombstone bitmap requires uint32 keys; this is the one
// mapping both ride on.
type registry struct {
	mu    sync.Mutex
	toInt map[piramid.Id]int64
	toId  []piramid.Id
}

func newRegistry() *registry {
	return &registry{toInt: make(map[piramid.Id]int64)}
}

func (r *registry) intFor(id piramid.Id) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.toInt[id]; ok {
		return i
	}
	i := int64(len(r.toId))
	r.toInt[id] = i
	r.toId = append(r.toId, id)
	return i
}

func (r *registry) lookup(id piramid.Id) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.toInt[id]
	return i, ok
}

func (r *registry) idFor(i int64) (piramid.Id, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || int(i) >= len(r.toId) {
		return piramid.Id{}, false
	}
	return r.toId[i], true
}

// gnode is the minimal graph.Node implementation gonum's simple graphs
// need: an opaque int64 identity, nothing else.
type gnode int64

func (n gnode) ID() int64 { return int64(n) }

// layerGraph is the neighbor structure for one HNSW layer: an undirected
// weighted graph whose nodes are registry ints and whose edge weight is
// the similarity score cached at link time. Neighbor lists hold ids, not
// pointers, so the graph has no ownership cycles (spec §9).
type layerGraph struct {
	reg *registry
	g   *simple.WeightedUndirectedGraph
}

func newLayerGraph(reg *registry) *layerGraph {
	return &layerGraph{reg: reg, g: simple.NewWeightedUndirectedGraph(0, math.Inf(1))}
}

func (lg *layerGraph) addNode(id piramid.Id) {
	n := gnode(lg.reg.intFor(id))
	if lg.g.Node(n.ID()) == nil {
		lg.g.AddNode(n)
	}
}

func (lg *layerGraph) hasNode(id piramid.Id) bool {
	i, ok := lg.reg.lookup(id)
	if !ok {
		return false
	}
	return lg.g.Node(i) != nil
}

// link adds a bidirectional edge between a and b, weighted by weight
// (the similarity score at the time they were connected).
func (lg *layerGraph) link(a, b piramid.Id, weight float32) {
	na, nb := gnode(lg.reg.intFor(a)), gnode(lg.reg.intFor(b))
	if lg.g.Node(na.ID()) == nil {
		lg.g.AddNode(na)
	}
	if lg.g.Node(nb.ID()) == nil {
		lg.g.AddNode(nb)
	}
	lg.g.SetWeightedEdge(lg.g.NewWeightedEdge(na, nb, float64(weight)))
}

func (lg *layerGraph) unlink(a, b piramid.Id) {
	ai, aok := lg.reg.lookup(a)
	bi, bok := lg.reg.lookup(b)
	if !aok || !bok {
		return
	}
	lg.g.RemoveEdge(ai, bi)
}

func (lg *layerGraph) neighbors(id piramid.Id) []piramid.Id {
	i, ok := lg.reg.lookup(id)
	if !ok {
		return nil
	}
	it := lg.g.From(i)
	out := make([]piramid.Id, 0, it.Len())
	for it.Next() {
		n := it.Node().(gnode)
		if pid, ok := lg.reg.idFor(n.ID()); ok {
			out = append(out, pid)
		}
	}
	return out
}

func (lg *layerGraph) degree(id piramid.Id) int {
	i, ok := lg.reg.lookup(id)
	if !ok {
		return 0
	}
	return lg.g.From(i).Len()
}

func (lg *layerGraph) nodeCount() int {
	return lg.g.Nodes().Len()
}

// edges returns every edge in the layer once, as (a,b) registry ints
// with a < b — used by Save to serialize the layer without duplicates.
func (lg *layerGraph) edges() [][2]int64 {
	var out [][2]int64
	it := lg.g.Nodes()
	for it.Next() {
		a := it.Node().ID()
		nit := lg.g.From(a)
		for nit.Next() {
			b := nit.Node().ID()
			if a < b {
				out = append(out, [2]int64{a, b})
			}
		}
	}
	return out
}
