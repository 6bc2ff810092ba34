package hnsw

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/RoaringBitmap/roaring"

	"github.com/piramid-db/piramid/pkg/piramid"
)

func readFileOrMissing(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, piramid.NewIOError("read", path, err)
	}
	return data, nil
}

// wireGraph is the JSON-serializable form of an Index, written to a
// collection's `<path>.hnsw.db` sidecar. Tombstones ride along as a
// roaring bitmap over registry ints rather than a JSON array, since
// that's the compact representation the rest of the ecosystem uses for
// sparse id sets (spec §9's Open Question on deletion persistence).
type wireGraph struct {
	M              int            `json:"m"`
	MMax           int            `json:"m_max"`
	EfConstruction int            `json:"ef_construction"`
	EfSearch       int            `json:"ef_search"`
	Ml             float64        `json:"ml"`
	Ids            []piramid.Id   `json:"ids"` // index i is registry int i
	NodeLayer      []int          `json:"node_layer"`
	Layers         [][][2]int64   `json:"layers"`
	EntrySet       bool           `json:"entry_set"`
	Entry          piramid.Id     `json:"entry"`
	EntryLayer     int            `json:"entry_layer"`
	Tombstones     []byte         `json:"tombstones"`
}

// Save atomically persists idx to path.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	w := wireGraph{
		M:              idx.m,
		MMax:           idx.mMax,
		EfConstruction: idx.efConstruction,
		EfSearch:       idx.efSearch,
		Ml:             idx.ml,
		Ids:            append([]piramid.Id(nil), idx.reg.toId...),
		EntrySet:       idx.entrySet,
		Entry:          idx.entry,
		EntryLayer:     idx.entryLayer,
	}
	w.NodeLayer = make([]int, len(w.Ids))
	for i, id := range w.Ids {
		w.NodeLayer[i] = idx.nodeLayer[id]
	}
	w.Layers = make([][][2]int64, len(idx.layers))
	for i, lg := range idx.layers {
		w.Layers[i] = lg.edges()
	}

	bm := roaring.New()
	for id := range idx.tombstones {
		if i, ok := idx.reg.lookup(id); ok {
			bm.Add(uint32(i))
		}
	}
	var tomb bytes.Buffer
	if _, err := bm.WriteTo(&tomb); err != nil {
		return piramid.NewSerializationError("hnsw tombstones", err)
	}
	w.Tombstones = tomb.Bytes()

	data, err := json.Marshal(w)
	if err != nil {
		return piramid.NewSerializationError("hnsw index", err)
	}
	return piramid.AtomicWriteFile(path, data)
}

// Load reconstructs an Index from a sidecar written by Save. The caller
// passes the HNSWOptions/metric/mode the collection is configured with;
// only the persisted graph shape and tombstones are restored from disk,
// since operational parameters (M, ef, metric) are owned by config, not
// the sidecar (spec §6: config changes don't require a data migration).
func Load(path string, opts piramid.HNSWOptions, metric piramid.Metric, mode piramid.ExecutionMode) (*Index, bool, error) {
	data, err := readFileOrMissing(path)
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return New(opts, metric, mode), false, nil
	}

	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, false, piramid.NewCorruptedDataError("hnsw index unparseable", err)
	}

	idx := New(opts, metric, mode)
	idx.reg.toId = append([]piramid.Id(nil), w.Ids...)
	idx.reg.toInt = make(map[piramid.Id]int64, len(w.Ids))
	for i, id := range w.Ids {
		idx.reg.toInt[id] = int64(i)
	}
	idx.nodeLayer = make(map[piramid.Id]int, len(w.Ids))
	for i, id := range w.Ids {
		idx.nodeLayer[id] = w.NodeLayer[i]
	}
	idx.layers = make([]*layerGraph, len(w.Layers))
	for l, edges := range w.Layers {
		lg := newLayerGraph(idx.reg)
		for id, layer := range idx.nodeLayer {
			if layer >= l {
				lg.addNode(id)
			}
		}
		for _, e := range edges {
			a, aok := idx.reg.idFor(e[0])
			b, bok := idx.reg.idFor(e[1])
			if aok && bok {
				lg.link(a, b, 0)
			}
		}
		idx.layers[l] = lg
	}
	idx.entrySet = w.EntrySet
	idx.entry = w.Entry
	idx.entryLayer = w.EntryLayer

	idx.tombstones = make(map[piramid.Id]struct{})
	if len(w.Tombstones) > 0 {
		bm := roaring.New()
		if _, err := bm.ReadFrom(bytes.NewReader(w.Tombstones)); err != nil {
			return nil, false, piramid.NewCorruptedDataError("hnsw tombstones unparseable", err)
		}
		it := bm.Iterator()
		for it.HasNext() {
			i := it.Next()
			if id, ok := idx.reg.idFor(int64(i)); ok {
				idx.tombstones[id] = struct{}{}
			}
		}
	}

	return idx, true, nil
}
