package ivf

import (
	"path/filepath"
	"testing"

	"github.com/piramid-db/piramid/pkg/index"
	"github.com/piramid-db/piramid/pkg/piramid"
)

func testOpts() piramid.IVFOptions {
	return piramid.IVFOptions{
		NumClusters:   4,
		NumProbes:     2,
		MaxIterations: 10,
	}
}

func idFromInt(n int) piramid.Id {
	var raw [16]byte
	raw[15] = byte(n)
	raw[14] = byte(n >> 8)
	id, err := piramid.IdFromBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return id
}

// clusteredDataset produces groups points tightly around 4 well-separated
// centers so k-means converges to an obviously correct partition.
func clusteredDataset() (map[piramid.Id][]float32, func(piramid.Id) ([]float32, bool)) {
	centers := [][2]float32{{0, 0}, {100, 0}, {0, 100}, {100, 100}}
	vecs := make(map[piramid.Id][]float32)
	n := 0
	for _, c := range centers {
		for j := 0; j < 10; j++ {
			id := idFromInt(n)
			vecs[id] = []float32{c[0] + float32(j%3), c[1] + float32(j%2)}
			n++
		}
	}
	view := func(id piramid.Id) ([]float32, bool) {
		v, ok := vecs[id]
		return v, ok
	}
	return vecs, view
}

func allIds(vecs map[piramid.Id][]float32) []piramid.Id {
	ids := make([]piramid.Id, 0, len(vecs))
	for id := range vecs {
		ids = append(ids, id)
	}
	return ids
}

func TestSearchBeforeTrainScansUntrainedSet(t *testing.T) {
	vecs, view := clusteredDataset()
	idx := New(testOpts(), piramid.MetricEuclidean, piramid.ExecutionAuto)
	for id, v := range vecs {
		if err := idx.Insert(id, v, view); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := idx.Search([]float32{0, 0}, 3, view, index.SearchParams{}, nil, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
}

func TestTrainThenSearchFindsNearestCluster(t *testing.T) {
	vecs, view := clusteredDataset()
	idx := New(testOpts(), piramid.MetricEuclidean, piramid.ExecutionAuto)
	if err := idx.Train(allIds(vecs), view); err != nil {
		t.Fatalf("train: %v", err)
	}

	got, err := idx.Search([]float32{100, 100}, 5, view, index.SearchParams{NumProbes: 1}, nil, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected at least one result")
	}
	for _, id := range got {
		v, _ := view(id)
		if v[0] < 50 || v[1] < 50 {
			t.Fatalf("expected result near (100,100) cluster, got %v", v)
		}
	}
}

func TestInsertAfterTrainAssignsToExistingCentroid(t *testing.T) {
	vecs, view := clusteredDataset()
	idx := New(testOpts(), piramid.MetricEuclidean, piramid.ExecutionAuto)
	ids := allIds(vecs)
	if err := idx.Train(ids, view); err != nil {
		t.Fatalf("train: %v", err)
	}

	newId := idFromInt(9999)
	newVec := []float32{1, 1}
	vecs[newId] = newVec
	if err := idx.Insert(newId, newVec, view); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, ok := idx.assigned[newId]; !ok {
		t.Fatalf("expected newId to be assigned to a centroid after trained insert")
	}
}

func TestRemoveDropsFromPostingList(t *testing.T) {
	vecs, view := clusteredDataset()
	idx := New(testOpts(), piramid.MetricEuclidean, piramid.ExecutionAuto)
	ids := allIds(vecs)
	if err := idx.Train(ids, view); err != nil {
		t.Fatalf("train: %v", err)
	}

	target := ids[0]
	if err := idx.Remove(target); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := idx.assigned[target]; ok {
		t.Fatalf("expected target to be unassigned after remove")
	}
}

func TestAutoNumClustersAndProbes(t *testing.T) {
	if c := AutoNumClusters(4); c != 10 {
		t.Fatalf("expected floor of 10 clusters for small N, got %d", c)
	}
	if c := AutoNumClusters(10000); c != 100 {
		t.Fatalf("expected sqrt(10000)=100 clusters, got %d", c)
	}
	if p := AutoNumProbes(100); p != 10 {
		t.Fatalf("expected probes clamped to 10, got %d", p)
	}
	if p := AutoNumProbes(5); p != 1 {
		t.Fatalf("expected probes floor of 1, got %d", p)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	vecs, view := clusteredDataset()
	idx := New(testOpts(), piramid.MetricEuclidean, piramid.ExecutionAuto)
	ids := allIds(vecs)
	if err := idx.Train(ids, view); err != nil {
		t.Fatalf("train: %v", err)
	}

	path := filepath.Join(t.TempDir(), "index.ivf.db")
	if err := idx.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, found, err := Load(path, testOpts(), piramid.MetricEuclidean, piramid.ExecutionAuto)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatalf("expected sidecar to be found")
	}
	if loaded.Stats().TotalVectors != idx.Stats().TotalVectors {
		t.Fatalf("total vectors mismatch after load")
	}

	got, err := loaded.Search([]float32{0, 0}, 3, view, index.SearchParams{}, nil, nil)
	if err != nil {
		t.Fatalf("search after load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results after load, got %d", len(got))
	}
}

func TestLoadMissingSidecarYieldsUntrainedIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.ivf.db")
	idx, found, err := Load(path, testOpts(), piramid.MetricEuclidean, piramid.ExecutionAuto)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatalf("expected sidecar not found")
	}
	if idx.Stats().TotalVectors != 0 {
		t.Fatalf("expected empty index")
	}
}
