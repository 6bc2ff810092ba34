package hnsw

import "testing"

func TestRegistryAssignsStableDenseInts(t *testing.T) {
	reg := newRegistry()
	a, b := idFromInt(1), idFromInt(2)

	ia := reg.intFor(a)
	ib := reg.intFor(b)
	if ia == ib {
		t.Fatalf("expected distinct ints, got %d and %d", ia, ib)
	}
	if again := reg.intFor(a); again != ia {
		t.Fatalf("intFor not stable across calls: %d then %d", ia, again)
	}

	got, ok := reg.idFor(ia)
	if !ok || got != a {
		t.Fatalf("idFor(%d) = %v, %v; want %v, true", ia, got, ok, a)
	}
}

func TestRegistryLookupMissing(t *testing.T) {
	reg := newRegistry()
	if _, ok := reg.lookup(idFromInt(1)); ok {
		t.Fatalf("expected lookup of unregistered id to fail")
	}
	if _, ok := reg.idFor(99); ok {
		t.Fatalf("expected idFor of out-of-range int to fail")
	}
}

func TestLayerGraphLinkAndNeighbors(t *testing.T) {
	reg := newRegistry()
	lg := newLayerGraph(reg)
	a, b, c := idFromInt(1), idFromInt(2), idFromInt(3)

	lg.link(a, b, 0.5)
	lg.link(a, c, 0.25)

	neighbors := lg.neighbors(a)
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors of a, got %d", len(neighbors))
	}
	if lg.degree(a) != 2 {
		t.Fatalf("expected degree 2, got %d", lg.degree(a))
	}
	if lg.degree(b) != 1 {
		t.Fatalf("expected degree 1 for b, got %d", lg.degree(b))
	}
}

func TestLayerGraphUnlink(t *testing.T) {
	reg := newRegistry()
	lg := newLayerGraph(reg)
	a, b := idFromInt(1), idFromInt(2)

	lg.link(a, b, 1.0)
	lg.unlink(a, b)

	if lg.degree(a) != 0 || lg.degree(b) != 0 {
		t.Fatalf("expected both degrees 0 after unlink, got %d and %d", lg.degree(a), lg.degree(b))
	}
}

func TestLayerGraphEdgesDeduped(t *testing.T) {
	reg := newRegistry()
	lg := newLayerGraph(reg)
	a, b, c := idFromInt(1), idFromInt(2), idFromInt(3)

	lg.link(a, b, 1.0)
	lg.link(b, c, 1.0)

	edges := lg.edges()
	if len(edges) != 2 {
		t.Fatalf("expected 2 deduped edges, got %d: %v", len(edges), edges)
	}
}

func TestLayerGraphHasNode(t *testing.T) {
	reg := newRegistry()
	lg := newLayerGraph(reg)
	a, b := idFromInt(1), idFromInt(2)
	lg.addNode(a)

	if !lg.hasNode(a) {
		t.Fatalf("expected a to be present")
	}
	if lg.hasNode(b) {
		t.Fatalf("expected b to be absent")
	}
}
