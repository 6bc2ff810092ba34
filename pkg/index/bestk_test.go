package index

import (
	"testing"

	"github.com/piramid-db/piramid/pkg/piramid"
)

func TestBestKKeepsHighestScores(t *testing.T) {
	b := NewBestK(3)
	ids := make([]piramid.Id, 5)
	for i := range ids {
		ids[i] = piramid.NewId()
	}
	b.Add(Candidate{Id: ids[0], Score: 0.1})
	b.Add(Candidate{Id: ids[1], Score: 0.9})
	b.Add(Candidate{Id: ids[2], Score: 0.5})
	b.Add(Candidate{Id: ids[3], Score: 0.7})
	b.Add(Candidate{Id: ids[4], Score: 0.2})

	sorted := b.Sorted()
	if len(sorted) != 3 {
		t.Fatalf("expected 3 retained, got %d", len(sorted))
	}
	wantScores := []float32{0.9, 0.7, 0.5}
	for i, want := range wantScores {
		if sorted[i].Score != want {
			t.Fatalf("position %d: expected score %v, got %v", i, want, sorted[i].Score)
		}
	}
}

func TestBestKTieBreakByAscendingId(t *testing.T) {
	a, b := piramid.NewId(), piramid.NewId()
	lo, hi := a, b
	if !idLess(lo, hi) {
		lo, hi = b, a
	}

	bk := NewBestK(1)
	bk.Add(Candidate{Id: hi, Score: 1.0})
	bk.Add(Candidate{Id: lo, Score: 1.0})

	got := bk.Sorted()
	if len(got) != 1 || got[0].Id != lo {
		t.Fatalf("expected surviving candidate to be the smaller id %v, got %+v", lo, got)
	}
}

func TestBestKZeroKRetainsNothing(t *testing.T) {
	b := NewBestK(0)
	b.Add(Candidate{Id: piramid.NewId(), Score: 1})
	if b.Len() != 0 {
		t.Fatalf("expected 0 retained, got %d", b.Len())
	}
}

func TestSelectAutoThresholds(t *testing.T) {
	cases := []struct {
		count int
		want  piramid.IndexKind
	}{
		{0, piramid.IndexFlat},
		{9_999, piramid.IndexFlat},
		{10_000, piramid.IndexIVF},
		{99_999, piramid.IndexIVF},
		{100_000, piramid.IndexHNSW},
	}
	for _, c := range cases {
		if got := Select(piramid.IndexAuto, c.count); got != c.want {
			t.Fatalf("count=%d: expected %v, got %v", c.count, c.want, got)
		}
	}
}

func TestSelectExplicitOverridesAuto(t *testing.T) {
	if got := Select(piramid.IndexFlat, 1_000_000); got != piramid.IndexFlat {
		t.Fatalf("expected explicit Flat to override size-based auto-selection, got %v", got)
	}
}
