package index

import (
	"bytes"
	"container/heap"
	"sort"

	"github.com/piramid-db/piramid/pkg/piramid"
)

// Candidate is one scored result under consideration for a top-k list.
type Candidate struct {
	Id    piramid.Id
	Score float32
}

// idLess orders ids ascending by their raw 16-byte big-endian form, the
// tie-break rule spec §4.6.1 requires for Flat (and, by the same
// convention, every other index variant).
func idLess(a, b piramid.Id) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

// worse reports whether a should be evicted before b when both are
// candidates for the same bounded top-k slot: lower score loses; a score
// tie is broken by the larger id losing (so the surviving id is the
// smaller one, per the ascending tie-break rule).
func worse(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return !idLess(a.Id, b.Id)
}

type candidateHeap []Candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return worse(h[i], h[j]) }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// BestK keeps the k best-scoring candidates seen via Add, in bounded
// O(log k) space and time per call — the "bounded best-k heap" every
// index variant uses to turn a stream of scored candidates into a top-k
// list (spec §4.6.1, §4.6.3).
type BestK struct {
	k int
	h candidateHeap
}

// NewBestK returns a tracker that retains at most k candidates.
func NewBestK(k int) *BestK {
	return &BestK{k: k}
}

// Add offers c for inclusion in the top-k. A no-op if k <= 0.
func (b *BestK) Add(c Candidate) {
	if b.k <= 0 {
		return
	}
	if len(b.h) < b.k {
		heap.Push(&b.h, c)
		return
	}
	if worse(c, b.h[0]) {
		return
	}
	b.h[0] = c
	heap.Fix(&b.h, 0)
}

// Len returns how many candidates are currently retained.
func (b *BestK) Len() int { return len(b.h) }

// PeekWorst returns the currently worst-retained candidate, for callers
// that want to prune a traversal once nothing left can possibly beat it.
// ok is false if nothing has been retained yet.
func (b *BestK) PeekWorst() (Candidate, bool) {
	if len(b.h) == 0 {
		return Candidate{}, false
	}
	return b.h[0], true
}

// Sorted returns the retained candidates best-first: score descending,
// ties broken by ascending id.
func (b *BestK) Sorted() []Candidate {
	out := make([]Candidate, len(b.h))
	copy(out, b.h)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return idLess(out[i].Id, out[j].Id)
	})
	return out
}

// Ids returns Sorted()'s ids only.
func (b *BestK) Ids() []piramid.Id {
	sorted := b.Sorted()
	ids := make([]piramid.Id, len(sorted))
	for i, c := range sorted {
		ids[i] = c.Id
	}
	return ids
}
