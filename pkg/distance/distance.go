// Package distance implements the scoring kernels used to rank vectors:
// cosine similarity, euclidean-derived similarity, and dot product, each
// with a scalar and a lane-width-8 unrolled variant (spec §4.9).
package distance

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/piramid-db/piramid/pkg/piramid"
)

const lane = 8

// Score computes the similarity of a and b under metric, choosing the
// scalar or unrolled kernel according to mode. ExecutionAuto picks the
// unrolled kernel for vectors at least one lane wide and falls back to
// scalar otherwise; ExecutionParallel scores the same as ExecutionSIMD
// here (parallelism across queries, not within one pair, is the caller's
// concern in pkg/search).
func Score(metric piramid.Metric, mode piramid.ExecutionMode, a, b []float32) float32 {
	unrolled := mode == piramid.ExecutionSIMD || mode == piramid.ExecutionParallel ||
		(mode == piramid.ExecutionAuto && len(a) >= lane)

	switch metric {
	case piramid.MetricCosine:
		if unrolled {
			return cosineUnrolled(a, b)
		}
		return cosineScalar(a, b)
	case piramid.MetricEuclidean:
		var d float32
		if unrolled {
			d = euclideanUnrolled(a, b)
		} else {
			d = euclideanScalar(a, b)
		}
		return float32(1.0 / (1.0 + float64(d)))
	case piramid.MetricDot:
		if unrolled {
			return dotUnrolled(a, b)
		}
		return dotScalar(a, b)
	default:
		return cosineScalar(a, b)
	}
}

// cosineScalar computes cosine similarity using gonum's scalar dot/norm
// primitives. Zero-norm vectors yield 0, matching spec §4.9.
func cosineScalar(a, b []float32) float32 {
	af, bf := toFloat64(a), toFloat64(b)
	denom := floats.Norm(af, 2) * floats.Norm(bf, 2)
	if denom == 0 {
		return 0
	}
	return float32(floats.Dot(af, bf) / denom)
}

func dotScalar(a, b []float32) float32 {
	return float32(floats.Dot(toFloat64(a), toFloat64(b)))
}

func euclideanScalar(a, b []float32) float32 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return float32(math.Sqrt(sum))
}

// cosineUnrolled, dotUnrolled, and euclideanUnrolled process 8 elements
// per iteration, matching the wide::f32x8 chunking in the original
// implementation's dot/simd.rs. Semantics are identical to the scalar
// kernels up to floating-point associativity.
func cosineUnrolled(a, b []float32) float32 {
	dot := dotUnrolled(a, b)
	normA := dotUnrolled(a, a)
	normB := dotUnrolled(b, b)
	denom := math.Sqrt(float64(normA)) * math.Sqrt(float64(normB))
	if denom == 0 {
		return 0
	}
	return float32(float64(dot) / denom)
}

func dotUnrolled(a, b []float32) float32 {
	n := len(a)
	chunks := n / lane
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	for i := 0; i < chunks; i++ {
		off := i * lane
		s0 += a[off] * b[off]
		s1 += a[off+1] * b[off+1]
		s2 += a[off+2] * b[off+2]
		s3 += a[off+3] * b[off+3]
		s4 += a[off+4] * b[off+4]
		s5 += a[off+5] * b[off+5]
		s6 += a[off+6] * b[off+6]
		s7 += a[off+7] * b[off+7]
	}
	sum := s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
	for i := chunks * lane; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func euclideanUnrolled(a, b []float32) float32 {
	n := len(a)
	chunks := n / lane
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	for i := 0; i < chunks; i++ {
		off := i * lane
		d0 := a[off] - b[off]
		d1 := a[off+1] - b[off+1]
		d2 := a[off+2] - b[off+2]
		d3 := a[off+3] - b[off+3]
		d4 := a[off+4] - b[off+4]
		d5 := a[off+5] - b[off+5]
		d6 := a[off+6] - b[off+6]
		d7 := a[off+7] - b[off+7]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
		s4 += d4 * d4
		s5 += d5 * d5
		s6 += d6 * d6
		s7 += d7 * d7
	}
	sum := s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
	for i := chunks * lane; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
