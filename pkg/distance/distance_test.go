package distance

import (
	"math"
	"testing"

	"github.com/piramid-db/piramid/pkg/piramid"
)

func approxEqual(t *testing.T, got, want, tol float32) {
	t.Helper()
	if math.Abs(float64(got-want)) > float64(tol) {
		t.Fatalf("got %v, want %v (tol %v)", got, want, tol)
	}
}

func TestCosineIdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	for _, mode := range []piramid.ExecutionMode{piramid.ExecutionScalar, piramid.ExecutionSIMD} {
		approxEqual(t, Score(piramid.MetricCosine, mode, v, v), 1.0, 1e-6)
	}
}

func TestCosineOrthogonalVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	for _, mode := range []piramid.ExecutionMode{piramid.ExecutionScalar, piramid.ExecutionSIMD} {
		approxEqual(t, Score(piramid.MetricCosine, mode, a, b), 0, 1e-6)
	}
}

func TestCosineZeroNormIsZero(t *testing.T) {
	zero := []float32{0, 0, 0}
	v := []float32{1, 2, 3}
	approxEqual(t, Score(piramid.MetricCosine, piramid.ExecutionScalar, zero, v), 0, 1e-9)
}

func TestCosineSymmetric(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	b := []float32{9, 8, 7, 6, 5, 4, 3, 2, 1}
	ab := Score(piramid.MetricCosine, piramid.ExecutionSIMD, a, b)
	ba := Score(piramid.MetricCosine, piramid.ExecutionSIMD, b, a)
	approxEqual(t, ab, ba, 1e-6)
}

func TestEuclideanIdenticalVectorsIsMaxSimilarity(t *testing.T) {
	v := []float32{1, 2, 3}
	approxEqual(t, Score(piramid.MetricEuclidean, piramid.ExecutionScalar, v, v), 1.0, 1e-6)
}

func TestDotProductScalarMatchesUnrolled(t *testing.T) {
	a := make([]float32, 37)
	b := make([]float32, 37)
	for i := range a {
		a[i] = float32(i) * 0.5
		b[i] = float32(i%7) - 3
	}
	scalar := Score(piramid.MetricDot, piramid.ExecutionScalar, a, b)
	unrolled := Score(piramid.MetricDot, piramid.ExecutionSIMD, a, b)
	approxEqual(t, scalar, unrolled, 1e-2)
}

func TestScoreAutoModeMatchesScalarOnSmallVectors(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{3, 4}
	auto := Score(piramid.MetricDot, piramid.ExecutionAuto, a, b)
	scalar := Score(piramid.MetricDot, piramid.ExecutionScalar, a, b)
	approxEqual(t, auto, scalar, 1e-6)
}
