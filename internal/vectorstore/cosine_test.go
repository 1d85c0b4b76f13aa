package vectorstore

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func vectorGen(n int) *rapid.Generator[[]float32] {
	return rapid.SliceOfN(rapid.Float32Range(-100, 100), n, n)
}

func nonZero(v []float32) bool {
	for _, x := range v {
		if math.Abs(float64(x)) > 1e-3 {
			return true
		}
	}
	return false
}

// TestPropertyCosineSelfSimilarity verifies cosine(v, v) is 1 for any nonzero v.
func TestPropertyCosineSelfSimilarity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(rt, "dim")
		v := vectorGen(n).Draw(rt, "v")
		if !nonZero(v) {
			rt.Skip("zero vector")
		}
		if got := Cosine(v, v); math.Abs(got-1) > 1e-6 {
			rt.Fatalf("Cosine(v, v) = %v, want 1", got)
		}
	})
}

// TestPropertyCosineSymmetricAndBounded verifies symmetry and the [-1, 1] range.
func TestPropertyCosineSymmetricAndBounded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(rt, "dim")
		a := vectorGen(n).Draw(rt, "a")
		b := vectorGen(n).Draw(rt, "b")

		ab, ba := Cosine(a, b), Cosine(b, a)
		if ab != ba {
			rt.Fatalf("Cosine(a, b) = %v, Cosine(b, a) = %v", ab, ba)
		}
		if ab < -1 || ab > 1 {
			rt.Fatalf("Cosine(a, b) = %v out of [-1, 1]", ab)
		}
	})
}

// TestPropertyCosineZeroVector verifies a zero vector never divides by zero.
func TestPropertyCosineZeroVector(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(rt, "dim")
		v := vectorGen(n).Draw(rt, "v")
		zero := make([]float32, n)
		if got := Cosine(zero, v); got != 0 {
			rt.Fatalf("Cosine(zero, v) = %v, want 0", got)
		}
		if got := Cosine(v, zero); got != 0 {
			rt.Fatalf("Cosine(v, zero) = %v, want 0", got)
		}
	})
}
