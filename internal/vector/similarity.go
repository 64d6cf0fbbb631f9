// Package vector provides embedding normalization and an immutable
// flat inner-product index for nearest-neighbor search.
package vector

import "math"

// Normalize returns a copy of v scaled to unit L2 norm.
// A zero vector is returned as-is: it cannot be normalized and is left
// degenerate rather than rejected.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// InnerProduct returns the inner product of two vectors. For unit-normalized
// vectors this equals cosine similarity, in [-1, 1].
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the Euclidean norm of x.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
