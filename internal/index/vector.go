package index

import "math"

// Vectors in the arena are unit length, so the inner product is the cosine
// similarity and search never recomputes norms.

// Dot is the inner product of two rows of the same width.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// NormalizeL2 returns a unit-length copy of v. A zero vector is copied
// unchanged; non-finite components yield an all-zero row.
func NormalizeL2(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	switch {
	case n == 0:
		copy(out, v)
	case math.IsInf(n, 0) || math.IsNaN(n):
	default:
		inv := 1 / n
		for i, x := range v {
			out[i] = float32(float64(x) * inv)
		}
	}
	return out
}
