// Package vector holds the similarity math used by vector search.
package vector

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
// A zero-magnitude vector, an empty vector or a length mismatch yields 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
