package matching

import "math"

const epsilon = 1e-12

// CosineSimilarity returns the cosine of the angle between a and b, computed
// in float64. Vectors of different length, all-zero vectors and NaN results
// yield 0. The result is clamped to [-1, 1].
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom < epsilon {
		return 0
	}

	sim := dot / denom
	switch {
	case math.IsNaN(sim):
		return 0
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	default:
		return sim
	}
}
