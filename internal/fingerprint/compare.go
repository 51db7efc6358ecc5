package fingerprint

import "math"

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite); mismatched or
// zero vectors get the maximum distance.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

// FacesMatch is the match predicate: the two encodings belong to the same
// person when their cosine distance is at most tolerance.
func FacesMatch(known, probe []float32, tolerance float64) bool {
	if len(known) != len(probe) || len(known) == 0 {
		return false
	}
	return CosineDistance(known, probe) <= tolerance
}
