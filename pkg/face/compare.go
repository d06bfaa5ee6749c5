package face

import "math"

// DefaultSimilarityThreshold is the cosine similarity above which two
// embeddings are considered the same face.
const DefaultSimilarityThreshold = 0.8

// CosineSimilarity computes dot(a,b) / (|a|*|b|). Vectors of different
// lengths, and zero vectors, score 0 rather than erroring.
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EuclideanDistance computes the L2 distance between two embeddings.
// Vectors of different lengths are infinitely far apart.
func EuclideanDistance(a, b Embedding) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// IsSameFace reports whether two embeddings meet the similarity threshold.
func IsSameFace(a, b Embedding, threshold float64) bool {
	return CosineSimilarity(a, b) >= threshold
}

// BestSimilarity returns the highest cosine similarity between the probe
// and any embedding in the set, or 0 for an empty set.
func BestSimilarity(probe Embedding, set []Embedding) float64 {
	best := 0.0
	for _, candidate := range set {
		if sim := CosineSimilarity(probe, candidate); sim > best {
			best = sim
		}
	}
	return best
}

// IsSameFaceMultiple reports whether the probe matches any embedding in
// the set at the given threshold.
func IsSameFaceMultiple(probe Embedding, set []Embedding, threshold float64) bool {
	return BestSimilarity(probe, set) >= threshold
}

// AverageEmbedding computes the element-wise mean of a set of embeddings.
// Returns nil for an empty set. The result has the length of the first
// embedding; mixed-length sets (legacy stored records) contribute only the
// elements they have.
func AverageEmbedding(set []Embedding) Embedding {
	if len(set) == 0 {
		return nil
	}
	if len(set) == 1 {
		return set[0]
	}

	avg := make(Embedding, len(set[0]))
	for _, emb := range set {
		for i, v := range emb {
			if i >= len(avg) {
				break
			}
			avg[i] += v
		}
	}
	count := float32(len(set))
	for i := range avg {
		avg[i] /= count
	}
	return avg
}
