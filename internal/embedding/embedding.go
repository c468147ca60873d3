// Package embedding defines the boundary to an external embedding-model
// HTTP client (spec.md §1 Out-of-scope) and the cosine-similarity helper
// named in spec.md §8's boundary laws. Grounded on original
// apps/core/src/embedding/provider.rs.
package embedding

import (
	"context"
	"math"
)

// Provider embeds text into a fixed-dimension vector. Real implementations
// (an HTTP client to a local or remote embedding model) live outside this
// module; this interface is only the contract.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CosineSimilarity returns the cosine similarity of a and b, satisfying the
// boundary laws of spec.md §8: empty or length-mismatched vectors yield
// 0.0, identical vectors yield 1.0, and exactly opposite vectors yield -1.0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
