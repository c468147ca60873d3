package embedding

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity_BoundaryLaws(t *testing.T) {
	require.Equal(t, 0.0, CosineSimilarity(nil, nil))
	require.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	require.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	require.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}
