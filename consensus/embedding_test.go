package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	require.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	require.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
}

func TestCosineSimilarityMismatchedLength(t *testing.T) {
	require.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1}))
}

func TestMedoidPicksMostCentral(t *testing.T) {
	vecs := [][]float64{
		{1, 0},
		{0.9, 0.1},
		{0, 1},
	}
	idx := Medoid(vecs)
	require.Equal(t, 1, idx)
}

func TestMedoidEmptyAndSingle(t *testing.T) {
	require.Equal(t, -1, Medoid(nil))
	require.Equal(t, 0, Medoid([][]float64{{1, 2}}))
}

func TestAllPairsAboveThreshold(t *testing.T) {
	agree := [][]float64{{1, 0}, {0.99, 0.01}, {0.98, 0.02}}
	require.True(t, AllPairsAboveThreshold(agree, 0.9))

	disagree := [][]float64{{1, 0}, {0, 1}}
	require.False(t, AllPairsAboveThreshold(disagree, 0.5))
}
