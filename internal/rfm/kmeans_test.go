package rfm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// two well-separated groups around (0,0,0) and (10,10,10)
func twoBlobs() [][3]float64 {
	return [][3]float64{
		{0.1, 0.2, 0.0},
		{-0.1, 0.0, 0.1},
		{0.0, -0.2, -0.1},
		{10.1, 9.9, 10.0},
		{9.8, 10.2, 10.1},
		{10.0, 10.0, 9.9},
	}
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	km := KMeans{K: 2, Seed: DefaultSeed}
	res := km.Run(twoBlobs())

	require.Len(t, res.Labels, 6)
	assert.True(t, res.Converged)

	// first three points share a cluster, last three share the other
	assert.Equal(t, res.Labels[0], res.Labels[1])
	assert.Equal(t, res.Labels[1], res.Labels[2])
	assert.Equal(t, res.Labels[3], res.Labels[4])
	assert.Equal(t, res.Labels[4], res.Labels[5])
	assert.NotEqual(t, res.Labels[0], res.Labels[3])
}

func TestKMeansDeterministic(t *testing.T) {
	km := KMeans{K: 3, Seed: 7}
	vectors := [][3]float64{
		{1, 0, 0}, {2, 1, 0}, {0, 1, 1}, {8, 8, 8}, {9, 7, 8}, {-5, -5, -5}, {-4, -6, -5},
	}

	first := km.Run(vectors)
	second := km.Run(vectors)

	assert.Equal(t, first.Labels, second.Labels)
	assert.Equal(t, first.Centroids, second.Centroids)
	assert.Equal(t, first.Iterations, second.Iterations)
}

func TestKMeansAllVectorsIdentical(t *testing.T) {
	vectors := make([][3]float64, 50)
	km := KMeans{K: 3, Seed: DefaultSeed, MaxIterations: 10}

	res := km.Run(vectors)

	assert.True(t, res.Converged, "identical vectors must converge, not spin")
	assert.LessOrEqual(t, res.Iterations, 10)
	for _, l := range res.Labels {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 3)
	}
}

func TestKMeansIterationCapRespected(t *testing.T) {
	km := KMeans{K: 2, Seed: DefaultSeed, MaxIterations: 1, Epsilon: 1e-300}
	res := km.Run(twoBlobs())

	assert.Equal(t, 1, res.Iterations)
}

func TestKMeansKEqualsN(t *testing.T) {
	vectors := [][3]float64{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}
	km := KMeans{K: 3, Seed: DefaultSeed}

	res := km.Run(vectors)

	seen := map[int]bool{}
	for _, l := range res.Labels {
		seen[l] = true
	}
	assert.Len(t, seen, 3, "with k=n every vector gets its own cluster")
}

func TestKMeansKOne(t *testing.T) {
	vectors := twoBlobs()
	km := KMeans{K: 1, Seed: DefaultSeed}

	res := km.Run(vectors)

	for _, l := range res.Labels {
		assert.Equal(t, 0, l)
	}
	// centroid is the global mean
	assert.InDelta(t, 4.983, res.Centroids[0][0], 0.01)
}

func TestKMeansTieBreakLowestIndex(t *testing.T) {
	// equidistant point between two centroids must go to the lower index
	centroids := [][3]float64{{-1, 0, 0}, {1, 0, 0}}
	assert.Equal(t, 0, nearestCentroid([3]float64{0, 0, 0}, centroids))
}

func TestKMeansEmptyClusterKeepsPosition(t *testing.T) {
	// duplicate points with k=2: one centroid may end up with every member
	// and the other with none; the empty one must keep a defined position.
	vectors := [][3]float64{{5, 5, 5}, {5, 5, 5}, {5, 5, 5}}
	km := KMeans{K: 2, Seed: DefaultSeed}

	res := km.Run(vectors)

	require.Len(t, res.Centroids, 2)
	for _, c := range res.Centroids {
		assert.Equal(t, [3]float64{5, 5, 5}, c)
	}
}
