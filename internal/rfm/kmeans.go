package rfm

import (
	"math"
	"math/rand"
)

// Clustering parameter defaults. The iteration cap bounds runtime on
// adversarial input (the loop never runs unboundedly); epsilon is the
// maximum centroid movement below which the algorithm declares convergence.
const (
	DefaultSeed          = 42
	DefaultMaxIterations = 100
	DefaultEpsilon       = 1e-6
)

// KMeans partitions standardized feature triples into k clusters with
// Lloyd's algorithm. Initialization samples k distinct input vectors with a
// seeded generator, so a fixed (input, k, seed) always reproduces identical
// assignments and centroids.
type KMeans struct {
	K             int
	Seed          int64
	MaxIterations int
	Epsilon       float64
}

// ClusterResult holds the outcome of one clustering run. Labels[i] is the
// cluster id of input vector i; Centroids are in the same (standardized)
// space as the input.
type ClusterResult struct {
	Labels     []int
	Centroids  [][3]float64
	Iterations int
	Converged  bool
}

// Run executes Lloyd's algorithm over the input vectors. The caller must
// ensure 1 <= K <= len(vectors); the pipeline validates this before
// clustering ever starts.
//
// Each iteration assigns every vector to the nearest centroid (ties broken
// by lowest centroid index) and replaces the centroid slice with a freshly
// computed one; centroids are never mutated in place across the assignment
// step, which keeps the per-vector assignment safe to parallelize. A
// centroid that loses all members keeps its previous position.
func (km KMeans) Run(vectors [][3]float64) ClusterResult {
	maxIter := km.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	eps := km.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	rng := rand.New(rand.NewSource(km.Seed))
	centroids := make([][3]float64, km.K)
	for i, idx := range rng.Perm(len(vectors))[:km.K] {
		centroids[i] = vectors[idx]
	}

	labels := make([]int, len(vectors))
	res := ClusterResult{Labels: labels}

	for iter := 0; iter < maxIter; iter++ {
		res.Iterations = iter + 1

		for i, v := range vectors {
			labels[i] = nearestCentroid(v, centroids)
		}

		next := make([][3]float64, km.K)
		counts := make([]int, km.K)
		for i, v := range vectors {
			c := labels[i]
			counts[c]++
			for d := 0; d < 3; d++ {
				next[c][d] += v[d]
			}
		}
		moved := 0.0
		for c := 0; c < km.K; c++ {
			if counts[c] == 0 {
				// empty-cluster rule: keep the previous position
				next[c] = centroids[c]
				continue
			}
			for d := 0; d < 3; d++ {
				next[c][d] /= float64(counts[c])
			}
			if m := euclidean(next[c], centroids[c]); m > moved {
				moved = m
			}
		}
		centroids = next

		if moved <= eps {
			res.Converged = true
			break
		}
	}

	res.Centroids = centroids
	return res
}

// Distance returns the Euclidean distance from a vector to the centroid of
// the given cluster. Used to attach explainability scores to assignments.
func (r ClusterResult) Distance(v [3]float64, cluster int) float64 {
	return euclidean(v, r.Centroids[cluster])
}

func nearestCentroid(v [3]float64, centroids [][3]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := euclidean(v, centroid); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func euclidean(a, b [3]float64) float64 {
	var sum float64
	for d := 0; d < 3; d++ {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
