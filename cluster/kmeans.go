// Package cluster groups aggregated-profile rows by similarity so heatmap
// rows can be stratified.  The single algorithm offered is k-means with a
// caller-supplied seed: the initialization is random, so reproducible runs
// require a fixed seed.
package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/grailbio/base/errors"
	"gonum.org/v1/gonum/floats"
)

const maxIterations = 100

// Unclustered is the label assigned to rows excluded from clustering.
const Unclustered = 0

// KMeans clusters the complete rows of data into k groups and returns one
// label per input row, in input order.  Labels are in [1, k].
//
// Rows containing NaN cannot be placed in Euclidean space; they are excluded
// from the fit and labeled Unclustered (0) rather than imputed, so callers
// can see exactly which anchors had insufficient signal.  It fails with an
// errors.Invalid error when fewer than k complete rows remain.
func KMeans(data [][]float64, k int, seed int64) ([]int, error) {
	if k <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("cluster: k=%d out of range", k))
	}
	complete := make([]int, 0, len(data))
	for i, row := range data {
		if !hasNaN(row) {
			complete = append(complete, i)
		}
	}
	if len(complete) < k {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("cluster: %d complete rows, need at least k=%d", len(complete), k))
	}
	nDim := len(data[complete[0]])
	for _, i := range complete {
		if len(data[i]) != nDim {
			return nil, errors.E(errors.Invalid, "cluster: ragged input rows")
		}
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := initCentroids(data, complete, k, nDim, rng)

	assign := make([]int, len(complete))
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for ci, i := range complete {
			best := nearest(centroids, data[i])
			if assign[ci] != best {
				assign[ci] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		updateCentroids(centroids, data, complete, assign, rng)
	}

	labels := make([]int, len(data))
	for ci, i := range complete {
		labels[i] = assign[ci] + 1
	}
	return labels, nil
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// initCentroids seeds the centroids with k distinct complete rows.
func initCentroids(data [][]float64, complete []int, k, nDim int, rng *rand.Rand) [][]float64 {
	perm := rng.Perm(len(complete))
	centroids := make([][]float64, k)
	for c := 0; c < k; c++ {
		centroids[c] = make([]float64, nDim)
		copy(centroids[c], data[complete[perm[c]]])
	}
	return centroids
}

func nearest(centroids [][]float64, row []float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := floats.Distance(centroid, row, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// updateCentroids recomputes each centroid as the mean of its members.  An
// emptied cluster is reseeded from a random complete row so k clusters
// survive to the next iteration.
func updateCentroids(centroids, data [][]float64, complete, assign []int, rng *rand.Rand) {
	counts := make([]int, len(centroids))
	for _, centroid := range centroids {
		for j := range centroid {
			centroid[j] = 0
		}
	}
	for ci, i := range complete {
		c := assign[ci]
		floats.Add(centroids[c], data[i])
		counts[c]++
	}
	for c, centroid := range centroids {
		if counts[c] == 0 {
			copy(centroid, data[complete[rng.Intn(len(complete))]])
			continue
		}
		floats.Scale(1/float64(counts[c]), centroid)
	}
}
