package query

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/sigtrace/sigtrace/internal/manifold"
)

// Cluster is one k-means cluster: its centroid and the member paths.
type Cluster struct {
	Centroid manifold.Signature `json:"centroid"`
	Members  []string           `json:"members"`
}

const (
	clusterMaxIterations = 50
	clusterConvergence   = 1e-4
)

// Cluster implements cluster(scope_glob, k): k-means in (C,S,E) space with
// squared Euclidean distance, k-means++ seeding, stopping at 50 iterations
// or centroid movement below 1e-4 (spec §4.7).
func (s *Surface) Cluster(ctx context.Context, scopeGlob string, k int) ([]Cluster, error) {
	paths, err := s.store.ListPaths(ctx, scopeGlob)
	if err != nil {
		return nil, err
	}

	points := make([]manifold.Signature, 0, len(paths))
	memberPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		sig, err := s.store.GetSignature(ctx, p)
		if err != nil {
			continue
		}
		points = append(points, sig)
		memberPaths = append(memberPaths, p)
	}

	if len(points) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 1
	}
	if k > len(points) {
		k = len(points)
	}

	centroids := kmeansPlusPlusSeed(points, k)

	assignments := make([]int, len(points))
	for iter := 0; iter < clusterMaxIterations; iter++ {
		for i, p := range points {
			assignments[i] = nearestCentroid(p, centroids)
		}

		newCentroids, moved := recomputeCentroids(points, assignments, centroids)
		centroids = newCentroids
		if moved < clusterConvergence {
			break
		}
	}

	clusters := make([]Cluster, k)
	for i := range clusters {
		clusters[i].Centroid = centroids[i]
	}
	for i, a := range assignments {
		clusters[a].Members = append(clusters[a].Members, memberPaths[i])
	}
	return clusters, nil
}

func sqDist(a, b manifold.Signature) float64 {
	dc := a.Coherence - b.Coherence
	ds := a.Stability - b.Stability
	de := a.Entropy - b.Entropy
	return dc*dc + ds*ds + de*de
}

// kmeansPlusPlusSeed picks k initial centroids using the k-means++ scheme:
// the first centroid is uniform-random, each subsequent one is sampled
// with probability proportional to its squared distance from the nearest
// already-chosen centroid.
func kmeansPlusPlusSeed(points []manifold.Signature, k int) []manifold.Signature {
	centroids := make([]manifold.Signature, 0, k)
	first := points[rand.IntN(len(points))]
	centroids = append(centroids, first)

	for len(centroids) < k {
		weights := make([]float64, len(points))
		var total float64
		for i, p := range points {
			best := math.MaxFloat64
			for _, c := range centroids {
				if d := sqDist(p, c); d < best {
					best = d
				}
			}
			weights[i] = best
			total += best
		}
		if total == 0 {
			centroids = append(centroids, points[rand.IntN(len(points))])
			continue
		}
		target := rand.Float64() * total
		var acc float64
		chosen := points[len(points)-1]
		for i, w := range weights {
			acc += w
			if acc >= target {
				chosen = points[i]
				break
			}
		}
		centroids = append(centroids, chosen)
	}
	return centroids
}

func nearestCentroid(p manifold.Signature, centroids []manifold.Signature) int {
	best, bestDist := 0, math.MaxFloat64
	for i, c := range centroids {
		if d := sqDist(p, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// recomputeCentroids averages each cluster's members and returns the new
// centroids along with the largest single-centroid movement.
func recomputeCentroids(points []manifold.Signature, assignments []int, prev []manifold.Signature) ([]manifold.Signature, float64) {
	sums := make([]manifold.Signature, len(prev))
	counts := make([]int, len(prev))
	for i, p := range points {
		a := assignments[i]
		sums[a].Coherence += p.Coherence
		sums[a].Stability += p.Stability
		sums[a].Entropy += p.Entropy
		counts[a]++
	}

	next := make([]manifold.Signature, len(prev))
	var maxMove float64
	for i := range prev {
		if counts[i] == 0 {
			next[i] = prev[i]
			continue
		}
		n := float64(counts[i])
		next[i] = manifold.Signature{
			Coherence: sums[i].Coherence / n,
			Stability: sums[i].Stability / n,
			Entropy:   sums[i].Entropy / n,
		}
		if move := math.Sqrt(sqDist(next[i], prev[i])); move > maxMove {
			maxMove = move
		}
	}
	return next, maxMove
}
