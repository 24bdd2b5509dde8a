package kmeans

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/metric"
)

// ErrTooFewVectors is returned when there are fewer training vectors than clusters.
var ErrTooFewVectors = errors.New("kmeans: fewer training vectors than clusters")

// Config controls a training run.
type Config struct {
	K       int
	MaxIter int
	Seed    int64
	// Distance ranks points against centroids; lower is better.
	Distance metric.Func
	// Controller parallelizes the assignment step. Nil runs single-threaded.
	Controller *resource.Controller
}

// Train runs Lloyd's algorithm over vectors (n*dim, flattened) and returns the
// flattened centroids (K*dim). Centroids are seeded from a random sample.
func Train(ctx context.Context, vectors []float32, dim int, cfg Config) ([]float32, error) {
	n := len(vectors) / dim
	k := cfg.K
	if k <= 0 || n < k {
		return nil, ErrTooFewVectors
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 25
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	centroids := make([]float32, k*dim)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], vectors[perm[i]*dim:(perm[i]+1)*dim])
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([]float32, k*dim)

	for iter := 0; iter < cfg.MaxIter; iter++ {
		changed := make([]bool, n)

		err := cfg.Controller.ParallelChunks(ctx, resource.BuildPool, n, func(_ context.Context, lo, hi int) error {
			for i := lo; i < hi; i++ {
				best := Nearest(vectors[i*dim:(i+1)*dim], centroids, dim, cfg.Distance)
				if assignments[i] != best {
					assignments[i] = best
					changed[i] = true
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		moved := false
		for _, c := range changed {
			if c {
				moved = true
				break
			}
		}
		if !moved {
			break
		}

		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			vec := vectors[i*dim : (i+1)*dim]
			for d := 0; d < dim; d++ {
				sums[c*dim+d] += vec[d]
			}
			counts[c]++
		}

		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				scale := 1.0 / float32(counts[j])
				for d := 0; d < dim; d++ {
					centroids[j*dim+d] = sums[j*dim+d] * scale
				}
			} else {
				// Re-seed an empty cluster with a random point.
				idx := rng.Intn(n)
				copy(centroids[j*dim:(j+1)*dim], vectors[idx*dim:(idx+1)*dim])
			}
		}
	}

	return centroids, nil
}

// Nearest returns the index of the centroid closest to vec.
func Nearest(vec, centroids []float32, dim int, dist metric.Func) int {
	k := len(centroids) / dim
	best := -1
	minDist := float32(math.MaxFloat32)
	for j := 0; j < k; j++ {
		if d := dist(vec, centroids[j*dim:(j+1)*dim]); d < minDist || best < 0 {
			minDist = d
			best = j
		}
	}
	return best
}

type centroidDist struct {
	id   int
	dist float32
}

// NearestN returns the indices of the n centroids closest to query, nearest first.
func NearestN(query, centroids []float32, dim, n int, dist metric.Func) []int {
	k := len(centroids) / dim
	if n > k {
		n = k
	}
	if n <= 0 {
		return nil
	}

	dists := make([]centroidDist, k)
	for i := 0; i < k; i++ {
		dists[i] = centroidDist{id: i, dist: dist(query, centroids[i*dim:(i+1)*dim])}
	}
	sort.Slice(dists, func(i, j int) bool {
		if dists[i].dist != dists[j].dist {
			return dists[i].dist < dists[j].dist
		}
		return dists[i].id < dists[j].id
	})

	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = dists[i].id
	}
	return out
}
