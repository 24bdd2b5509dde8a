package testutil

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// RNG is a seeded, goroutine-safe random source.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed)), seed: seed}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 { return r.seed }

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with values in [0,1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformMatrix returns num × dim values in [0,1).
func (r *RNG) UniformMatrix(num, dim int) *precision.Matrix {
	data := make([]float32, num*dim)
	r.FillUniform(data)
	m, _ := precision.NewMatrix(num, dim, data)
	return m
}

// ClusteredMatrix returns num × dim vectors drawn around `clusters` uniform
// centers with gaussian noise of the given spread.
func (r *RNG) ClusteredMatrix(num, dim, clusters int, spread float32) *precision.Matrix {
	r.mu.Lock()
	defer r.mu.Unlock()

	centers := make([]float32, clusters*dim)
	for i := range centers {
		centers[i] = r.rand.Float32()
	}
	data := make([]float32, num*dim)
	for i := 0; i < num; i++ {
		c := r.rand.Intn(clusters)
		for d := 0; d < dim; d++ {
			data[i*dim+d] = centers[c*dim+d] + float32(r.rand.NormFloat64())*spread
		}
	}
	m, _ := precision.NewMatrix(num, dim, data)
	return m
}

// BruteForce returns the exact k nearest base ids for every query under dist.
// Ties are broken by ascending id.
func BruteForce(base, queries *precision.Matrix, k int, dist metric.Func) [][]int64 {
	out := make([][]int64, queries.Rows())
	type cand struct {
		id int64
		d  float32
	}
	for qi := 0; qi < queries.Rows(); qi++ {
		q := queries.Row(qi, nil)
		cands := make([]cand, base.Rows())
		var buf []float32
		for i := 0; i < base.Rows(); i++ {
			buf = base.Row(i, buf)
			cands[i] = cand{id: int64(i), d: dist(q, buf)}
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].d != cands[b].d {
				return cands[a].d < cands[b].d
			}
			return cands[a].id < cands[b].id
		})
		n := min(k, len(cands))
		ids := make([]int64, n)
		for i := 0; i < n; i++ {
			ids[i] = cands[i].id
		}
		out[qi] = ids
	}
	return out
}

// Recall returns the fraction of truth ids found in got, per-query sets.
func Recall(got, truth [][]int64) float64 {
	hits, total := 0, 0
	for i := range truth {
		set := make(map[int64]struct{}, len(truth[i]))
		for _, id := range truth[i] {
			set[id] = struct{}{}
		}
		for _, id := range got[i] {
			if _, ok := set[id]; ok {
				hits++
				delete(set, id)
			}
		}
		total += len(truth[i])
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// L2 returns the generic squared-L2 distance.
func L2() metric.Func {
	k, _ := metric.Select("generic")
	fn, _ := k.Distance(metric.L2)
	return fn
}
