package diskann

import (
	"context"
	"math/rand"
	"sort"

	"github.com/hupe1980/vecbench/internal/queue"
	"github.com/hupe1980/vecbench/internal/visited"
	"github.com/hupe1980/vecbench/metric"
)

// alpha is the pruning factor of the second Vamana pass.
const alpha = 1.2

// builder holds the in-memory graph during construction.
type builder struct {
	vecs  []float32
	dim   int
	n     int
	r     int
	l     int
	dist  metric.Func
	graph [][]uint32
	seen  *visited.Set
}

func newBuilder(vecs []float32, dim, r, l int, dist metric.Func) *builder {
	n := len(vecs) / dim
	return &builder{vecs: vecs, dim: dim, n: n, r: r, l: l, dist: dist, graph: make([][]uint32, n), seen: visited.New(n)}
}

func (b *builder) vec(id uint32) []float32 {
	return b.vecs[int(id)*b.dim : (int(id)+1)*b.dim]
}

// build runs two Vamana passes (alpha 1, then alpha) from a random
// R/2-regular start and returns the medoid entry point.
func (b *builder) build(ctx context.Context, seed int64) (uint32, error) {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < b.n; i++ {
		want := min(b.r/2, b.n-1)
		edges := make(map[uint32]struct{}, want)
		for len(edges) < want {
			if j := uint32(rng.Intn(b.n)); j != uint32(i) {
				edges[j] = struct{}{}
			}
		}
		b.graph[i] = make([]uint32, 0, b.r)
		for j := range edges {
			b.graph[i] = append(b.graph[i], j)
		}
		sort.Slice(b.graph[i], func(x, y int) bool { return b.graph[i][x] < b.graph[i][y] })
	}

	entry := b.medoid()
	for _, a := range []float32{1, alpha} {
		for _, i := range rng.Perm(b.n) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			id := uint32(i)
			visitedNodes := b.greedySearch(entry, b.vec(id))
			b.graph[id] = b.robustPrune(id, append(visitedNodes, b.graph[id]...), a)
			for _, nb := range b.graph[id] {
				b.addEdge(nb, id, a)
			}
		}
	}
	return entry, nil
}

// medoid returns the node nearest the centroid.
func (b *builder) medoid() uint32 {
	centroid := make([]float32, b.dim)
	for i := 0; i < b.n; i++ {
		for d, v := range b.vec(uint32(i)) {
			centroid[d] += v
		}
	}
	for d := range centroid {
		centroid[d] /= float32(b.n)
	}
	best, bestDist := uint32(0), b.dist(centroid, b.vec(0))
	for i := 1; i < b.n; i++ {
		if d := b.dist(centroid, b.vec(uint32(i))); d < bestDist {
			best, bestDist = uint32(i), d
		}
	}
	return best
}

// greedySearch walks from entry towards target with a list of size L and
// returns every node it expanded.
func (b *builder) greedySearch(entry uint32, target []float32) []uint32 {
	b.seen.Reset()
	list := []queue.Item{{ID: int64(entry), Distance: b.dist(target, b.vec(entry))}}
	b.seen.Visit(entry)
	expanded := make(map[int64]bool)
	var out []uint32

	for {
		next := -1
		for i, c := range list {
			if !expanded[c.ID] {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		cur := list[next]
		expanded[cur.ID] = true
		out = append(out, uint32(cur.ID))

		for _, nb := range b.graph[cur.ID] {
			if !b.seen.Visit(nb) {
				continue
			}
			list = insertSorted(list, queue.Item{ID: int64(nb), Distance: b.dist(target, b.vec(nb))}, b.l)
		}
	}
	return out
}

// robustPrune keeps at most R candidates, dropping any candidate that an
// already kept neighbor covers within factor a.
func (b *builder) robustPrune(node uint32, candidates []uint32, a float32) []uint32 {
	base := b.vec(node)
	seen := make(map[uint32]bool, len(candidates))
	cands := make([]queue.Item, 0, len(candidates))
	for _, c := range candidates {
		if c == node || seen[c] {
			continue
		}
		seen[c] = true
		cands = append(cands, queue.Item{ID: int64(c), Distance: b.dist(base, b.vec(c))})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Distance != cands[j].Distance {
			return cands[i].Distance < cands[j].Distance
		}
		return cands[i].ID < cands[j].ID
	})

	selected := make([]uint32, 0, b.r)
	for _, c := range cands {
		if len(selected) >= b.r {
			break
		}
		diverse := true
		for _, s := range selected {
			if a*b.dist(b.vec(uint32(c.ID)), b.vec(s)) <= c.Distance {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, uint32(c.ID))
		}
	}
	return selected
}

// addEdge adds src → dst, pruning src when it exceeds R.
func (b *builder) addEdge(src, dst uint32, a float32) {
	for _, nb := range b.graph[src] {
		if nb == dst {
			return
		}
	}
	if len(b.graph[src]) < b.r {
		b.graph[src] = append(b.graph[src], dst)
		return
	}
	cands := append(append([]uint32(nil), b.graph[src]...), dst)
	b.graph[src] = b.robustPrune(src, cands, a)
}

// insertSorted inserts it into list (ascending by distance, ties by id),
// keeping at most limit entries.
func insertSorted(list []queue.Item, it queue.Item, limit int) []queue.Item {
	pos := sort.Search(len(list), func(i int) bool {
		if list[i].Distance != it.Distance {
			return list[i].Distance > it.Distance
		}
		return list[i].ID > it.ID
	})
	if pos >= limit {
		return list
	}
	list = append(list, queue.Item{})
	copy(list[pos+1:], list[pos:])
	list[pos] = it
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}
