package hnsw

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/queue"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/internal/visited"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// Name is the registry name of the family.
const Name = "HNSW"

const levelSeed = 42

const defaultEfConstruction = 200

var (
	errBuilt    = errors.New("hnsw: index already populated")
	errNotBuilt = errors.New("hnsw: index is empty")
)

// Compile-time check to ensure HNSW satisfies index.Index.
var _ index.Index = (*HNSW)(nil)

// HNSW is a hierarchical navigable small-world graph.
type HNSW struct {
	env  index.Env
	dist metric.Func

	data *precision.Matrix
	vecs []float32
	dim  int

	m              int
	efConstruction int

	levels   []uint8
	links    [][][]uint32 // node → level → neighbors
	locks    []sync.Mutex
	entry    atomic.Uint32
	maxLevel atomic.Int32
	epMu     sync.Mutex

	visited *visited.Pool
}

// New returns an empty HNSW bound to env.
func New(env index.Env) (index.Index, error) {
	dist, err := env.Distance()
	if err != nil {
		return nil, err
	}
	return &HNSW{env: env, dist: dist}, nil
}

// Register adds the family to r.
func Register(r *index.Registry) { r.Register(Name, New) }

func (h *HNSW) vec(id uint32) []float32 {
	return h.vecs[int(id)*h.dim : (int(id)+1)*h.dim]
}

func (h *HNSW) maxConns(level int) int {
	if level == 0 {
		return 2 * h.m
	}
	return h.m
}

// Build implements index.Index.
func (h *HNSW) Build(ctx context.Context, base *precision.Matrix, params index.Params) error {
	if h.data != nil {
		return errBuilt
	}
	if base.Rows() == 0 {
		return index.ErrEmptyBase
	}
	m, err := params.Require("M", 2)
	if err != nil {
		return err
	}
	efc := params.Get("efConstruction", defaultEfConstruction)
	if efc < 1 {
		return &index.ParamError{Name: "efConstruction", Value: efc, Reason: "must be >= 1"}
	}

	data, err := h.env.Prepare(base)
	if err != nil {
		return err
	}
	h.init(data, m, efc)
	n := data.Rows()

	// Levels are drawn up front so the layer layout is reproducible.
	rng := rand.New(rand.NewSource(levelSeed))
	mult := 1 / math.Log(float64(m))
	for i := range h.levels {
		l := int(math.Floor(-math.Log(1-rng.Float64()) * mult))
		h.levels[i] = uint8(min(l, math.MaxUint8))
		h.links[i] = make([][]uint32, h.levels[i]+1)
	}
	h.entry.Store(0)
	h.maxLevel.Store(int32(h.levels[0]))

	log := h.env.Log()
	progress := rate.Sometimes{Interval: 5 * time.Second}
	var inserted atomic.Int64

	err = h.env.Controller.ParallelChunks(ctx, resource.BuildPool, n-1, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			h.insert(uint32(i + 1))
			done := inserted.Add(1)
			progress.Do(func() {
				log.Info("hnsw: build progress", "family", h.env.Family, "inserted", done, "total", n)
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Debug("hnsw: build done", "family", h.env.Family, "nodes", n, "maxLevel", h.maxLevel.Load())
	return nil
}

func (h *HNSW) init(data *precision.Matrix, m, efc int) {
	n := data.Rows()
	h.data = data
	h.vecs = data.Float32s()
	h.dim = data.Dim()
	h.m = m
	h.efConstruction = efc
	h.levels = make([]uint8, n)
	h.links = make([][][]uint32, n)
	h.locks = make([]sync.Mutex, n)
	h.visited = visited.NewPool(n)
}

func (h *HNSW) neighbors(id uint32, level int) []uint32 {
	h.locks[id].Lock()
	defer h.locks[id].Unlock()
	if level >= len(h.links[id]) {
		return nil
	}
	out := make([]uint32, len(h.links[id][level]))
	copy(out, h.links[id][level])
	return out
}

func (h *HNSW) insert(id uint32) {
	q := h.vec(id)
	layer := int(h.levels[id])

	h.epMu.Lock()
	ep := h.entry.Load()
	maxLevel := int(h.maxLevel.Load())
	h.epMu.Unlock()

	cur, curDist := h.greedy(q, ep, h.dist(q, h.vec(ep)), maxLevel, layer)

	for level := min(layer, maxLevel); level >= 0; level-- {
		cands := h.searchLayer(q, cur, curDist, level, h.efConstruction)
		if len(cands) > 0 {
			cur, curDist = uint32(cands[0].ID), cands[0].Distance
		}
		selected := h.selectNeighbors(cands, h.maxConns(level), id)

		h.locks[id].Lock()
		h.links[id][level] = selected
		h.locks[id].Unlock()

		for _, nb := range selected {
			h.addLink(nb, id, level)
		}
	}

	if layer > maxLevel {
		h.epMu.Lock()
		if layer > int(h.maxLevel.Load()) {
			h.maxLevel.Store(int32(layer))
			h.entry.Store(id)
		}
		h.epMu.Unlock()
	}
}

// greedy descends from level `from` to just above level `to`, moving to the
// closest neighbor until no improvement is found.
func (h *HNSW) greedy(q []float32, cur uint32, curDist float32, from, to int) (uint32, float32) {
	for level := from; level > to; level-- {
		for changed := true; changed; {
			changed = false
			for _, nb := range h.neighbors(cur, level) {
				if d := h.dist(q, h.vec(nb)); d < curDist {
					cur, curDist = nb, d
					changed = true
				}
			}
		}
	}
	return cur, curDist
}

// searchLayer returns up to ef candidates at level, nearest first.
func (h *HNSW) searchLayer(q []float32, ep uint32, epDist float32, level, ef int) []queue.Item {
	seen := h.visited.Get()
	defer h.visited.Put(seen)

	candidates := queue.NewMin(ef)
	results := queue.NewMax(ef + 1)

	seen.Visit(ep)
	candidates.Push(queue.Item{ID: int64(ep), Distance: epDist})
	results.Push(queue.Item{ID: int64(ep), Distance: epDist})

	for candidates.Len() > 0 {
		cur, _ := candidates.Pop()
		if worst, _ := results.Top(); cur.Distance > worst.Distance && results.Len() >= ef {
			break
		}
		for _, nb := range h.neighbors(uint32(cur.ID), level) {
			if !seen.Visit(nb) {
				continue
			}
			d := h.dist(q, h.vec(nb))
			if worst, _ := results.Top(); results.Len() >= ef && d > worst.Distance {
				continue
			}
			candidates.Push(queue.Item{ID: int64(nb), Distance: d})
			results.Push(queue.Item{ID: int64(nb), Distance: d})
			if results.Len() > ef {
				results.Pop()
			}
		}
	}

	out := make([]queue.Item, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = results.Pop()
	}
	return out
}

// selectNeighbors applies the diversity heuristic to candidates sorted
// nearest first: a candidate is kept only if it is closer to the base node
// than to every neighbor already kept. Remaining slots are backfilled.
func (h *HNSW) selectNeighbors(cands []queue.Item, m int, self uint32) []uint32 {
	result := make([]uint32, 0, m)
	skipped := make([]uint32, 0, len(cands))
	for _, c := range cands {
		id := uint32(c.ID)
		if id == self {
			continue
		}
		if len(result) >= m {
			break
		}
		good := true
		for _, r := range result {
			if h.dist(h.vec(id), h.vec(r)) < c.Distance {
				good = false
				break
			}
		}
		if good {
			result = append(result, id)
		} else {
			skipped = append(skipped, id)
		}
	}
	for _, id := range skipped {
		if len(result) >= m {
			break
		}
		result = append(result, id)
	}
	return result
}

// addLink adds the edge src → dst, re-pruning src's list when it overflows.
func (h *HNSW) addLink(src, dst uint32, level int) {
	h.locks[src].Lock()
	defer h.locks[src].Unlock()
	if level >= len(h.links[src]) {
		return
	}
	links := h.links[src][level]
	for _, l := range links {
		if l == dst {
			return
		}
	}
	links = append(links, dst)
	if limit := h.maxConns(level); len(links) > limit {
		base := h.vec(src)
		cands := make([]queue.Item, len(links))
		for i, l := range links {
			cands[i] = queue.Item{ID: int64(l), Distance: h.dist(base, h.vec(l))}
		}
		sortItems(cands)
		links = h.selectNeighbors(cands, limit, src)
	}
	h.links[src][level] = links
}

// Search implements index.Index.
func (h *HNSW) Search(ctx context.Context, queries *precision.Matrix, k int, params index.Params) ([][]int64, error) {
	if h.data == nil {
		return nil, errNotBuilt
	}
	ef := max(params.Get("ef", k), k)
	ep := h.entry.Load()
	maxLevel := int(h.maxLevel.Load())

	return h.env.SearchEach(ctx, queries, func(q []float32) ([]int64, error) {
		cur, curDist := h.greedy(q, ep, h.dist(q, h.vec(ep)), maxLevel, 0)
		res := h.searchLayer(q, cur, curDist, 0, ef)
		n := min(k, len(res))
		ids := make([]int64, n)
		for i := 0; i < n; i++ {
			ids[i] = res[i].ID
		}
		return ids, nil
	})
}

// Close implements index.Index.
func (h *HNSW) Close() error {
	h.data = nil
	h.vecs = nil
	h.links = nil
	h.locks = nil
	return nil
}

func sortItems(items []queue.Item) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func less(a, b queue.Item) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}
