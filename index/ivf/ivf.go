package ivf

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/kmeans"
	"github.com/hupe1980/vecbench/internal/quantization"
	"github.com/hupe1980/vecbench/internal/queue"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// Variant selects how list entries are stored.
type Variant uint32

const (
	Flat Variant = iota
	SQ8
	PQ
)

// Registry names of the variants.
const (
	NameFlat = "IVF_FLAT"
	NameSQ8  = "IVF_SQ8"
	NamePQ   = "IVF_PQ"
)

const (
	blobName = "ivf"

	// maxPointsPerCentroid caps the k-means training sample.
	maxPointsPerCentroid = 256
	trainSeed            = 1234
)

var (
	errBuilt    = errors.New("ivf: index already populated")
	errNotBuilt = errors.New("ivf: index is empty")
)

// Compile-time check to ensure IVF satisfies index.Index.
var _ index.Index = (*IVF)(nil)

// IVF is an inverted-file index over one Variant.
type IVF struct {
	env     index.Env
	variant Variant
	dist    metric.Func

	dim       int
	nlist     int
	centroids []float32

	ids  [][]int64
	vecs []*precision.Matrix // Flat
	code [][]byte            // SQ8 and PQ, concatenated per list
	sq   *quantization.ScalarQuantizer
	pq   *quantization.ProductQuantizer
}

// Factory returns an index.Factory for v.
func Factory(v Variant) index.Factory {
	return func(env index.Env) (index.Index, error) {
		dist, err := env.Distance()
		if err != nil {
			return nil, err
		}
		return &IVF{env: env, variant: v, dist: dist}, nil
	}
}

// Register adds all three variants to r.
func Register(r *index.Registry) {
	r.Register(NameFlat, Factory(Flat))
	r.Register(NameSQ8, Factory(SQ8))
	r.Register(NamePQ, Factory(PQ))
}

// Build implements index.Index.
func (ivf *IVF) Build(ctx context.Context, base *precision.Matrix, params index.Params) error {
	if ivf.centroids != nil {
		return errBuilt
	}
	if base.Rows() == 0 {
		return index.ErrEmptyBase
	}
	nlist, err := params.Require("nlist", 1)
	if err != nil {
		return err
	}
	if nlist > base.Rows() {
		return fmt.Errorf("ivf: nlist=%d exceeds %d base vectors", nlist, base.Rows())
	}

	prepared, err := ivf.env.Prepare(base)
	if err != nil {
		return err
	}
	vectors := prepared.Float32s()
	ivf.dim = base.Dim()
	ivf.nlist = nlist

	log := ivf.env.Log()
	log.Debug("ivf: training coarse quantizer", "family", ivf.env.Family, "nlist", nlist, "rows", base.Rows())

	ivf.centroids, err = kmeans.Train(ctx, sample(vectors, ivf.dim, nlist*maxPointsPerCentroid), ivf.dim, kmeans.Config{
		K:          nlist,
		MaxIter:    20,
		Seed:       trainSeed,
		Distance:   ivf.env.Kernel.SquaredL2,
		Controller: ivf.env.Controller,
	})
	if err != nil {
		return fmt.Errorf("ivf: train coarse quantizer: %w", err)
	}

	if err := ivf.trainCodec(ctx, vectors, params); err != nil {
		return err
	}

	assign := make([]int, prepared.Rows())
	err = ivf.env.Controller.ParallelChunks(ctx, resource.BuildPool, prepared.Rows(), func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			assign[i] = kmeans.Nearest(vectors[i*ivf.dim:(i+1)*ivf.dim], ivf.centroids, ivf.dim, ivf.dist)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ivf.ids = make([][]int64, nlist)
	for i, l := range assign {
		ivf.ids[l] = append(ivf.ids[l], int64(i))
	}
	return ivf.fillLists(vectors)
}

func (ivf *IVF) trainCodec(ctx context.Context, vectors []float32, params index.Params) error {
	switch ivf.variant {
	case SQ8:
		ivf.sq = quantization.NewScalarQuantizer(ivf.dim)
		return ivf.sq.Train(vectors)
	case PQ:
		m, err := params.Require("m", 1)
		if err != nil {
			return err
		}
		pq, err := quantization.NewProductQuantizer(ivf.dim, m, params.Get("nbits", 8))
		if err != nil {
			return err
		}
		if err := pq.Train(ctx, sample(vectors, ivf.dim, 64*1024), ivf.env.Controller, trainSeed); err != nil {
			return fmt.Errorf("ivf: train product quantizer: %w", err)
		}
		ivf.pq = pq
	}
	return nil
}

func (ivf *IVF) fillLists(vectors []float32) error {
	switch ivf.variant {
	case Flat:
		ivf.vecs = make([]*precision.Matrix, ivf.nlist)
		for l, ids := range ivf.ids {
			data := make([]float32, 0, len(ids)*ivf.dim)
			for _, id := range ids {
				data = append(data, vectors[int(id)*ivf.dim:(int(id)+1)*ivf.dim]...)
			}
			m, err := precision.NewMatrix(len(ids), ivf.dim, data)
			if err != nil {
				return err
			}
			// Values already carry the instance precision, so this is exact.
			if ivf.vecs[l], err = precision.Convert(m, ivf.env.Precision); err != nil {
				return err
			}
		}
	case SQ8, PQ:
		size := ivf.codeSize()
		ivf.code = make([][]byte, ivf.nlist)
		for l, ids := range ivf.ids {
			buf := make([]byte, 0, len(ids)*size)
			for _, id := range ids {
				v := vectors[int(id)*ivf.dim : (int(id)+1)*ivf.dim]
				if ivf.variant == SQ8 {
					buf = append(buf, ivf.sq.Encode(v, nil)...)
				} else {
					buf = append(buf, ivf.pq.Encode(v, nil, ivf.env.Kernel.SquaredL2)...)
				}
			}
			ivf.code[l] = buf
		}
	}
	return nil
}

func (ivf *IVF) codeSize() int {
	if ivf.variant == PQ {
		return ivf.pq.M()
	}
	return ivf.dim
}

// Search implements index.Index.
func (ivf *IVF) Search(ctx context.Context, queries *precision.Matrix, k int, params index.Params) ([][]int64, error) {
	if ivf.centroids == nil {
		return nil, errNotBuilt
	}
	nprobe := min(max(params.Get("nprobe", 1), 1), ivf.nlist)

	return ivf.env.SearchEach(ctx, queries, func(q []float32) ([]int64, error) {
		tk := queue.NewTopK(k)
		var table []float32
		if ivf.variant == PQ {
			table = ivf.pq.DistanceTable(q, ivf.env.Metric, ivf.env.Kernel)
		}
		buf := make([]float32, ivf.dim)
		for _, l := range kmeans.NearestN(q, ivf.centroids, ivf.dim, nprobe, ivf.dist) {
			ivf.scanList(l, q, table, buf, tk)
		}
		return tk.IDs(), nil
	})
}

func (ivf *IVF) scanList(l int, q, table, buf []float32, tk *queue.TopK) {
	ids := ivf.ids[l]
	switch ivf.variant {
	case Flat:
		m := ivf.vecs[l]
		for j, id := range ids {
			buf = m.Row(j, buf)
			tk.Offer(id, ivf.dist(q, buf))
		}
	case SQ8:
		codes := ivf.code[l]
		for j, id := range ids {
			buf = ivf.sq.Decode(codes[j*ivf.dim:(j+1)*ivf.dim], buf)
			tk.Offer(id, ivf.dist(q, buf))
		}
	case PQ:
		m := ivf.pq.M()
		codes := ivf.code[l]
		for j, id := range ids {
			tk.Offer(id, ivf.pq.ADC(table, codes[j*m:(j+1)*m]))
		}
	}
}

// sample returns up to n rows of vectors drawn without replacement.
func sample(vectors []float32, dim, n int) []float32 {
	rows := len(vectors) / dim
	if rows <= n {
		return vectors
	}
	rng := rand.New(rand.NewSource(trainSeed))
	out := make([]float32, 0, n*dim)
	for _, i := range rng.Perm(rows)[:n] {
		out = append(out, vectors[i*dim:(i+1)*dim]...)
	}
	return out
}

// Close implements index.Index.
func (ivf *IVF) Close() error {
	ivf.centroids = nil
	ivf.ids = nil
	ivf.vecs = nil
	ivf.code = nil
	return nil
}
