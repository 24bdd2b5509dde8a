package dataset

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/hupe1980/vecbench/internal/queue"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// SyntheticConfig describes a generated dataset.
type SyntheticConfig struct {
	Name     string
	Metric   metric.Metric
	Rows     int
	Queries  int
	Dim      int
	Clusters int
	// Spread is the standard deviation of the noise around each center.
	Spread float32
	// Width is the number of ground-truth neighbors per query.
	Width int
	Seed  int64
}

// DefaultSyntheticConfig returns a small L2 dataset suitable for smoke runs.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Name:     "synthetic",
		Metric:   metric.L2,
		Rows:     20000,
		Queries:  200,
		Dim:      64,
		Clusters: 64,
		Spread:   0.05,
		Width:    100,
		Seed:     42,
	}
}

// Synthetic draws base and query vectors around shared cluster centers and
// computes exact ground truth with kernel k, in parallel on the search pool.
func Synthetic(ctx context.Context, cfg SyntheticConfig, k metric.Kernel, ctrl *resource.Controller) (*Dataset, error) {
	if cfg.Rows <= 0 || cfg.Queries < 0 || cfg.Dim <= 0 || cfg.Clusters <= 0 || cfg.Width <= 0 {
		return nil, fmt.Errorf("dataset: invalid synthetic config %+v", cfg)
	}
	if cfg.Width > cfg.Rows {
		return nil, &precision.ShapeError{What: "ground truth width", Want: cfg.Rows, Got: cfg.Width}
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	centers := make([]float32, cfg.Clusters*cfg.Dim)
	for i := range centers {
		centers[i] = rng.Float32()
	}
	draw := func(n int) []float32 {
		data := make([]float32, n*cfg.Dim)
		for i := 0; i < n; i++ {
			c := rng.Intn(cfg.Clusters)
			for d := 0; d < cfg.Dim; d++ {
				data[i*cfg.Dim+d] = centers[c*cfg.Dim+d] + float32(rng.NormFloat64())*cfg.Spread
			}
		}
		return data
	}

	base, err := precision.NewMatrix(cfg.Rows, cfg.Dim, draw(cfg.Rows))
	if err != nil {
		return nil, err
	}
	queries, err := precision.NewMatrix(cfg.Queries, cfg.Dim, draw(cfg.Queries))
	if err != nil {
		return nil, err
	}
	gt, err := GroundTruth(ctx, base, queries, cfg.Width, cfg.Metric, k, ctrl)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Name: cfg.Name, Metric: cfg.Metric, Base: base, Queries: queries, GroundTruth: gt}
	return ds, ds.Validate()
}

// GroundTruth returns the exact width nearest base ids per query under m,
// ties broken by ascending id.
func GroundTruth(ctx context.Context, base, queries *precision.Matrix, width int, m metric.Metric, k metric.Kernel, ctrl *resource.Controller) ([][]int64, error) {
	dist, err := k.Distance(m)
	if err != nil {
		return nil, err
	}
	dim := base.Dim()
	vecs := base.Float32s()
	if m == metric.Cosine {
		vecs = append([]float32(nil), vecs...)
		for i := 0; i < base.Rows(); i++ {
			k.Normalize(vecs[i*dim : (i+1)*dim])
		}
	}

	out := make([][]int64, queries.Rows())
	err = ctrl.ParallelFor(ctx, resource.SearchPool, queries.Rows(), func(ctx context.Context, qi int) error {
		q := append([]float32(nil), queries.Row(qi, nil)...)
		if m == metric.Cosine {
			k.Normalize(q)
		}
		top := queue.NewTopK(width)
		for i := 0; i < base.Rows(); i++ {
			top.Offer(int64(i), dist(q, vecs[i*dim:(i+1)*dim]))
		}
		out[qi] = top.IDs()
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
