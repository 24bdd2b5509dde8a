package ivf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
	"github.com/hupe1980/vecbench/testutil"
)

func newIndex(t *testing.T, name string, m metric.Metric, typ precision.Type) index.Index {
	t.Helper()
	r := index.NewRegistry()
	Register(r)

	k, err := metric.Select("generic")
	require.NoError(t, err)
	idx, err := r.New(name, index.Env{
		Metric:     m,
		Precision:  typ,
		Kernel:     k,
		Controller: resource.NewController(resource.Config{BuildThreads: 2, SearchThreads: 2}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

type fixture struct {
	base, queries *precision.Matrix
	truth         [][]int64
}

func newFixture() fixture {
	rng := testutil.NewRNG(11)
	base := rng.ClusteredMatrix(2000, 16, 20, 0.05)
	queries := rng.ClusteredMatrix(25, 16, 20, 0.05)
	return fixture{base: base, queries: queries, truth: testutil.BruteForce(base, queries, 10, testutil.L2())}
}

func TestIVF_Recall(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	tests := []struct {
		name      string
		build     index.Params
		minRecall float64
	}{
		{NameFlat, index.Params{"nlist": 16}, 1.0},
		{NameSQ8, index.Params{"nlist": 16}, 0.8},
		{NamePQ, index.Params{"nlist": 16, "m": 8, "nbits": 8}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := newIndex(t, tt.name, metric.L2, precision.Float32)
			require.NoError(t, idx.Build(ctx, fx.base, tt.build))

			got, err := idx.Search(ctx, fx.queries, 10, index.Params{"nprobe": 16})
			require.NoError(t, err)
			require.Len(t, got, 25)
			assert.GreaterOrEqual(t, testutil.Recall(got, fx.truth), tt.minRecall)
		})
	}
}

func TestIVF_RecallGrowsWithNProbe(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	idx := newIndex(t, NameFlat, metric.L2, precision.Float32)
	require.NoError(t, idx.Build(ctx, fx.base, index.Params{"nlist": 32}))

	prev := -1.0
	for _, nprobe := range []int{1, 2, 4, 8, 16, 32} {
		got, err := idx.Search(ctx, fx.queries, 10, index.Params{"nprobe": nprobe})
		require.NoError(t, err)
		r := testutil.Recall(got, fx.truth)
		assert.GreaterOrEqual(t, r, prev, "nprobe=%d", nprobe)
		prev = r
	}
	assert.Equal(t, 1.0, prev)
}

func TestIVF_BuildErrors(t *testing.T) {
	ctx := context.Background()
	base := testutil.NewRNG(1).UniformMatrix(10, 4)

	idx := newIndex(t, NameFlat, metric.L2, precision.Float32)
	var pe *index.ParamError
	assert.ErrorAs(t, idx.Build(ctx, base, index.Params{}), &pe)

	idx = newIndex(t, NameFlat, metric.L2, precision.Float32)
	assert.Error(t, idx.Build(ctx, base, index.Params{"nlist": 11}))

	idx = newIndex(t, NamePQ, metric.L2, precision.Float32)
	assert.Error(t, idx.Build(ctx, base, index.Params{"nlist": 2, "m": 3}), "dim 4 is not divisible by m=3")

	idx = newIndex(t, NameFlat, metric.L2, precision.Float32)
	_, err := idx.Search(ctx, base, 1, nil)
	assert.Error(t, err)
}

func TestIVF_SerializeRoundTrip(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(21)
	base := rng.ClusteredMatrix(600, 8, 6, 0.05)
	queries := rng.UniformMatrix(8, 8)

	tests := []struct {
		name  string
		typ   precision.Type
		build index.Params
	}{
		{NameFlat, precision.Float16, index.Params{"nlist": 8}},
		{NameSQ8, precision.BFloat16, index.Params{"nlist": 8}},
		{NamePQ, precision.Float32, index.Params{"nlist": 8, "m": 4, "nbits": 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := precision.Convert(base, tt.typ)
			require.NoError(t, err)
			q, err := precision.Convert(queries, tt.typ)
			require.NoError(t, err)

			a := newIndex(t, tt.name, metric.IP, tt.typ)
			require.NoError(t, a.Build(ctx, b, tt.build))
			want, err := a.Search(ctx, q, 5, index.Params{"nprobe": 3})
			require.NoError(t, err)

			set, err := a.Serialize()
			require.NoError(t, err)

			restored := newIndex(t, tt.name, metric.IP, tt.typ)
			require.NoError(t, restored.Deserialize(set, tt.build))
			got, err := restored.Search(ctx, q, 5, index.Params{"nprobe": 3})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestIVF_DeserializeRejectsOtherVariant(t *testing.T) {
	ctx := context.Background()
	base := testutil.NewRNG(2).UniformMatrix(50, 4)

	a := newIndex(t, NameFlat, metric.L2, precision.Float32)
	require.NoError(t, a.Build(ctx, base, index.Params{"nlist": 2}))
	set, err := a.Serialize()
	require.NoError(t, err)

	b := newIndex(t, NameSQ8, metric.L2, precision.Float32)
	assert.Error(t, b.Deserialize(set, nil))
}
