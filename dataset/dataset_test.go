package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecbench/codec"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
	"github.com/hupe1980/vecbench/testutil"
)

func genericKernel(t *testing.T) metric.Kernel {
	t.Helper()
	k, err := metric.Select("generic")
	require.NoError(t, err)
	return k
}

func smallConfig() SyntheticConfig {
	return SyntheticConfig{Name: "tiny", Metric: metric.L2, Rows: 500, Queries: 20, Dim: 8, Clusters: 5, Spread: 0.05, Width: 10, Seed: 7}
}

func TestSynthetic_Deterministic(t *testing.T) {
	ctx := context.Background()
	ctrl := resource.NewController(resource.Config{SearchThreads: 4})

	a, err := Synthetic(ctx, smallConfig(), genericKernel(t), ctrl)
	require.NoError(t, err)
	b, err := Synthetic(ctx, smallConfig(), genericKernel(t), nil)
	require.NoError(t, err)

	assert.Equal(t, a.Base.Float32s(), b.Base.Float32s())
	assert.Equal(t, a.GroundTruth, b.GroundTruth, "parallel ground truth matches serial")
	assert.Equal(t, 10, a.GroundTruthWidth())
	assert.Equal(t, 8, a.Dim())
}

func TestSynthetic_GroundTruthIsExact(t *testing.T) {
	ds, err := Synthetic(context.Background(), smallConfig(), genericKernel(t), nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.BruteForce(ds.Base, ds.Queries, 10, testutil.L2()), ds.GroundTruth)
}

func TestSynthetic_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Width = cfg.Rows + 1
	_, err := Synthetic(context.Background(), cfg, genericKernel(t), nil)
	assert.ErrorIs(t, err, precision.ErrShapeMismatch)

	cfg = smallConfig()
	cfg.Dim = 0
	_, err = Synthetic(context.Background(), cfg, genericKernel(t), nil)
	assert.Error(t, err)
}

func TestGroundTruth_Cosine(t *testing.T) {
	base, err := precision.NewMatrix(3, 2, []float32{10, 0, 0, 1, 1, 1})
	require.NoError(t, err)
	queries, err := precision.NewMatrix(1, 2, []float32{0.1, 0})
	require.NoError(t, err)

	gt, err := GroundTruth(context.Background(), base, queries, 3, metric.Cosine, genericKernel(t), nil)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{0, 2, 1}}, gt, "cosine ignores magnitude")
}

func TestValidate(t *testing.T) {
	base := testutil.NewRNG(1).UniformMatrix(10, 4)
	queries := testutil.NewRNG(2).UniformMatrix(2, 3)

	ds := &Dataset{Name: "bad", Base: base, Queries: queries, GroundTruth: [][]int64{{1}, {2}}}
	assert.ErrorIs(t, ds.Validate(), precision.ErrShapeMismatch)

	ds.Queries = testutil.NewRNG(2).UniformMatrix(2, 4)
	ds.GroundTruth = [][]int64{{1}}
	assert.ErrorIs(t, ds.Validate(), precision.ErrShapeMismatch)

	ds.GroundTruth = [][]int64{{1}, {}}
	assert.ErrorIs(t, ds.Validate(), ErrNoGroundTruth)

	ds.GroundTruth = [][]int64{{1}, {2}}
	assert.NoError(t, ds.Validate())
}

func TestTexmex_RoundTrip(t *testing.T) {
	m := testutil.NewRNG(3).UniformMatrix(7, 5)
	var buf bytes.Buffer
	require.NoError(t, WriteFvecs(&buf, m))
	assert.Equal(t, 7*(4+4*5), buf.Len())

	got, err := ReadFvecs(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Float32s(), got.Float32s())

	lists := [][]int64{{1, 2, 3}, {4, 5, 6}}
	buf.Reset()
	require.NoError(t, WriteIvecs(&buf, lists))
	ids, err := ReadIvecs(&buf)
	require.NoError(t, err)
	assert.Equal(t, lists, ids)
}

func TestReadBvecs(t *testing.T) {
	raw := []byte{3, 0, 0, 0, 1, 2, 255, 3, 0, 0, 0, 0, 0, 7}
	m, err := ReadBvecs(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 255, 0, 0, 7}, m.Float32s())
}

func TestReadFvecs_Malformed(t *testing.T) {
	_, err := ReadFvecs(bytes.NewReader([]byte{2, 0, 0, 0, 1, 2, 3}))
	assert.ErrorIs(t, err, ErrFormat)

	_, err = ReadFvecs(bytes.NewReader([]byte{0, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrFormat)

	var buf bytes.Buffer
	require.NoError(t, WriteFvecs(&buf, testutil.NewRNG(1).UniformMatrix(1, 2)))
	require.NoError(t, WriteFvecs(&buf, testutil.NewRNG(1).UniformMatrix(1, 3)))
	_, err = ReadFvecs(&buf)
	assert.ErrorIs(t, err, precision.ErrShapeMismatch)
}

func writeFile(t *testing.T, path string, typ codec.Type, fn func(w *bytes.Buffer) error) {
	t.Helper()
	var plain bytes.Buffer
	require.NoError(t, fn(&plain))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w, err := codec.NewWriter(typ, f)
	require.NoError(t, err)
	_, err = w.Write(plain.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	ds, err := Synthetic(context.Background(), smallConfig(), genericKernel(t), nil)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "tiny_base.fvecs.zst"), codec.Zstd, func(w *bytes.Buffer) error { return WriteFvecs(w, ds.Base) })
	writeFile(t, filepath.Join(dir, "tiny_query.fvecs.lz4"), codec.LZ4, func(w *bytes.Buffer) error { return WriteFvecs(w, ds.Queries) })
	writeFile(t, filepath.Join(dir, "tiny_groundtruth.ivecs"), codec.None, func(w *bytes.Buffer) error { return WriteIvecs(w, ds.GroundTruth) })

	got, err := Load(dir, "tiny", metric.L2)
	require.NoError(t, err)
	assert.Equal(t, ds.Base.Float32s(), got.Base.Float32s())
	assert.Equal(t, ds.Queries.Float32s(), got.Queries.Float32s())
	assert.Equal(t, ds.GroundTruth, got.GroundTruth)

	_, err = Load(dir, "missing", metric.L2)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
