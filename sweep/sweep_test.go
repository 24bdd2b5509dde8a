package sweep

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecbench/blobstore"
	"github.com/hupe1980/vecbench/codec"
	"github.com/hupe1980/vecbench/dataset"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/index/families"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/lifecycle"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
	"github.com/hupe1980/vecbench/report"
	"github.com/hupe1980/vecbench/testutil"
)

func TestGrid_Combinations(t *testing.T) {
	g := Grid{
		{Name: "a", Values: []int{1, 2}},
		{Name: "b", Values: []int{10, 20, 30}},
	}
	assert.Equal(t, 6, g.Size())
	assert.Equal(t, []string{"a", "b"}, g.Names())
	assert.Equal(t, []index.Params{
		{"a": 1, "b": 10}, {"a": 1, "b": 20}, {"a": 1, "b": 30},
		{"a": 2, "b": 10}, {"a": 2, "b": 20}, {"a": 2, "b": 30},
	}, g.Combinations())
	assert.Equal(t, g.Combinations(), g.Combinations())
}

func TestGrid_EdgeCases(t *testing.T) {
	assert.Equal(t, []index.Params{{}}, Grid{}.Combinations())
	assert.Empty(t, Grid{{Name: "a", Values: []int{1}}, {Name: "b"}}.Combinations())
	assert.Equal(t, 0, Grid{{Name: "b"}}.Size())
}

// fakeLog is shared by every fake instance of one registry.
type fakeLog struct {
	builds   []index.Params
	searches []string
	restores int
	onSearch func()
}

type fakeIndex struct {
	log      *fakeLog
	truth    [][]int64
	built    bool
	restored bool
}

func (f *fakeIndex) Build(_ context.Context, _ *precision.Matrix, params index.Params) error {
	f.log.builds = append(f.log.builds, params)
	if params["fail"] == 1 {
		return errors.New("fake: build failed")
	}
	f.built = true
	return nil
}

func (f *fakeIndex) Search(_ context.Context, q *precision.Matrix, k int, params index.Params) ([][]int64, error) {
	f.log.searches = append(f.log.searches, params.String())
	if f.log.onSearch != nil {
		f.log.onSearch()
	}
	if f.restored && params["explode"] == 1 {
		return nil, errors.New("fake: lost state")
	}
	out := make([][]int64, q.Rows())
	for i := range out {
		out[i] = f.truth[i][:min(k, len(f.truth[i]))]
	}
	return out, nil
}

func (f *fakeIndex) Serialize() (index.BinarySet, error) {
	return index.BinarySet{"fake": []byte("state")}, nil
}

func (f *fakeIndex) Deserialize(set index.BinarySet, _ index.Params) error {
	if _, err := set.Blob("fake"); err != nil {
		return err
	}
	f.log.restores++
	f.built, f.restored = true, true
	return nil
}

func (f *fakeIndex) Close() error { return nil }

type fixture struct {
	ds    *dataset.Dataset
	reg   *index.Registry
	log   *fakeLog
	rec   *report.Recorder
	store blobstore.BlobStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rng := testutil.NewRNG(11)
	base := rng.UniformMatrix(200, 4)
	queries := rng.UniformMatrix(8, 4)
	truth := testutil.BruteForce(base, queries, 10, testutil.L2())

	log := &fakeLog{}
	reg := families.Default()
	reg.Register("FAKE", func(index.Env) (index.Index, error) {
		return &fakeIndex{log: log, truth: truth}, nil
	})
	return &fixture{
		ds: &dataset.Dataset{
			Name:        "toy",
			Metric:      metric.L2,
			Base:        base,
			Queries:     queries,
			GroundTruth: truth,
		},
		reg: reg,
		log: log,
		rec:   &report.Recorder{},
		store: blobstore.NewMemoryStore(),
	}
}

func (f *fixture) driver(t *testing.T, nqs, ks []int) *Driver {
	t.Helper()
	kernel, err := metric.Select("generic")
	require.NoError(t, err)
	ctrl := resource.NewController(resource.Config{BuildThreads: 2, SearchThreads: 2})
	mgr, err := lifecycle.NewManager(lifecycle.Config{
		Registry:   f.reg,
		Metric:     f.ds.Metric,
		Kernel:     kernel,
		Controller: ctrl,
		WorkDir:    t.TempDir(),
		Store:      f.store,
		Codec:      codec.Zstd,
	})
	require.NoError(t, err)
	d, err := New(Config{
		Registry:   f.reg,
		Manager:    mgr,
		Controller: ctrl,
		Dataset:    f.ds,
		NQs:        nqs,
		Ks:         ks,
		Sink:       f.rec,
	})
	require.NoError(t, err)
	return d
}

func TestDriver_OneBuildPerBuildCombination(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, []int{8}, []int{5})

	err := d.Run(context.Background(), Plan{
		Family:     "FAKE",
		Precisions: []precision.Type{precision.Float32},
		Fixed:      index.Params{"seed": 1},
		Build:      Grid{{Name: "nlist", Values: []int{4, 8}}},
		Search:     Grid{{Name: "nprobe", Values: []int{1, 2, 3}}},
	})
	require.NoError(t, err)

	assert.Equal(t, []index.Params{{"seed": 1, "nlist": 4}, {"seed": 1, "nlist": 8}}, f.log.builds)
	assert.Equal(t, []string{
		"nlist=4,nprobe=1,seed=1", "nlist=4,nprobe=2,seed=1", "nlist=4,nprobe=3,seed=1",
		"nlist=8,nprobe=1,seed=1", "nlist=8,nprobe=2,seed=1", "nlist=8,nprobe=3,seed=1",
	}, f.log.searches)

	require.Len(t, f.rec.Rows, 6)
	require.Len(t, f.rec.Headers, 2)
	assert.Equal(t, 2, f.rec.Ended)
	for i, row := range f.rec.Rows {
		assert.Equal(t, index.Params{"nprobe": i%3 + 1}, row.Search)
		assert.Equal(t, 8, row.NQ)
		assert.Equal(t, 5, row.K)
		assert.InDelta(t, 1.0, row.Recall, 1e-9)
		assert.NoError(t, row.Err)
	}
}

func TestDriver_LeafOrder(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, []int{4, 8}, []int{1, 10})

	err := d.Run(context.Background(), Plan{
		Family:     "FAKE",
		Precisions: []precision.Type{precision.Float16, precision.BFloat16},
		Search:     Grid{{Name: "ef", Values: []int{16, 32}}},
	})
	require.NoError(t, err)

	require.Len(t, f.rec.Rows, 2*2*2*2)
	type leaf struct {
		typ       precision.Type
		ef, nq, k int
	}
	var got []leaf
	for _, r := range f.rec.Rows {
		got = append(got, leaf{r.Precision, r.Search["ef"], r.NQ, r.K})
	}
	assert.Equal(t, leaf{precision.Float16, 16, 4, 1}, got[0])
	assert.Equal(t, leaf{precision.Float16, 16, 4, 10}, got[1])
	assert.Equal(t, leaf{precision.Float16, 16, 8, 1}, got[2])
	assert.Equal(t, leaf{precision.Float16, 32, 4, 1}, got[4])
	assert.Equal(t, leaf{precision.BFloat16, 16, 4, 1}, got[8])
	assert.Len(t, f.log.builds, 2)
}

func TestDriver_EmptyAxis(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, []int{8}, []int{5})

	err := d.Run(context.Background(),
		Plan{
			Family:     "FAKE",
			Precisions: []precision.Type{precision.Float32},
			Search:     Grid{{Name: "nprobe"}},
		},
		Plan{
			Family:     "FAKE",
			Precisions: []precision.Type{precision.Float32},
			Build:      Grid{{Name: "nlist"}},
		},
	)
	require.NoError(t, err)
	assert.Empty(t, f.rec.Rows)
	assert.Empty(t, f.rec.Headers)
	assert.Empty(t, f.log.builds)
	assert.Empty(t, f.log.searches)
}

func TestDriver_UnknownFamilyAbortsBeforeBuild(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, []int{8}, []int{5})

	err := d.Run(context.Background(),
		Plan{Family: "FAKE", Precisions: []precision.Type{precision.Float32}},
		Plan{Family: "GPU_CAGRA", Precisions: []precision.Type{precision.Float32}},
	)
	require.ErrorIs(t, err, index.ErrUnknownFamily)
	assert.True(t, IsFatal(err))
	assert.Empty(t, f.log.builds)
	assert.Empty(t, f.rec.Rows)
}

func TestDriver_FailedRunIsAbandoned(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, []int{8}, []int{5})

	err := d.Run(context.Background(),
		Plan{
			Family:     "FAKE",
			Precisions: []precision.Type{precision.Float32},
			Build:      Grid{{Name: "fail", Values: []int{1, 0}}},
			Search:     Grid{{Name: "ef", Values: []int{8}}},
		},
		Plan{
			Family:     "FAKE",
			Precisions: []precision.Type{precision.Float16},
			Search:     Grid{{Name: "ef", Values: []int{8}}},
		},
	)
	require.Error(t, err)
	assert.False(t, IsFatal(err))

	var le *LeafError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, StageBuild, le.Stage)
	assert.Equal(t, precision.Float32, le.Precision)
	assert.Equal(t, index.Params{"fail": 1}, le.Build)

	// The fail=0 combination of the abandoned run never builds.
	assert.Len(t, f.log.builds, 2)
	require.Len(t, f.rec.Headers, 2)
	assert.Error(t, f.rec.Headers[0].Err)
	require.Len(t, f.rec.Rows, 1)
	assert.Equal(t, precision.Float16, f.rec.Rows[0].Precision)
}

func TestDriver_RoundTripFailureEmitsRow(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, []int{8}, []int{5})

	err := d.Run(context.Background(), Plan{
		Family:     "FAKE",
		Precisions: []precision.Type{precision.Float32},
		Search:     Grid{{Name: "explode", Values: []int{0, 1, 0}}},
		RoundTrip:  true,
	})
	require.Error(t, err)
	assert.Equal(t, 1, f.log.restores)

	var le *LeafError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, StageSearch, le.Stage)

	require.Len(t, f.rec.Rows, 2)
	assert.NoError(t, f.rec.Rows[0].Err)
	assert.Error(t, f.rec.Rows[1].Err)
	assert.True(t, f.rec.Headers[0].Restored)
}

// ctxStore rejects deletes on a done context, as remote stores do.
type ctxStore struct {
	*blobstore.MemoryStore
}

func (s *ctxStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, name)
}

func TestDriver_ReleaseAfterCancel(t *testing.T) {
	f := newFixture(t)
	store := &ctxStore{MemoryStore: blobstore.NewMemoryStore()}
	f.store = store
	d := f.driver(t, []int{8}, []int{5})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.log.onSearch = cancel

	err := d.Run(ctx, Plan{
		Family:     "FAKE",
		Precisions: []precision.Type{precision.Float32},
		Search:     Grid{{Name: "ef", Values: []int{8}}},
		RoundTrip:  true,
	})
	require.NoError(t, err)
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, 1, f.log.restores)

	keys, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"shape mismatch", &precision.ShapeError{What: "base", Want: 4, Got: 8}, true},
		{"unknown family", &index.UnknownFamilyError{Family: "NOPE"}, true},
		{"handle live", lifecycle.ErrHandleLive, true},
		{"already built", &LeafError{Family: "FAKE", Stage: StageBuild, Err: lifecycle.ErrAlreadyBuilt}, true},
		{"not built", &LeafError{Family: "FAKE", Stage: StageSearch, Err: lifecycle.ErrNotBuilt}, true},
		{"cancelled", context.Canceled, true},
		{"report", &LeafError{Family: "FAKE", Stage: StageReport, Err: errors.New("disk full")}, true},
		{"build failure", &LeafError{Family: "FAKE", Stage: StageBuild, Err: errors.New("boom")}, false},
		{"work dir locked", lifecycle.ErrWorkDirLocked, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestDriver_Deterministic(t *testing.T) {
	plan := Plan{
		Family:     "IVF_FLAT",
		Precisions: []precision.Type{precision.Float32, precision.Float16},
		Build:      Grid{{Name: "nlist", Values: []int{4}}},
		Search:     Grid{{Name: "nprobe", Values: []int{1, 4}}},
	}
	run := func() []report.Row {
		f := newFixture(t)
		require.NoError(t, f.driver(t, []int{8}, []int{1, 5}).Run(context.Background(), plan))
		for i := range f.rec.Rows {
			f.rec.Rows[i].Elapsed = 0
		}
		return f.rec.Rows
	}

	first := run()
	require.Len(t, first, 8)
	assert.Equal(t, first, run())
	for _, r := range first {
		if r.Precision == precision.Float32 && r.Search["nprobe"] == 4 && r.K == 5 {
			assert.InDelta(t, 1.0, r.Recall, 0.05)
		}
	}
}

func TestNew_BatchLargerThanQueries(t *testing.T) {
	f := newFixture(t)
	_, err := New(Config{
		Registry: f.reg,
		Manager:  &lifecycle.Manager{},
		Dataset:  f.ds,
		NQs:      []int{9},
		Ks:       []int{1},
		Sink:     f.rec,
	})
	assert.ErrorIs(t, err, precision.ErrShapeMismatch)
}

func TestDefaultPlans(t *testing.T) {
	plans := DefaultPlans(precision.Float32)
	reg := families.Default()

	var names []string
	for _, p := range plans {
		_, err := reg.Lookup(p.Family)
		require.NoError(t, err)
		names = append(names, p.Family)
		assert.Equal(t, []precision.Type{precision.Float32}, p.Precisions)
	}
	assert.Equal(t, []string{"IDMAP", "IVF_FLAT", "IVF_SQ8", "IVF_PQ", "HNSW", "DISKANN"}, names)

	assert.Len(t, plans[3].Build.Combinations(), 3)
	assert.Len(t, plans[1].Search.Combinations(), 10)
	assert.True(t, plans[5].RoundTrip)
	assert.Len(t, DefaultPlans()[0].Precisions, 3)
}
