package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// ErrEmptyBase is returned when Build receives no vectors.
var ErrEmptyBase = errors.New("index: empty base matrix")

// Index is the lifecycle contract of one index instance.
//
// Build and Deserialize are each called at most once, on a fresh instance.
// Search may be called many times with different params and must not mutate
// state visible to later searches.
type Index interface {
	// Build populates the index from base under the build params.
	Build(ctx context.Context, base *precision.Matrix, params Params) error

	// Search returns up to k ids per query, nearest first.
	Search(ctx context.Context, queries *precision.Matrix, k int, params Params) ([][]int64, error)

	// Serialize captures all reloadable state.
	Serialize() (BinarySet, error)

	// Deserialize restores state produced by Serialize.
	Deserialize(set BinarySet, params Params) error

	// Close releases memory and files held by the instance.
	Close() error
}

// BinarySet is a named collection of serialized blobs.
type BinarySet map[string][]byte

// Names returns the blob names in sorted order.
func (s BinarySet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Size returns the total size of all blobs in bytes.
func (s BinarySet) Size() int64 {
	var n int64
	for _, b := range s {
		n += int64(len(b))
	}
	return n
}

// Blob returns the named blob or an error naming what is missing.
func (s BinarySet) Blob(name string) ([]byte, error) {
	b, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("index: binary set has no blob %q", name)
	}
	return b, nil
}

// Env is everything a family needs from the harness to run.
type Env struct {
	Family     string
	Metric     metric.Metric
	Precision  precision.Type
	Kernel     metric.Kernel
	Controller *resource.Controller
	Logger     *slog.Logger
	// WorkDir is a directory private to this instance, removed on release.
	WorkDir string
}

// Distance returns the "lower is better" distance for the env's metric.
func (e Env) Distance() (metric.Func, error) {
	return e.Kernel.Distance(e.Metric)
}

// Prepare returns m ready to be indexed. For cosine the rows are
// L2-normalized and re-encoded in m's precision; otherwise m is returned.
func (e Env) Prepare(m *precision.Matrix) (*precision.Matrix, error) {
	if e.Metric != metric.Cosine {
		return m, nil
	}
	data := make([]float32, m.Rows()*m.Dim())
	copy(data, m.Float32s())
	for i := 0; i < m.Rows(); i++ {
		e.Kernel.Normalize(data[i*m.Dim() : (i+1)*m.Dim()])
	}
	f32, err := precision.NewMatrix(m.Rows(), m.Dim(), data)
	if err != nil {
		return nil, err
	}
	return precision.Convert(f32, m.Type())
}

// Query decodes query i, normalized for cosine. buf is used as scratch when
// the matrix needs decoding.
func (e Env) Query(queries *precision.Matrix, i int, buf []float32) []float32 {
	row := queries.Row(i, buf)
	if e.Metric != metric.Cosine {
		return row
	}
	out := make([]float32, len(row))
	copy(out, row)
	e.Kernel.Normalize(out)
	return out
}

// Log returns the env logger, or a discarding one.
func (e Env) Log() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// SearchEach runs fn for every query on the search pool and collects the ids.
func (e Env) SearchEach(ctx context.Context, queries *precision.Matrix, fn func(q []float32) ([]int64, error)) ([][]int64, error) {
	out := make([][]int64, queries.Rows())
	err := e.Controller.ParallelFor(ctx, resource.SearchPool, queries.Rows(), func(_ context.Context, i int) error {
		q := e.Query(queries, i, make([]float32, queries.Dim()))
		ids, err := fn(q)
		if err != nil {
			return err
		}
		out[i] = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
