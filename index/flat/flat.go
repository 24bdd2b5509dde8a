// Package flat implements IDMAP, the exhaustive-scan family. It is exact at
// fp32 and serves as the recall ceiling for the other families.
package flat

import (
	"context"
	"errors"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/binfmt"
	"github.com/hupe1980/vecbench/internal/queue"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// Name is the registry name of the family.
const Name = "IDMAP"

const blobName = "flat"

var (
	errBuilt    = errors.New("flat: index already populated")
	errNotBuilt = errors.New("flat: index is empty")
)

// Compile-time check to ensure Flat satisfies index.Index.
var _ index.Index = (*Flat)(nil)

// Flat stores every base vector in the instance precision and scans all of
// them per query.
type Flat struct {
	env  index.Env
	dist metric.Func
	data *precision.Matrix
}

// New returns an empty Flat bound to env.
func New(env index.Env) (index.Index, error) {
	dist, err := env.Distance()
	if err != nil {
		return nil, err
	}
	return &Flat{env: env, dist: dist}, nil
}

// Register adds the family to r.
func Register(r *index.Registry) { r.Register(Name, New) }

// Build implements index.Index. IDMAP has no build parameters.
func (f *Flat) Build(_ context.Context, base *precision.Matrix, _ index.Params) error {
	if f.data != nil {
		return errBuilt
	}
	if base.Rows() == 0 {
		return index.ErrEmptyBase
	}
	data, err := f.env.Prepare(base)
	if err != nil {
		return err
	}
	f.data = data
	return nil
}

// Search implements index.Index.
func (f *Flat) Search(ctx context.Context, queries *precision.Matrix, k int, _ index.Params) ([][]int64, error) {
	if f.data == nil {
		return nil, errNotBuilt
	}
	return f.env.SearchEach(ctx, queries, func(q []float32) ([]int64, error) {
		tk := queue.NewTopK(k)
		var buf []float32
		for i := 0; i < f.data.Rows(); i++ {
			buf = f.data.Row(i, buf)
			tk.Offer(int64(i), f.dist(q, buf))
		}
		return tk.IDs(), nil
	})
}

// Serialize implements index.Index.
func (f *Flat) Serialize() (index.BinarySet, error) {
	if f.data == nil {
		return nil, errNotBuilt
	}
	blob, err := binfmt.Encode(func(w *binfmt.Writer) {
		w.WriteHeader(f.env.Header(f.data))
		index.WriteMatrix(w, f.data)
	})
	if err != nil {
		return nil, err
	}
	return index.BinarySet{blobName: blob}, nil
}

// Deserialize implements index.Index.
func (f *Flat) Deserialize(set index.BinarySet, _ index.Params) error {
	if f.data != nil {
		return errBuilt
	}
	blob, err := set.Blob(blobName)
	if err != nil {
		return err
	}
	r, err := binfmt.NewReader(blob)
	if err != nil {
		return err
	}
	h, err := r.ReadHeader(f.env.Family)
	if err != nil {
		return err
	}
	data, err := f.env.ReadMatrix(r, h)
	if err != nil {
		return err
	}
	f.data = data
	return nil
}

// Close implements index.Index.
func (f *Flat) Close() error {
	f.data = nil
	return nil
}
