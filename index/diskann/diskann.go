package diskann

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/binfmt"
	"github.com/hupe1980/vecbench/internal/half"
	"github.com/hupe1980/vecbench/internal/queue"
	"github.com/hupe1980/vecbench/internal/visited"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// Name is the registry name of the family.
const Name = "DISKANN"

const (
	fileName = "diskann.index"
	blobName = "diskann"

	defaultBuildListSize  = 128
	defaultSearchListSize = 100
	defaultBeamWidth      = 8

	graphSeed = 2024
)

var (
	errBuilt    = errors.New("diskann: index already populated")
	errNotBuilt = errors.New("diskann: index is empty")
)

var le = binary.LittleEndian

// Compile-time check to ensure DiskANN satisfies index.Index.
var _ index.Index = (*DiskANN)(nil)

// DiskANN is a Vamana graph searched from a memory-mapped file.
type DiskANN struct {
	env  index.Env
	dist metric.Func

	dir    string
	ownDir bool

	f  *os.File
	mm mmap.MMap

	typ     precision.Type
	n       int
	dim     int
	r       int
	entry   uint32
	recSize int
	recOff  int

	visited *visited.Pool
}

// New returns an empty DiskANN bound to env.
func New(env index.Env) (index.Index, error) {
	dist, err := env.Distance()
	if err != nil {
		return nil, err
	}
	return &DiskANN{env: env, dist: dist}, nil
}

// Register adds the family to r.
func Register(r *index.Registry) { r.Register(Name, New) }

// Build implements index.Index. The graph is built in memory, written to
// the work directory and mapped back for searching.
func (d *DiskANN) Build(ctx context.Context, base *precision.Matrix, params index.Params) error {
	if d.mm != nil {
		return errBuilt
	}
	if base.Rows() == 0 {
		return index.ErrEmptyBase
	}
	r, err := params.Require("max_degree", 1)
	if err != nil {
		return err
	}
	l := max(params.Get("build_list_size", defaultBuildListSize), r)

	data, err := d.env.Prepare(base)
	if err != nil {
		return err
	}

	b := newBuilder(data.Float32s(), data.Dim(), r, l, d.dist)
	entry, err := b.build(ctx, graphSeed)
	if err != nil {
		return err
	}

	path, err := d.path()
	if err != nil {
		return err
	}
	if err := d.write(path, data, b.graph, entry, r); err != nil {
		return err
	}
	d.env.Log().Debug("diskann: build done", "family", d.env.Family, "nodes", data.Rows(), "maxDegree", r, "path", path)
	return d.open(path)
}

// write lays out the graph as fixed-size records: the vector at instance
// precision, the degree, then max_degree neighbor slots.
func (d *DiskANN) write(path string, data *precision.Matrix, graph [][]uint32, entry uint32, r int) error {
	dim := data.Dim()
	return binfmt.SaveToFile(path, func(out io.Writer) error {
		w := binfmt.NewWriter(out)
		w.WriteHeader(d.env.Header(data))
		w.Write([]uint32{entry, uint32(r)})
		slots := make([]uint32, r)
		for i, nbs := range graph {
			if data.Type() == precision.Float32 {
				w.Write(data.Float32s()[i*dim : (i+1)*dim])
			} else {
				w.Write(data.Bits()[i*dim : (i+1)*dim])
			}
			clear(slots)
			copy(slots, nbs)
			w.Write(uint32(len(nbs)))
			w.Write(slots)
		}
		return w.Finish()
	})
}

// open maps path read-only and validates it against the env.
func (d *DiskANN) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := d.attach(mm); err != nil {
		_ = mm.Unmap()
		_ = f.Close()
		return err
	}
	d.f = f
	return nil
}

func (d *DiskANN) attach(mm mmap.MMap) error {
	rd, err := binfmt.NewReader(mm)
	if err != nil {
		return err
	}
	hdr, err := rd.ReadHeader(d.env.Family)
	if err != nil {
		return err
	}
	if precision.Type(hdr.Precision) != d.env.Precision {
		return fmt.Errorf("diskann: file precision %s, instance precision %s", precision.Type(hdr.Precision), d.env.Precision)
	}
	if int(hdr.Metric) != int(d.env.Metric) {
		return fmt.Errorf("diskann: file metric %d, instance metric %s", hdr.Metric, d.env.Metric)
	}
	meta := rd.Uint32s(2)
	if err := rd.Err(); err != nil {
		return err
	}

	n, dim, r := int(hdr.Rows), int(hdr.Dim), int(meta[1])
	recSize := dim*d.env.Precision.ElemSize() + 4 + 4*r
	recOff := binfmt.HeaderSize() + 8
	if n == 0 || int(meta[0]) >= n || len(mm) != recOff+n*recSize+4 {
		return binfmt.ErrTruncated
	}

	d.mm = mm
	d.typ = d.env.Precision
	d.n, d.dim, d.r = n, dim, r
	d.entry = meta[0]
	d.recSize, d.recOff = recSize, recOff
	d.visited = visited.NewPool(n)
	return nil
}

func (d *DiskANN) record(id uint32) []byte {
	off := d.recOff + int(id)*d.recSize
	return d.mm[off : off+d.recSize]
}

// vector decodes the vector of record id into buf.
func (d *DiskANN) vector(id uint32, buf []float32) []float32 {
	rec := d.record(id)
	switch d.typ {
	case precision.Float32:
		for j := range buf {
			buf[j] = math.Float32frombits(le.Uint32(rec[4*j:]))
		}
	case precision.Float16:
		for j := range buf {
			buf[j] = half.Float16(le.Uint16(rec[2*j:])).Float32()
		}
	default:
		for j := range buf {
			buf[j] = half.BFloat16(le.Uint16(rec[2*j:])).Float32()
		}
	}
	return buf
}

// neighbors appends the out-edges of id to dst.
func (d *DiskANN) neighbors(id uint32, dst []uint32) []uint32 {
	rec := d.record(id)
	off := d.dim * d.typ.ElemSize()
	deg := int(le.Uint32(rec[off:]))
	off += 4
	for j := 0; j < deg && j < d.r; j++ {
		dst = append(dst, le.Uint32(rec[off+4*j:]))
	}
	return dst
}

// Search implements index.Index.
func (d *DiskANN) Search(ctx context.Context, queries *precision.Matrix, k int, params index.Params) ([][]int64, error) {
	if d.mm == nil {
		return nil, errNotBuilt
	}
	l := max(params.Get("search_list_size", defaultSearchListSize), k)
	w := max(params.Get("beamwidth", defaultBeamWidth), 1)
	return d.env.SearchEach(ctx, queries, func(q []float32) ([]int64, error) {
		return d.beamSearch(q, k, l, w), nil
	})
}

// beamSearch keeps the l best candidates and expands up to w unexpanded
// ones per round until every candidate in the list has been expanded.
func (d *DiskANN) beamSearch(q []float32, k, l, w int) []int64 {
	seen := d.visited.Get()
	defer d.visited.Put(seen)

	buf := make([]float32, d.dim)
	list := []queue.Item{{ID: int64(d.entry), Distance: d.dist(q, d.vector(d.entry, buf))}}
	seen.Visit(d.entry)
	expanded := make(map[int64]bool, l)
	var beam, nbs []uint32

	for {
		beam = beam[:0]
		for _, c := range list {
			if !expanded[c.ID] {
				expanded[c.ID] = true
				beam = append(beam, uint32(c.ID))
				if len(beam) == w {
					break
				}
			}
		}
		if len(beam) == 0 {
			break
		}
		for _, id := range beam {
			nbs = d.neighbors(id, nbs[:0])
			for _, nb := range nbs {
				if !seen.Visit(nb) {
					continue
				}
				list = insertSorted(list, queue.Item{ID: int64(nb), Distance: d.dist(q, d.vector(nb, buf))}, l)
			}
		}
	}

	ids := make([]int64, 0, min(k, len(list)))
	for _, c := range list[:min(k, len(list))] {
		ids = append(ids, c.ID)
	}
	return ids
}

// Serialize implements index.Index. The blob is the index file itself.
func (d *DiskANN) Serialize() (index.BinarySet, error) {
	if d.mm == nil {
		return nil, errNotBuilt
	}
	blob := make([]byte, len(d.mm))
	copy(blob, d.mm)
	return index.BinarySet{blobName: blob}, nil
}

// Deserialize implements index.Index. The blob is written to the work
// directory and mapped.
func (d *DiskANN) Deserialize(set index.BinarySet, _ index.Params) error {
	if d.mm != nil {
		return errBuilt
	}
	blob, err := set.Blob(blobName)
	if err != nil {
		return err
	}
	path, err := d.path()
	if err != nil {
		return err
	}
	err = binfmt.SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write(blob)
		return err
	})
	if err != nil {
		return err
	}
	return d.open(path)
}

// Close implements index.Index.
func (d *DiskANN) Close() error {
	var errs []error
	if d.mm != nil {
		errs = append(errs, d.mm.Unmap())
		d.mm = nil
	}
	if d.f != nil {
		errs = append(errs, d.f.Close())
		d.f = nil
	}
	if d.ownDir && d.dir != "" {
		errs = append(errs, os.RemoveAll(d.dir))
		d.dir, d.ownDir = "", false
	}
	return errors.Join(errs...)
}

// path returns the index file path, creating a private directory when the
// env has no work directory.
func (d *DiskANN) path() (string, error) {
	if d.dir == "" {
		if d.env.WorkDir != "" {
			if err := os.MkdirAll(d.env.WorkDir, 0o755); err != nil {
				return "", err
			}
			d.dir = d.env.WorkDir
		} else {
			dir, err := os.MkdirTemp("", "vecbench-diskann-*")
			if err != nil {
				return "", err
			}
			d.dir, d.ownDir = dir, true
		}
	}
	return filepath.Join(d.dir, fileName), nil
}
