package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hupe1980/vecbench/codec"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// TEXMEX files are a sequence of records: a little-endian int32 dimension
// followed by that many components (float32, int32 or uint8).

// ErrFormat is returned for malformed vector files.
var ErrFormat = errors.New("dataset: malformed vector file")

var le = binary.LittleEndian

// maxDim bounds the per-record dimension read from a file header.
const maxDim = 1 << 16

// readRecords calls fn with each record's raw component bytes.
func readRecords(r io.Reader, elemSize int, fn func(dim int, raw []byte) error) error {
	br := bufio.NewReaderSize(r, 1<<20)
	var hdr [4]byte
	var raw []byte
	for rec := 0; ; rec++ {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: record %d: %v", ErrFormat, rec, err)
		}
		dim := int(int32(le.Uint32(hdr[:])))
		if dim <= 0 || dim > maxDim {
			return fmt.Errorf("%w: record %d: dimension %d", ErrFormat, rec, dim)
		}
		if cap(raw) < dim*elemSize {
			raw = make([]byte, dim*elemSize)
		}
		raw = raw[:dim*elemSize]
		if _, err := io.ReadFull(br, raw); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrFormat, rec, err)
		}
		if err := fn(dim, raw); err != nil {
			return err
		}
	}
}

func checkDim(want *int, got int) error {
	if *want == 0 {
		*want = got
		return nil
	}
	if *want != got {
		return &precision.ShapeError{What: "record dim", Want: *want, Got: got}
	}
	return nil
}

// ReadFvecs reads float32 vectors.
func ReadFvecs(r io.Reader) (*precision.Matrix, error) {
	var data []float32
	dim, rows := 0, 0
	err := readRecords(r, 4, func(d int, raw []byte) error {
		if err := checkDim(&dim, d); err != nil {
			return err
		}
		for j := 0; j < d; j++ {
			data = append(data, math.Float32frombits(le.Uint32(raw[4*j:])))
		}
		rows++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return precision.NewMatrix(rows, dim, data)
}

// ReadBvecs reads uint8 vectors, widened to float32.
func ReadBvecs(r io.Reader) (*precision.Matrix, error) {
	var data []float32
	dim, rows := 0, 0
	err := readRecords(r, 1, func(d int, raw []byte) error {
		if err := checkDim(&dim, d); err != nil {
			return err
		}
		for _, b := range raw {
			data = append(data, float32(b))
		}
		rows++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return precision.NewMatrix(rows, dim, data)
}

// ReadIvecs reads int32 neighbor lists.
func ReadIvecs(r io.Reader) ([][]int64, error) {
	var out [][]int64
	err := readRecords(r, 4, func(d int, raw []byte) error {
		ids := make([]int64, d)
		for j := range ids {
			ids[j] = int64(int32(le.Uint32(raw[4*j:])))
		}
		out = append(out, ids)
		return nil
	})
	return out, err
}

// WriteFvecs writes m (widened to float32) as .fvecs records.
func WriteFvecs(w io.Writer, m *precision.Matrix) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 4+4*m.Dim())
	row := make([]float32, m.Dim())
	for i := 0; i < m.Rows(); i++ {
		le.PutUint32(buf, uint32(m.Dim()))
		for j, v := range m.Row(i, row) {
			le.PutUint32(buf[4+4*j:], math.Float32bits(v))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteIvecs writes neighbor lists as .ivecs records.
func WriteIvecs(w io.Writer, lists [][]int64) error {
	bw := bufio.NewWriter(w)
	for _, ids := range lists {
		buf := make([]byte, 4+4*len(ids))
		le.PutUint32(buf, uint32(len(ids)))
		for j, id := range ids {
			le.PutUint32(buf[4+4*j:], uint32(int32(id)))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Open opens path, transparently decompressing .zst and .lz4 files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	typ, _ := codec.ForPath(path)
	r, err := codec.NewReader(typ, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileReader{ReadCloser: r, f: f}, nil
}

type fileReader struct {
	io.ReadCloser
	f *os.File
}

func (r *fileReader) Close() error {
	return errors.Join(r.ReadCloser.Close(), r.f.Close())
}

// find returns the first existing file among base and its compressed forms.
func find(dir, base string) (string, error) {
	for _, ext := range []string{"", ".zst", ".lz4"} {
		p := filepath.Join(dir, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("dataset: %s not found in %s: %w", base, dir, os.ErrNotExist)
}

func readFile[T any](dir, base string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	p, err := find(dir, base)
	if err != nil {
		return zero, err
	}
	f, err := Open(p)
	if err != nil {
		return zero, err
	}
	defer func() { _ = f.Close() }()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", p, err)
	}
	return v, nil
}

// Load reads <name>_base.fvecs (or .bvecs), <name>_query.fvecs (or .bvecs)
// and <name>_groundtruth.ivecs from dir, each optionally compressed.
func Load(dir, name string, m metric.Metric) (*Dataset, error) {
	loadMatrix := func(kind string) (*precision.Matrix, error) {
		mat, err := readFile(dir, name+"_"+kind+".fvecs", ReadFvecs)
		if errors.Is(err, os.ErrNotExist) {
			return readFile(dir, name+"_"+kind+".bvecs", ReadBvecs)
		}
		return mat, err
	}

	base, err := loadMatrix("base")
	if err != nil {
		return nil, err
	}
	queries, err := loadMatrix("query")
	if err != nil {
		return nil, err
	}
	gt, err := readFile(dir, name+"_groundtruth.ivecs", ReadIvecs)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Name: name, Metric: m, Base: base, Queries: queries, GroundTruth: gt}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}
