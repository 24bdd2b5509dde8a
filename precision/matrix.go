package precision

import (
	"github.com/hupe1980/vecbench/internal/half"
)

// Matrix is a row-major rows × dim matrix stored in one element Type.
// A Matrix is immutable once constructed.
type Matrix struct {
	typ  Type
	rows int
	dim  int
	f32  []float32 // Float32 storage
	bits []uint16  // Float16/BFloat16 storage
}

// NewMatrix wraps data (rows*dim float32 values) without copying.
func NewMatrix(rows, dim int, data []float32) (*Matrix, error) {
	if dim <= 0 {
		return nil, &ShapeError{What: "dimension", Want: 1, Got: dim}
	}
	if rows < 0 || len(data) != rows*dim {
		return nil, &ShapeError{What: "element count", Want: rows * dim, Got: len(data)}
	}
	return &Matrix{typ: Float32, rows: rows, dim: dim, f32: data}, nil
}

// NewBitsMatrix wraps half-precision bit patterns without copying.
func NewBitsMatrix(typ Type, rows, dim int, bits []uint16) (*Matrix, error) {
	if typ == Float32 {
		return nil, &ShapeError{What: "element size", Want: 2, Got: 4}
	}
	if dim <= 0 {
		return nil, &ShapeError{What: "dimension", Want: 1, Got: dim}
	}
	if rows < 0 || len(bits) != rows*dim {
		return nil, &ShapeError{What: "element count", Want: rows * dim, Got: len(bits)}
	}
	return &Matrix{typ: typ, rows: rows, dim: dim, bits: bits}, nil
}

func (m *Matrix) Type() Type { return m.typ }
func (m *Matrix) Rows() int  { return m.rows }
func (m *Matrix) Dim() int   { return m.dim }

// Bytes returns the size of the stored elements.
func (m *Matrix) Bytes() int64 {
	return int64(m.rows) * int64(m.dim) * int64(m.typ.ElemSize())
}

// Row decodes row i into dst (grown if needed) and returns it.
// For Float32 matrices the backing slice is returned directly and must not be modified.
func (m *Matrix) Row(i int, dst []float32) []float32 {
	lo, hi := i*m.dim, (i+1)*m.dim
	switch m.typ {
	case Float32:
		return m.f32[lo:hi:hi]
	case Float16:
		dst = grow(dst, m.dim)
		for j, b := range m.bits[lo:hi] {
			dst[j] = half.Float16(b).Float32()
		}
	default:
		dst = grow(dst, m.dim)
		for j, b := range m.bits[lo:hi] {
			dst[j] = half.BFloat16(b).Float32()
		}
	}
	return dst
}

// Float32s returns all elements widened to float32. For Float32 matrices the
// backing slice is returned and must not be modified.
func (m *Matrix) Float32s() []float32 {
	if m.typ == Float32 {
		return m.f32
	}
	out := make([]float32, m.rows*m.dim)
	for i := 0; i < m.rows; i++ {
		m.Row(i, out[i*m.dim:(i+1)*m.dim])
	}
	return out
}

// Bits returns the raw half-precision storage, nil for Float32 matrices.
func (m *Matrix) Bits() []uint16 { return m.bits }

// Head returns a view of the first n rows.
func (m *Matrix) Head(n int) (*Matrix, error) {
	if n < 0 || n > m.rows {
		return nil, &ShapeError{What: "batch size", Want: m.rows, Got: n}
	}
	v := *m
	v.rows = n
	if m.typ == Float32 {
		v.f32 = m.f32[:n*m.dim]
	} else {
		v.bits = m.bits[:n*m.dim]
	}
	return &v, nil
}

// Convert returns m in representation typ with identical shape.
// Float32 → Float32 is lossless and shares storage. Narrower types round to
// nearest even; widening from a half type is exact.
func Convert(m *Matrix, typ Type) (*Matrix, error) {
	if m.typ == typ {
		return m, nil
	}
	src := m.Float32s()
	switch typ {
	case Float32:
		return NewMatrix(m.rows, m.dim, src)
	case Float16:
		bits := make([]uint16, len(src))
		for i, f := range src {
			bits[i] = uint16(half.NewFloat16(f))
		}
		return NewBitsMatrix(typ, m.rows, m.dim, bits)
	case BFloat16:
		bits := make([]uint16, len(src))
		for i, f := range src {
			bits[i] = uint16(half.NewBFloat16(f))
		}
		return NewBitsMatrix(typ, m.rows, m.dim, bits)
	default:
		return nil, &ShapeError{What: "element type", Want: int(Float32), Got: int(typ)}
	}
}

func grow(dst []float32, n int) []float32 {
	if cap(dst) < n {
		return make([]float32, n)
	}
	return dst[:n]
}
