package index

import (
	"fmt"

	"github.com/hupe1980/vecbench/internal/binfmt"
	"github.com/hupe1980/vecbench/precision"
)

// Header returns a blob header describing m for this env.
func (e Env) Header(m *precision.Matrix) binfmt.Header {
	return binfmt.NewHeader(e.Family, uint8(e.Metric), uint8(m.Type()), m.Rows(), m.Dim())
}

// WriteMatrix appends the elements of m in their stored representation.
func WriteMatrix(w *binfmt.Writer, m *precision.Matrix) {
	if m.Type() == precision.Float32 {
		w.Write(m.Float32s())
		return
	}
	w.Write(m.Bits())
}

// ReadMatrix reads a matrix described by h and checks it against the env.
func (e Env) ReadMatrix(r *binfmt.Reader, h binfmt.Header) (*precision.Matrix, error) {
	if precision.Type(h.Precision) != e.Precision {
		return nil, fmt.Errorf("index: blob precision %s, instance precision %s", precision.Type(h.Precision), e.Precision)
	}
	if int(h.Metric) != int(e.Metric) {
		return nil, fmt.Errorf("index: blob metric %d, instance metric %s", h.Metric, e.Metric)
	}
	rows, dim := int(h.Rows), int(h.Dim)
	if e.Precision == precision.Float32 {
		data := r.Float32s(rows * dim)
		if err := r.Err(); err != nil {
			return nil, err
		}
		return precision.NewMatrix(rows, dim, data)
	}
	bits := r.Uint16s(rows * dim)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return precision.NewBitsMatrix(e.Precision, rows, dim, bits)
}
