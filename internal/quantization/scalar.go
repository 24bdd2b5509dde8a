package quantization

import (
	"errors"
	"math"

	"github.com/hupe1980/vecbench/internal/binfmt"
)

// ScalarQuantizer implements 8-bit scalar quantization with a trained
// [min, max] range per dimension. It compresses float32 vectors 4x.
type ScalarQuantizer struct {
	dim  int
	min  []float32
	step []float32 // (max-min)/255 per dimension
}

// NewScalarQuantizer creates an untrained quantizer for dim-dimensional vectors.
func NewScalarQuantizer(dim int) *ScalarQuantizer {
	return &ScalarQuantizer{dim: dim}
}

// Train calibrates per-dimension ranges from flattened vectors.
func (sq *ScalarQuantizer) Train(vectors []float32) error {
	n := len(vectors) / sq.dim
	if n == 0 {
		return errors.New("quantization: no vectors provided for training")
	}

	lo := make([]float32, sq.dim)
	hi := make([]float32, sq.dim)
	for d := range lo {
		lo[d] = math.MaxFloat32
		hi[d] = -math.MaxFloat32
	}
	for i := 0; i < n; i++ {
		for d, v := range vectors[i*sq.dim : (i+1)*sq.dim] {
			lo[d] = min(lo[d], v)
			hi[d] = max(hi[d], v)
		}
	}

	sq.min = lo
	sq.step = make([]float32, sq.dim)
	for d := range lo {
		if hi[d] == lo[d] {
			sq.step[d] = 1.0 / 255
			continue
		}
		sq.step[d] = (hi[d] - lo[d]) / 255
	}
	return nil
}

// Trained reports whether Train has run.
func (sq *ScalarQuantizer) Trained() bool { return sq.min != nil }

// Encode quantizes v into dst (len dim) and returns it.
func (sq *ScalarQuantizer) Encode(v []float32, dst []byte) []byte {
	if cap(dst) < sq.dim {
		dst = make([]byte, sq.dim)
	}
	dst = dst[:sq.dim]
	for d, val := range v {
		q := (val - sq.min[d]) / sq.step[d]
		switch {
		case q <= 0:
			dst[d] = 0
		case q >= 255:
			dst[d] = 255
		default:
			dst[d] = uint8(q + 0.5)
		}
	}
	return dst
}

// Decode reconstructs an approximate vector into dst and returns it.
func (sq *ScalarQuantizer) Decode(code []byte, dst []float32) []float32 {
	if cap(dst) < sq.dim {
		dst = make([]float32, sq.dim)
	}
	dst = dst[:sq.dim]
	for d, c := range code {
		dst[d] = sq.min[d] + float32(c)*sq.step[d]
	}
	return dst
}

// WriteTo appends the trained ranges to w.
func (sq *ScalarQuantizer) WriteTo(w *binfmt.Writer) {
	w.Write(uint32(sq.dim))
	w.Write(sq.min)
	w.Write(sq.step)
}

// ReadScalarQuantizer reads a quantizer written by WriteTo.
func ReadScalarQuantizer(r *binfmt.Reader) (*ScalarQuantizer, error) {
	dim := int(r.Uint32())
	sq := &ScalarQuantizer{dim: dim, min: r.Float32s(dim), step: r.Float32s(dim)}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return sq, nil
}
