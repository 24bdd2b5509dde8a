package quantization

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecbench/internal/binfmt"
	"github.com/hupe1980/vecbench/internal/kmeans"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/metric"
)

// ProductQuantizer splits vectors into M sub-vectors and encodes each as the
// index of its nearest centroid among 2^nbits trained per sub-space.
type ProductQuantizer struct {
	dim   int
	m     int
	dsub  int
	ksub  int
	books []float32 // m × ksub × dsub
}

// NewProductQuantizer validates the geometry. dim must be divisible by m and
// nbits must be in [1, 8] so every code fits in one byte.
func NewProductQuantizer(dim, m, nbits int) (*ProductQuantizer, error) {
	if m <= 0 || dim%m != 0 {
		return nil, fmt.Errorf("quantization: dimension %d not divisible by m=%d", dim, m)
	}
	if nbits < 1 || nbits > 8 {
		return nil, fmt.Errorf("quantization: nbits=%d out of range [1, 8]", nbits)
	}
	return &ProductQuantizer{dim: dim, m: m, dsub: dim / m, ksub: 1 << nbits}, nil
}

// M returns the number of sub-quantizers (bytes per code).
func (pq *ProductQuantizer) M() int { return pq.m }

// Trained reports whether codebooks are present.
func (pq *ProductQuantizer) Trained() bool { return pq.books != nil }

// Train learns one codebook per sub-space with k-means (L2).
func (pq *ProductQuantizer) Train(ctx context.Context, vectors []float32, ctrl *resource.Controller, seed int64) error {
	n := len(vectors) / pq.dim
	if n < pq.ksub {
		return fmt.Errorf("quantization: %d training vectors for %d centroids: %w", n, pq.ksub, kmeans.ErrTooFewVectors)
	}
	kern, err := metric.Select("generic")
	if err != nil {
		return err
	}

	books := make([]float32, pq.m*pq.ksub*pq.dsub)
	sub := make([]float32, n*pq.dsub)
	for s := 0; s < pq.m; s++ {
		for i := 0; i < n; i++ {
			copy(sub[i*pq.dsub:(i+1)*pq.dsub], vectors[i*pq.dim+s*pq.dsub:i*pq.dim+(s+1)*pq.dsub])
		}
		centroids, err := kmeans.Train(ctx, sub, pq.dsub, kmeans.Config{
			K:          pq.ksub,
			MaxIter:    20,
			Seed:       seed + int64(s),
			Distance:   kern.SquaredL2,
			Controller: ctrl,
		})
		if err != nil {
			return err
		}
		copy(books[s*pq.ksub*pq.dsub:], centroids)
	}
	pq.books = books
	return nil
}

func (pq *ProductQuantizer) codebook(s int) []float32 {
	return pq.books[s*pq.ksub*pq.dsub : (s+1)*pq.ksub*pq.dsub]
}

// Encode quantizes vec into dst (len M) and returns it.
func (pq *ProductQuantizer) Encode(vec []float32, dst []byte, l2 metric.Func) []byte {
	if cap(dst) < pq.m {
		dst = make([]byte, pq.m)
	}
	dst = dst[:pq.m]
	for s := 0; s < pq.m; s++ {
		dst[s] = uint8(kmeans.Nearest(vec[s*pq.dsub:(s+1)*pq.dsub], pq.codebook(s), pq.dsub, l2))
	}
	return dst
}

// Decode reconstructs an approximate vector.
func (pq *ProductQuantizer) Decode(code []byte) []float32 {
	out := make([]float32, pq.dim)
	for s, c := range code {
		copy(out[s*pq.dsub:(s+1)*pq.dsub], pq.codebook(s)[int(c)*pq.dsub:(int(c)+1)*pq.dsub])
	}
	return out
}

// DistanceTable precomputes, for each sub-space, the distance contribution of
// every centroid to query. Contributions sum to the full distance: squared L2
// for L2, negated inner product for IP and cosine.
func (pq *ProductQuantizer) DistanceTable(query []float32, m metric.Metric, k metric.Kernel) []float32 {
	table := make([]float32, pq.m*pq.ksub)
	for s := 0; s < pq.m; s++ {
		q := query[s*pq.dsub : (s+1)*pq.dsub]
		book := pq.codebook(s)
		for c := 0; c < pq.ksub; c++ {
			cen := book[c*pq.dsub : (c+1)*pq.dsub]
			if m == metric.L2 {
				table[s*pq.ksub+c] = k.SquaredL2(q, cen)
			} else {
				table[s*pq.ksub+c] = -k.Dot(q, cen)
			}
		}
	}
	return table
}

// ADC sums the table entries selected by code.
func (pq *ProductQuantizer) ADC(table []float32, code []byte) float32 {
	var d float32
	for s, c := range code {
		d += table[s*pq.ksub+int(c)]
	}
	return d
}

// WriteTo appends the geometry and codebooks to w.
func (pq *ProductQuantizer) WriteTo(w *binfmt.Writer) {
	w.Write([]uint32{uint32(pq.dim), uint32(pq.m), uint32(pq.ksub)})
	w.Write(pq.books)
}

// ReadProductQuantizer reads a quantizer written by WriteTo.
func ReadProductQuantizer(r *binfmt.Reader) (*ProductQuantizer, error) {
	geo := r.Uint32s(3)
	if err := r.Err(); err != nil {
		return nil, err
	}
	dim, m, ksub := int(geo[0]), int(geo[1]), int(geo[2])
	if m == 0 || dim%m != 0 || ksub == 0 || ksub > 256 {
		return nil, fmt.Errorf("quantization: corrupt product quantizer geometry %d/%d/%d", dim, m, ksub)
	}
	pq := &ProductQuantizer{dim: dim, m: m, dsub: dim / m, ksub: ksub}
	pq.books = r.Float32s(m * ksub * pq.dsub)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return pq, nil
}
