package ivf

import (
	"fmt"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/binfmt"
	"github.com/hupe1980/vecbench/internal/quantization"
	"github.com/hupe1980/vecbench/precision"
)

// Serialize implements index.Index.
//
// Layout after the header: variant, nlist, centroids, the variant codec,
// then per list: length, ids and payload.
func (ivf *IVF) Serialize() (index.BinarySet, error) {
	if ivf.centroids == nil {
		return nil, errNotBuilt
	}
	rows := 0
	for _, ids := range ivf.ids {
		rows += len(ids)
	}
	blob, err := binfmt.Encode(func(w *binfmt.Writer) {
		h := binfmt.NewHeader(ivf.env.Family, uint8(ivf.env.Metric), uint8(ivf.env.Precision), rows, ivf.dim)
		w.WriteHeader(h)
		w.Write([]uint32{uint32(ivf.variant), uint32(ivf.nlist)})
		w.Write(ivf.centroids)
		switch ivf.variant {
		case SQ8:
			ivf.sq.WriteTo(w)
		case PQ:
			ivf.pq.WriteTo(w)
		}
		for l, ids := range ivf.ids {
			w.Write(uint32(len(ids)))
			w.Write(ids)
			if ivf.variant == Flat {
				index.WriteMatrix(w, ivf.vecs[l])
			} else {
				w.Write(ivf.code[l])
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return index.BinarySet{blobName: blob}, nil
}

// Deserialize implements index.Index.
func (ivf *IVF) Deserialize(set index.BinarySet, _ index.Params) error {
	if ivf.centroids != nil {
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
	h, err := r.ReadHeader(ivf.env.Family)
	if err != nil {
		return err
	}
	if precision.Type(h.Precision) != ivf.env.Precision {
		return fmt.Errorf("ivf: blob precision %s, instance precision %s", precision.Type(h.Precision), ivf.env.Precision)
	}

	hdr := r.Uint32s(2)
	if err := r.Err(); err != nil {
		return err
	}
	if Variant(hdr[0]) != ivf.variant {
		return fmt.Errorf("ivf: blob variant %d, instance variant %d", hdr[0], ivf.variant)
	}
	dim, nlist := int(h.Dim), int(hdr[1])
	centroids := r.Float32s(nlist * dim)
	if err := r.Err(); err != nil {
		return err
	}

	ivf.dim, ivf.nlist = dim, nlist
	switch ivf.variant {
	case SQ8:
		if ivf.sq, err = quantization.ReadScalarQuantizer(r); err != nil {
			return err
		}
	case PQ:
		if ivf.pq, err = quantization.ReadProductQuantizer(r); err != nil {
			return err
		}
	}

	ivf.ids = make([][]int64, nlist)
	if ivf.variant == Flat {
		ivf.vecs = make([]*precision.Matrix, nlist)
	} else {
		ivf.code = make([][]byte, nlist)
	}
	for l := 0; l < nlist; l++ {
		n := int(r.Uint32())
		ivf.ids[l] = r.Int64s(n)
		if ivf.variant == Flat {
			lh := h
			lh.Rows = uint64(n)
			if ivf.vecs[l], err = ivf.env.ReadMatrix(r, lh); err != nil {
				return err
			}
		} else {
			ivf.code[l] = r.Bytes(n * ivf.codeSize())
		}
		if err := r.Err(); err != nil {
			return err
		}
	}
	ivf.centroids = centroids
	return nil
}
