package hnsw

import (
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/binfmt"
)

const blobName = "hnsw"

// Serialize implements index.Index.
//
// Layout after the header: M, efConstruction, entry point, max level,
// per-node levels, per-node per-level adjacency lists, then the vectors at
// the instance precision.
func (h *HNSW) Serialize() (index.BinarySet, error) {
	if h.data == nil {
		return nil, errNotBuilt
	}
	blob, err := binfmt.Encode(func(w *binfmt.Writer) {
		w.WriteHeader(h.env.Header(h.data))
		w.Write([]uint32{uint32(h.m), uint32(h.efConstruction), h.entry.Load(), uint32(h.maxLevel.Load())})
		w.Write(h.levels)
		for id := range h.links {
			for _, nbs := range h.links[id] {
				w.Write(uint32(len(nbs)))
				w.Write(nbs)
			}
		}
		index.WriteMatrix(w, h.data)
	})
	if err != nil {
		return nil, err
	}
	return index.BinarySet{blobName: blob}, nil
}

// Deserialize implements index.Index.
func (h *HNSW) Deserialize(set index.BinarySet, _ index.Params) error {
	if h.data != nil {
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
	hdr, err := r.ReadHeader(h.env.Family)
	if err != nil {
		return err
	}

	meta := r.Uint32s(4)
	n := int(hdr.Rows)
	levels := r.Bytes(n)
	if err := r.Err(); err != nil {
		return err
	}
	links := make([][][]uint32, n)
	for id := 0; id < n; id++ {
		links[id] = make([][]uint32, int(levels[id])+1)
		for l := range links[id] {
			links[id][l] = r.Uint32s(int(r.Uint32()))
		}
		if err := r.Err(); err != nil {
			return err
		}
	}
	data, err := h.env.ReadMatrix(r, hdr)
	if err != nil {
		return err
	}

	h.init(data, int(meta[0]), int(meta[1]))
	h.levels = levels
	h.links = links
	h.entry.Store(meta[2])
	h.maxLevel.Store(int32(meta[3]))
	return nil
}
