// Package families wires the built-in index families into a registry.
package families

import (
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/index/diskann"
	"github.com/hupe1980/vecbench/index/flat"
	"github.com/hupe1980/vecbench/index/hnsw"
	"github.com/hupe1980/vecbench/index/ivf"
)

// Default returns a registry holding IDMAP, IVF_FLAT, IVF_SQ8, IVF_PQ, HNSW
// and DISKANN.
func Default() *index.Registry {
	r := index.NewRegistry()
	flat.Register(r)
	ivf.Register(r)
	hnsw.Register(r)
	diskann.Register(r)
	return r
}
