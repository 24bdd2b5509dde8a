package sweep

import (
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/index/diskann"
	"github.com/hupe1980/vecbench/index/flat"
	"github.com/hupe1980/vecbench/index/hnsw"
	"github.com/hupe1980/vecbench/index/ivf"
	"github.com/hupe1980/vecbench/precision"
)

// DefaultKs are the top-k values of the standard sweep.
var DefaultKs = []int{100}

var nprobes = []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512}

// DefaultPlans returns the standard sweep of every bundled family at each
// of precisions, or at all precisions when none are given.
func DefaultPlans(precisions ...precision.Type) []Plan {
	if len(precisions) == 0 {
		precisions = precision.Types()
	}
	ivfBuild := Grid{{Name: "nlist", Values: []int{1024}}}
	ivfSearch := Grid{{Name: "nprobe", Values: nprobes}}

	return []Plan{
		{
			Family:     flat.Name,
			Precisions: precisions,
		},
		{
			Family:     ivf.NameFlat,
			Precisions: precisions,
			Build:      ivfBuild,
			Search:     ivfSearch,
		},
		{
			Family:     ivf.NameSQ8,
			Precisions: precisions,
			Build:      ivfBuild,
			Search:     ivfSearch,
		},
		{
			Family:     ivf.NamePQ,
			Precisions: precisions,
			Fixed:      index.Params{"nbits": 8},
			Build:      append(Grid{{Name: "m", Values: []int{8, 16, 32}}}, ivfBuild...),
			Search:     ivfSearch,
		},
		{
			Family:     hnsw.Name,
			Precisions: precisions,
			Build: Grid{
				{Name: "M", Values: []int{16}},
				{Name: "efConstruction", Values: []int{200}},
			},
			Search: Grid{{Name: "ef", Values: []int{128, 256, 512}}},
		},
		{
			Family:     diskann.Name,
			Precisions: precisions,
			Fixed:      index.Params{"max_degree": 56, "beamwidth": 8},
			Search:     Grid{{Name: "search_list_size", Values: []int{100, 200, 400}}},
			RoundTrip:  true,
		},
	}
}
