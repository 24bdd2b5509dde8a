// Package index defines the uniform contract every benchmarked index family
// implements, the parameter sets that configure them, and the registry that
// maps family names to constructors.
//
// The harness only ever drives a family through Index:
//
//	idx, _ := registry.New("HNSW", env)
//	_ = idx.Build(ctx, base, index.Params{"M": 16, "efConstruction": 200})
//	ids, _ := idx.Search(ctx, queries, 10, index.Params{"ef": 128})
//	set, _ := idx.Serialize()
//
// Families never see report rows, recall or sweep axes.
package index
