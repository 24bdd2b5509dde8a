// Package lifecycle owns index instances on behalf of the sweep driver.
//
// A Manager hands out at most one live Handle at a time. Each handle is
// bound to a (family, metric, precision) triple and gets a private work
// directory, locked against other processes, which is removed when the
// handle is released:
//
//	h, err := m.Create("HNSW", precision.Float16)
//	if err != nil { ... }
//	defer m.Release(ctx, h)
//
//	elapsed, err := m.Build(ctx, h, base, build)
//	ids, elapsed, err := m.Search(ctx, h, queries, k, build.With(search))
//
// Persist compresses the serialized blobs with the configured codec and
// writes them to the configured blob store. Restore replaces the instance
// with a fresh one loaded from such an artifact.
package lifecycle
