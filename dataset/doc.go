// Package dataset supplies the base vectors, query vectors and ground-truth
// neighbor lists a sweep runs against.
//
// Datasets are loaded once, validated once and never mutated. Two sources
// are provided: a seeded clustered generator with exact brute-force ground
// truth, and readers for the TEXMEX .fvecs/.ivecs/.bvecs files, optionally
// compressed with zstd (.zst) or lz4 (.lz4).
package dataset
