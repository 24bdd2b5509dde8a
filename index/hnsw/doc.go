// Package hnsw implements the HNSW family: a hierarchical navigable
// small-world graph built by parallel insertion.
//
// Build parameters: M (max links per node above layer 0, 2*M at layer 0)
// and efConstruction. Search parameters: ef (raised to k when smaller).
//
// Vectors are kept at the instance precision in serialized form; a widened
// float32 copy of the already-rounded values is used for traversal.
package hnsw
