// Package ivf implements the inverted-file families IVF_FLAT, IVF_SQ8 and
// IVF_PQ.
//
// Build trains nlist coarse centroids with k-means and assigns every base
// vector to its nearest list. Lists store vectors at the instance precision
// (IVF_FLAT), as 8-bit scalar codes (IVF_SQ8) or as product-quantized codes
// (IVF_PQ). Search probes the nprobe nearest lists.
//
// Build parameters: nlist, plus m and nbits for IVF_PQ.
// Search parameters: nprobe.
package ivf
