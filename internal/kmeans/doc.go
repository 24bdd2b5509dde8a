// Package kmeans trains the coarse centroids used by the inverted-file
// families and the sub-space codebooks used by product quantization.
package kmeans
