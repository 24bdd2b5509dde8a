// Package quantization provides the vector codecs behind the IVF_SQ8 and
// IVF_PQ families: an 8-bit per-dimension scalar quantizer and a product
// quantizer with asymmetric distance tables.
package quantization
