// Package half implements the 16-bit floating point storage formats used by
// reduced-precision index variants: IEEE-754 binary16 (Float16) and bfloat16
// (BFloat16).
//
// Both are storage formats only; all arithmetic happens in float32 after
// decoding. Encoding rounds to nearest, ties to even.
package half
