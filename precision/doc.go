// Package precision converts canonical float32 matrices into the element
// representation an index variant runs at (fp32, fp16 or bf16).
//
// Conversions are lazy and scoped: an Adapter hands out Sessions, one per
// build combination, and each Session converts the base matrix and each
// query batch at most once. Releasing the Session drops the converted data
// and returns its memory reservation to the resource controller, so large
// conversions never outlive the family run that needed them.
package precision
