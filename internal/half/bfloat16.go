package half

import "math"

// BFloat16 is the upper half of a float32 bit pattern: 1 sign bit, 8 exponent
// bits, 7 fraction bits. It keeps the float32 range and gives up precision.
type BFloat16 uint16

// Float32 widens b to float32. The conversion is exact.
func (b BFloat16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// NewBFloat16 narrows f to bfloat16.
func NewBFloat16(f float32) BFloat16 {
	bits := math.Float32bits(f)
	if bits&f32ExpMask == f32ExpMask && bits&f32FracMask != 0 {
		// Force a quiet NaN so truncation cannot produce Inf.
		return BFloat16(bits>>16) | 0x0040
	}
	// Rounding may carry into the exponent; a finite value at the top of the
	// range rounds to Inf, matching IEEE behavior.
	lsb := (bits >> 16) & 1
	bits += 0x7FFF + lsb
	return BFloat16(bits >> 16)
}

// EncodeBFloat16 narrows src into dst. dst must have len >= len(src).
func EncodeBFloat16(dst []BFloat16, src []float32) {
	for i, v := range src {
		dst[i] = NewBFloat16(v)
	}
}

// DecodeBFloat16 widens src into dst. dst must have len >= len(src).
func DecodeBFloat16(dst []float32, src []BFloat16) {
	for i, b := range src {
		dst[i] = b.Float32()
	}
}
