package half

import "math"

// Float16 is the raw IEEE-754 binary16 bit pattern.
//
// Layout:
//
//	sign: 1 bit
//	exp:  5 bits (bias 15)
//	frac: 10 bits
type Float16 uint16

const (
	f16Sign Float16 = 0x8000
	f16Exp  Float16 = 0x7C00
	f16Frac Float16 = 0x03FF

	f32ExpMask  uint32 = 0x7F800000
	f32FracMask uint32 = 0x007FFFFF
)

// Float32 widens h to float32. The conversion is exact.
func (h Float16) Float32() float32 {
	sign := uint32(h&f16Sign) << 16
	exp := uint32(h&f16Exp) >> 10
	frac := uint32(h & f16Frac)

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: shift until the implicit bit appears.
		e := int32(-14)
		for frac&0x0400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x03FF
		return math.Float32frombits(sign | uint32(127+e)<<23 | frac<<13)
	case 0x1F:
		return math.Float32frombits(sign | f32ExpMask | frac<<13)
	default:
		return math.Float32frombits(sign | uint32(int32(exp)-15+127)<<23 | frac<<13)
	}
}

// NewFloat16 narrows f to binary16.
func NewFloat16(f float32) Float16 {
	bits := math.Float32bits(f)
	sign := Float16(bits>>16) & f16Sign
	exp := int32((bits & f32ExpMask) >> 23)
	frac := bits & f32FracMask

	if exp == 0xFF {
		if frac == 0 {
			return sign | f16Exp
		}
		// Quiet NaN, keep the top payload bits.
		return sign | f16Exp | 0x0200 | Float16(frac>>13)&f16Frac
	}

	// float32 subnormals are far below the binary16 range.
	if exp == 0 {
		return sign
	}

	e16 := exp - 127 + 15
	if e16 >= 0x1F {
		return sign | f16Exp
	}

	if e16 <= 0 {
		if e16 < -10 {
			return sign
		}
		mant := frac | 0x00800000
		shift := uint32(1-e16) + 13
		return sign | Float16(roundShift(mant, shift))
	}

	m := roundShift(frac, 13)
	if m == 0x0400 {
		m = 0
		e16++
		if e16 >= 0x1F {
			return sign | f16Exp
		}
	}
	return sign | Float16(uint32(e16)<<10|m)
}

// roundShift returns v >> shift rounded to nearest, ties to even.
func roundShift(v, shift uint32) uint32 {
	m := v >> shift
	rem := v & (1<<shift - 1)
	halfway := uint32(1) << (shift - 1)
	if rem > halfway || (rem == halfway && m&1 == 1) {
		m++
	}
	return m
}

// EncodeFloat16 narrows src into dst. dst must have len >= len(src).
func EncodeFloat16(dst []Float16, src []float32) {
	for i, v := range src {
		dst[i] = NewFloat16(v)
	}
}

// DecodeFloat16 widens src into dst. dst must have len >= len(src).
func DecodeFloat16(dst []float32, src []Float16) {
	for i, h := range src {
		dst[i] = h.Float32()
	}
}
