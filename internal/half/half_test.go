package half

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat16_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		in   Float16
		want float32
	}{
		{"+0", 0x0000, 0},
		{"+1", 0x3C00, 1},
		{"-1", 0xBC00, -1},
		{"2", 0x4000, 2},
		{"max", 0x7BFF, 65504},
		{"+Inf", 0x7C00, float32(math.Inf(1))},
		{"-Inf", 0xFC00, float32(math.Inf(-1))},
		{"min subnormal", 0x0001, float32(math.Ldexp(1, -24))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Float32())
			assert.Equal(t, tt.in, NewFloat16(tt.want))
		})
	}
}

func TestFloat16_NegativeZero(t *testing.T) {
	negZero := float32(math.Copysign(0, -1))
	assert.Equal(t, Float16(0x8000), NewFloat16(negZero))
	assert.Equal(t, math.Float32bits(negZero), math.Float32bits(Float16(0x8000).Float32()))
}

func TestFloat16_NaN(t *testing.T) {
	h := NewFloat16(float32(math.NaN()))
	assert.Equal(t, f16Exp, h&f16Exp)
	assert.NotZero(t, h&f16Frac)
	assert.True(t, math.IsNaN(float64(h.Float32())))
}

func TestFloat16_Overflow(t *testing.T) {
	assert.Equal(t, Float16(0x7C00), NewFloat16(1e6))
	assert.Equal(t, Float16(0xFC00), NewFloat16(-1e6))
}

func TestFloat16_Underflow(t *testing.T) {
	assert.Equal(t, Float16(0), NewFloat16(1e-10))
}

func TestFloat16_RoundsToNearestEven(t *testing.T) {
	// 1 + 2^-11 is exactly halfway between 1 and the next binary16 value; ties go to even (1).
	assert.Equal(t, Float16(0x3C00), NewFloat16(1+float32(math.Ldexp(1, -11))))
	// 1 + 3*2^-11 is halfway between two odd/even neighbors; rounds up to the even one.
	assert.Equal(t, Float16(0x3C02), NewFloat16(1+3*float32(math.Ldexp(1, -11))))
}

func TestFloat16_PowersOfTwoRoundTrip(t *testing.T) {
	for e := -14; e <= 15; e++ {
		f := float32(math.Ldexp(1, e))
		assert.Equal(t, f, NewFloat16(f).Float32(), "2^%d", e)
	}
}

func TestFloat16_SliceCodec(t *testing.T) {
	src := []float32{0, 0.5, -0.25, 3.140625, 1024}
	enc := make([]Float16, len(src))
	EncodeFloat16(enc, src)

	dec := make([]float32, len(src))
	DecodeFloat16(dec, enc)
	assert.Equal(t, src, dec)
}

func TestBFloat16_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		in   BFloat16
		want float32
	}{
		{"+0", 0x0000, 0},
		{"+1", 0x3F80, 1},
		{"-2", 0xC000, -2},
		{"+Inf", 0x7F80, float32(math.Inf(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Float32())
			assert.Equal(t, tt.in, NewBFloat16(tt.want))
		})
	}
}

func TestBFloat16_Rounding(t *testing.T) {
	// 1 + 2^-8 is halfway between 1 and 1+2^-7; ties go to even (1).
	assert.Equal(t, BFloat16(0x3F80), NewBFloat16(1+float32(math.Ldexp(1, -8))))
	// Slightly above halfway rounds up.
	assert.Equal(t, BFloat16(0x3F81), NewBFloat16(1+float32(math.Ldexp(1, -8))+float32(math.Ldexp(1, -20))))
}

func TestBFloat16_NaNStaysNaN(t *testing.T) {
	nan := math.Float32frombits(0x7F800001)
	assert.True(t, math.IsNaN(float64(NewBFloat16(nan).Float32())))
}

func TestBFloat16_KeepsFloat32Range(t *testing.T) {
	// Values far outside binary16 range survive in bfloat16.
	v := float32(1e30)
	got := NewBFloat16(v).Float32()
	assert.InEpsilon(t, v, got, 1e-2)
}

func TestBFloat16_SliceCodec(t *testing.T) {
	src := []float32{0, 1, -1.5, 256, 0.125}
	enc := make([]BFloat16, len(src))
	EncodeBFloat16(enc, src)

	dec := make([]float32, len(src))
	DecodeBFloat16(dec, enc)
	assert.Equal(t, src, dec)
}
