package metric

import (
	"fmt"
	"math"
	"strings"
)

// Func returns a "lower is better" distance between two equal-length vectors.
type Func func(a, b []float32) float32

// Kernel bundles the float32 primitives for one acceleration mode.
type Kernel struct {
	// ISA is the instruction set the kernel was selected for.
	ISA ISA

	Dot       func(a, b []float32) float32
	SquaredL2 func(a, b []float32) float32
}

// Select returns the kernel for mode ("auto", "generic", "neon", "avx2", "avx512").
// Requesting an ISA the CPU does not support is an error.
func Select(mode string) (Kernel, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	isa := ISA(mode)
	if mode == "" || mode == "auto" {
		isa = Best()
	}
	if !Available(isa) {
		return Kernel{}, fmt.Errorf("metric: acceleration mode %q not available on this CPU", mode)
	}
	if isa == Generic {
		return Kernel{ISA: Generic, Dot: dotGeneric, SquaredL2: squaredL2Generic}, nil
	}
	return Kernel{ISA: isa, Dot: dotUnrolled, SquaredL2: squaredL2Unrolled}, nil
}

// Distance returns the "lower is better" distance function for m.
// Cosine assumes both operands are L2-normalized (see Normalize).
func (k Kernel) Distance(m Metric) (Func, error) {
	switch m {
	case L2:
		return k.SquaredL2, nil
	case IP, Cosine:
		dot := k.Dot
		return func(a, b []float32) float32 { return -dot(a, b) }, nil
	default:
		return nil, fmt.Errorf("metric: unsupported metric %v", m)
	}
}

// Normalize L2-normalizes v in place. Returns false for a zero vector.
func (k Kernel) Normalize(v []float32) bool {
	n2 := k.Dot(v, v)
	if n2 == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(float64(n2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

func dotGeneric(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func squaredL2Generic(a, b []float32) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// The unrolled variants keep four independent accumulators so the compiler
// can schedule the multiplies on wide cores.

func dotUnrolled(a, b []float32) float32 {
	b = b[:len(a)]
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3)
}

func squaredL2Unrolled(a, b []float32) float32 {
	b = b[:len(a)]
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < len(a); i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return (s0 + s1) + (s2 + s3)
}
