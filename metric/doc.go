// Package metric defines the distance metrics a benchmark runs under and the
// float32 kernels index families use to evaluate them.
//
// Every Kernel distance is "lower is better": squared L2 as-is, inner product
// and cosine negated, so families can rank candidates the same way regardless
// of the metric.
//
// # Kernel selection
//
// The acceleration mode is chosen once per session with Select:
//
//	k, err := metric.Select("auto")   // best kernel for this CPU
//	k, err := metric.Select("generic") // reference scalar loops
//	k, err := metric.Select("avx2")    // fails if the CPU lacks AVX2+FMA
//
// CPU capabilities are detected with golang.org/x/sys/cpu.
package metric
