package metric

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// ISA is a CPU instruction set family the kernels can be tuned for.
type ISA string

const (
	Generic ISA = "generic"
	NEON    ISA = "neon"
	AVX2    ISA = "avx2"
	AVX512  ISA = "avx512"
)

// Available reports whether the running CPU supports isa.
func Available(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case NEON:
		return runtime.GOARCH == "arm64" && cpu.ARM64.HasASIMD
	case AVX2:
		return runtime.GOARCH == "amd64" && cpu.X86.HasAVX2 && cpu.X86.HasFMA
	case AVX512:
		return runtime.GOARCH == "amd64" && cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW
	default:
		return false
	}
}

// Best returns the widest ISA available on this CPU.
func Best() ISA {
	for _, isa := range []ISA{AVX512, AVX2, NEON} {
		if Available(isa) {
			return isa
		}
	}
	return Generic
}
