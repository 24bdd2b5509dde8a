package precision

import (
	"fmt"
	"strings"
)

// Type is an element representation.
type Type int

const (
	Float32 Type = iota
	Float16
	BFloat16
)

// Types lists every supported representation, widest first.
func Types() []Type { return []Type{Float32, Float16, BFloat16} }

func (t Type) String() string {
	switch t {
	case Float32:
		return "fp32"
	case Float16:
		return "fp16"
	case BFloat16:
		return "bf16"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ElemSize returns the stored size of one element in bytes.
func (t Type) ElemSize() int {
	if t == Float32 {
		return 4
	}
	return 2
}

// ParseType parses "fp32", "fp16" or "bf16" (also "float32", "float16", "bfloat16").
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fp32", "float32", "f32":
		return Float32, nil
	case "fp16", "float16", "f16", "half":
		return Float16, nil
	case "bf16", "bfloat16":
		return BFloat16, nil
	default:
		return 0, fmt.Errorf("precision: unknown type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
