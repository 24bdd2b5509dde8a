package metric

import (
	"fmt"
	"strings"
)

// Metric is the distance metric used to rank neighbors.
type Metric int

const (
	// L2 is the (squared) Euclidean distance.
	L2 Metric = iota
	// IP is the inner product; larger is closer.
	IP
	// Cosine is the cosine similarity; larger is closer.
	Cosine
)

func (m Metric) String() string {
	switch m {
	case L2:
		return "L2"
	case IP:
		return "IP"
	case Cosine:
		return "COSINE"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Parse parses a metric name. Matching is case-insensitive.
func Parse(s string) (Metric, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L2", "EUCLIDEAN":
		return L2, nil
	case "IP", "DOT", "INNER_PRODUCT":
		return IP, nil
	case "COSINE", "ANGULAR":
		return Cosine, nil
	default:
		return 0, fmt.Errorf("metric: unknown metric %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
