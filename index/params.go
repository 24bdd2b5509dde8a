package index

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params is a named set of integer hyperparameters.
type Params map[string]int

// With returns a copy of p overlaid with o. Neither input is modified.
func (p Params) With(o Params) Params {
	out := make(Params, len(p)+len(o))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Get returns the value of name, or def if unset.
func (p Params) Get(name string, def int) int {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Require returns the value of name, or an error if it is unset or below lo.
func (p Params) Require(name string, lo int) (int, error) {
	v, ok := p[name]
	if !ok {
		return 0, &ParamError{Name: name, Reason: "missing"}
	}
	if v < lo {
		return 0, &ParamError{Name: name, Value: v, Reason: fmt.Sprintf("must be >= %d", lo)}
	}
	return v, nil
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders p as "k1=v1,k2=v2" with keys sorted.
func (p Params) String() string {
	var sb strings.Builder
	for i, k := range p.Keys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.Itoa(p[k]))
	}
	return sb.String()
}

// ParseParams parses the String form. An empty string yields an empty set.
func ParseParams(s string) (Params, error) {
	p := Params{}
	if strings.TrimSpace(s) == "" {
		return p, nil
	}
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("index: malformed parameter %q", kv)
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("index: parameter %q: %w", k, err)
		}
		p[strings.TrimSpace(k)] = n
	}
	return p, nil
}

// ParamError reports a missing or out-of-range hyperparameter.
type ParamError struct {
	Name   string
	Value  int
	Reason string
}

func (e *ParamError) Error() string {
	if e.Reason == "missing" {
		return fmt.Sprintf("index: parameter %q is required", e.Name)
	}
	return fmt.Sprintf("index: parameter %s=%d %s", e.Name, e.Value, e.Reason)
}
