package precision

import (
	"fmt"
	"sync"

	"github.com/hupe1980/vecbench/internal/resource"
)

// Adapter produces converted views of one canonical base/query pair.
type Adapter struct {
	base    *Matrix
	queries *Matrix
	ctrl    *resource.Controller
}

// NewAdapter validates that base and queries share a dimensionality.
func NewAdapter(base, queries *Matrix, ctrl *resource.Controller) (*Adapter, error) {
	if base.Dim() != queries.Dim() {
		return nil, &ShapeError{What: "query dimension", Want: base.Dim(), Got: queries.Dim()}
	}
	return &Adapter{base: base, queries: queries, ctrl: ctrl}, nil
}

// Dim returns the shared dimensionality.
func (a *Adapter) Dim() int { return a.base.Dim() }

// NumQueries returns the number of available canonical queries.
func (a *Adapter) NumQueries() int { return a.queries.Rows() }

// Session opens a conversion scope for typ. The caller must Release it.
func (a *Adapter) Session(typ Type) *Session {
	return &Session{a: a, typ: typ, queries: make(map[int]*Matrix)}
}

// Session memoizes conversions for one build combination.
type Session struct {
	a   *Adapter
	typ Type

	mu       sync.Mutex
	base     *Matrix
	queries  map[int]*Matrix
	reserved int64
	released bool
}

// Type returns the session's target representation.
func (s *Session) Type() Type { return s.typ }

// Base returns the converted base matrix, converting on first use.
func (s *Session) Base() (*Matrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, fmt.Errorf("precision: session released")
	}
	if s.base == nil {
		m, err := s.convert(s.a.base)
		if err != nil {
			return nil, err
		}
		s.base = m
	}
	return s.base, nil
}

// Queries returns the first nq queries converted, converting on first use.
func (s *Session) Queries(nq int) (*Matrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, fmt.Errorf("precision: session released")
	}
	if m, ok := s.queries[nq]; ok {
		return m, nil
	}
	head, err := s.a.queries.Head(nq)
	if err != nil {
		return nil, err
	}
	m, err := s.convert(head)
	if err != nil {
		return nil, err
	}
	s.queries[nq] = m
	return m, nil
}

func (s *Session) convert(m *Matrix) (*Matrix, error) {
	if m.Type() == s.typ {
		return m, nil
	}
	size := int64(m.Rows()) * int64(m.Dim()) * int64(s.typ.ElemSize())
	if err := s.a.ctrl.AcquireMemory(size); err != nil {
		return nil, fmt.Errorf("precision: convert %d×%d to %s: %w", m.Rows(), m.Dim(), s.typ, err)
	}
	out, err := Convert(m, s.typ)
	if err != nil {
		s.a.ctrl.ReleaseMemory(size)
		return nil, err
	}
	s.reserved += size
	return out, nil
}

// Release drops all converted matrices. It is safe to call more than once.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.base = nil
	s.queries = nil
	s.a.ctrl.ReleaseMemory(s.reserved)
	s.reserved = 0
}
