// Package visited provides the reusable visited-node sets used by the graph
// families during traversal.
package visited

import "sync"

// Set tracks visited node ids using a bitset and a dirty list for fast reset.
type Set struct {
	bits  []uint64
	dirty []uint32
}

// New creates a set for ids in [0, capacity).
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks id as visited and reports whether it was unvisited before.
func (s *Set) Visit(id uint32) bool {
	w, mask := int(id>>6), uint64(1)<<(id&63)
	if s.bits[w]&mask != 0 {
		return false
	}
	s.bits[w] |= mask
	s.dirty = append(s.dirty, id)
	return true
}

// Visited reports whether id has been visited.
func (s *Set) Visited(id uint32) bool {
	return s.bits[id>>6]&(uint64(1)<<(id&63)) != 0
}

// Reset clears only the ids visited since the last reset.
func (s *Set) Reset() {
	for _, id := range s.dirty {
		s.bits[id>>6] &^= uint64(1) << (id & 63)
	}
	s.dirty = s.dirty[:0]
}

// Pool hands out sets sized for one graph.
type Pool struct {
	p sync.Pool
}

// NewPool returns a pool of sets for ids in [0, capacity).
func NewPool(capacity int) *Pool {
	return &Pool{p: sync.Pool{New: func() any { return New(capacity) }}}
}

// Get returns a cleared set.
func (p *Pool) Get() *Set { return p.p.Get().(*Set) }

// Put resets s and returns it to the pool.
func (p *Pool) Put(s *Set) {
	s.Reset()
	p.p.Put(s)
}
