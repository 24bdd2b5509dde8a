// Package queue provides the binary heaps the index families use to collect
// candidates during search.
package queue

import "sort"

// Item is a candidate id with its "lower is better" distance.
type Item struct {
	ID       int64
	Distance float32
}

// PriorityQueue is a value-based binary heap of Items.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin returns a heap whose top is the smallest distance.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// NewMax returns a heap whose top is the largest distance.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{isMaxHeap: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items in the queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Top returns the top item without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// Pop removes and returns the top item.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// Reset clears the queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return pq.items[i].Distance > pq.items[j].Distance
	}
	return pq.items[i].Distance < pq.items[j].Distance
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}

// TopK keeps the k items with the smallest distance seen so far.
type TopK struct {
	k    int
	heap *PriorityQueue
}

// NewTopK returns a collector for the k nearest items.
func NewTopK(k int) *TopK {
	return &TopK{k: k, heap: NewMax(k + 1)}
}

// Offer considers an item for the result set.
func (t *TopK) Offer(id int64, d float32) {
	if t.k <= 0 {
		return
	}
	if t.heap.Len() < t.k {
		t.heap.Push(Item{ID: id, Distance: d})
		return
	}
	if top, _ := t.heap.Top(); d < top.Distance {
		t.heap.items[0] = Item{ID: id, Distance: d}
		t.heap.siftDown(0)
	}
}

// Worst returns the largest kept distance and whether the set is full.
func (t *TopK) Worst() (float32, bool) {
	top, ok := t.heap.Top()
	return top.Distance, ok && t.heap.Len() == t.k
}

// Items returns the kept items sorted by ascending distance, ties by id.
func (t *TopK) Items() []Item {
	out := make([]Item, len(t.heap.items))
	copy(out, t.heap.items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IDs returns the kept ids sorted by ascending distance.
func (t *TopK) IDs() []int64 {
	items := t.Items()
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
