// Package recall scores search results against ground-truth neighbor lists.
//
// Recall@k counts, per query, how many of the first k predicted ids appear
// anywhere in that query's ground-truth list, and divides the total by
// nq × k. Duplicate predictions are credited once, short results count as
// misses and negative ids (padding) never hit.
package recall

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

var (
	// ErrQueryCount is returned when predictions and ground truth cover a
	// different number of queries.
	ErrQueryCount = errors.New("recall: query count mismatch")
	// ErrInvalidK is returned for k <= 0.
	ErrInvalidK = errors.New("recall: k must be positive")
)

// GroundTruth holds one membership set per query.
type GroundTruth struct {
	sets []*roaring64.Bitmap
}

// NewGroundTruth indexes lists for repeated scoring. Negative ids are ignored.
func NewGroundTruth(lists [][]int64) *GroundTruth {
	sets := make([]*roaring64.Bitmap, len(lists))
	for i, ids := range lists {
		bm := roaring64.New()
		for _, id := range ids {
			if id >= 0 {
				bm.Add(uint64(id))
			}
		}
		sets[i] = bm
	}
	return &GroundTruth{sets: sets}
}

// Len returns the number of queries.
func (g *GroundTruth) Len() int { return len(g.sets) }

// Head returns ground truth restricted to the first nq queries.
func (g *GroundTruth) Head(nq int) (*GroundTruth, error) {
	if nq < 0 || nq > len(g.sets) {
		return nil, fmt.Errorf("%w: want %d queries, ground truth has %d", ErrQueryCount, nq, len(g.sets))
	}
	return &GroundTruth{sets: g.sets[:nq]}, nil
}

// Hits returns the per-query hit counts among the first k predictions.
func (g *GroundTruth) Hits(predicted [][]int64, k int) ([]int, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(predicted) != len(g.sets) {
		return nil, fmt.Errorf("%w: %d predicted, %d ground truth", ErrQueryCount, len(predicted), len(g.sets))
	}

	hits := make([]int, len(predicted))
	seen := roaring64.New()
	for q, ids := range predicted {
		seen.Clear()
		truth := g.sets[q]
		for _, id := range ids[:min(k, len(ids))] {
			if id < 0 {
				continue
			}
			u := uint64(id)
			if truth.Contains(u) && seen.CheckedAdd(u) {
				hits[q]++
			}
		}
	}
	return hits, nil
}

// Compute returns recall@k in [0, 1].
func (g *GroundTruth) Compute(predicted [][]int64, k int) (float64, error) {
	hits, err := g.Hits(predicted, k)
	if err != nil {
		return 0, err
	}
	if len(hits) == 0 {
		return 0, nil
	}
	total := 0
	for _, h := range hits {
		total += h
	}
	return float64(total) / float64(len(hits)*k), nil
}

// Compute is a one-shot recall@k over plain ground-truth lists.
func Compute(predicted, groundTruth [][]int64, k int) (float64, error) {
	return NewGroundTruth(groundTruth).Compute(predicted, k)
}

// Hits is a one-shot per-query hit count over plain ground-truth lists.
func Hits(predicted, groundTruth [][]int64, k int) ([]int, error) {
	return NewGroundTruth(groundTruth).Hits(predicted, k)
}
