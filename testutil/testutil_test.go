package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(7).ClusteredMatrix(10, 4, 3, 0.1)
	b := NewRNG(7).ClusteredMatrix(10, 4, 3, 0.1)
	assert.Equal(t, a.Float32s(), b.Float32s())
	assert.Equal(t, int64(7), NewRNG(7).Seed())
}

func TestBruteForce(t *testing.T) {
	rng := NewRNG(1)
	base := rng.UniformMatrix(50, 3)

	truth := BruteForce(base, base, 1, L2())
	for i, ids := range truth {
		assert.Equal(t, []int64{int64(i)}, ids)
	}
}

func TestRecall(t *testing.T) {
	assert.Equal(t, 0.5, Recall([][]int64{{1, 9}, {3, 4}, {7, 8}}, [][]int64{{1, 2}, {3, 4}, {5, 6}}))
	assert.Equal(t, 0.0, Recall(nil, nil))
}
