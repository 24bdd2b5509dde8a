package recall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Scenario(t *testing.T) {
	truth := [][]int64{{1, 2}, {3, 4}, {5, 6}}
	predicted := [][]int64{{1, 9}, {3, 4}, {7, 8}}

	hits, err := Hits(predicted, truth, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, hits)

	r, err := Compute(predicted, truth, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r, 1e-12)
}

func TestCompute_Cases(t *testing.T) {
	truth := [][]int64{{10, 11, 12, 13}, {20, 21, 22, 23}}

	tests := []struct {
		name      string
		predicted [][]int64
		k         int
		want      float64
	}{
		{"exact", truth, 4, 1.0},
		{"exact prefix", truth, 2, 1.0},
		{"order insensitive", [][]int64{{13, 12}, {21, 20}}, 2, 1.0},
		{"empty", [][]int64{{}, {}}, 3, 0.0},
		{"nil rows", [][]int64{nil, nil}, 1, 0.0},
		{"short result counts as miss", [][]int64{{10}, {20}}, 2, 0.5},
		{"duplicates credited once", [][]int64{{10, 10}, {20, 20}}, 2, 0.5},
		{"padding never hits", [][]int64{{-1, 10}, {-1, -1}}, 2, 0.25},
		{"only first k checked", [][]int64{{99, 10}, {99, 20}}, 1, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.predicted, truth, tt.k)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestHits_NonDecreasingInK(t *testing.T) {
	truth := [][]int64{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}}
	predicted := [][]int64{{9, 1, 2, 2, 42, 5}, {6, 1, 7, 8, 3}}
	g := NewGroundTruth(truth)

	prev := 0
	for k := 1; k <= 6; k++ {
		hits, err := g.Hits(predicted, k)
		require.NoError(t, err)
		total := hits[0] + hits[1]
		assert.GreaterOrEqual(t, total, prev, "k=%d", k)
		prev = total
	}
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute([][]int64{{1}}, [][]int64{{1}, {2}}, 1)
	assert.ErrorIs(t, err, ErrQueryCount)

	_, err = Compute([][]int64{{1}}, [][]int64{{1}}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestGroundTruth_Head(t *testing.T) {
	g := NewGroundTruth([][]int64{{1}, {2}, {3}})
	head, err := g.Head(2)
	require.NoError(t, err)
	assert.Equal(t, 2, head.Len())

	r, err := head.Compute([][]int64{{1}, {2}}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	_, err = g.Head(4)
	assert.ErrorIs(t, err, ErrQueryCount)
}
