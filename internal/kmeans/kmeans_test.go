package kmeans

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/metric"
)

func l2(t *testing.T) metric.Func {
	t.Helper()
	k, err := metric.Select("generic")
	require.NoError(t, err)
	fn, err := k.Distance(metric.L2)
	require.NoError(t, err)
	return fn
}

func TestTrain_TwoClusters(t *testing.T) {
	vectors := []float32{
		0, 0, 0.1, 0, 0, 0.1, 0.1, 0.1,
		10, 10, 10.1, 10, 10, 10.1, 10.1, 10.1,
	}
	dist := l2(t)

	centroids, err := Train(context.Background(), vectors, 2, Config{
		K:          2,
		MaxIter:    20,
		Seed:       1,
		Distance:   dist,
		Controller: resource.NewController(resource.Config{BuildThreads: 2}),
	})
	require.NoError(t, err)
	require.Len(t, centroids, 4)

	a := Nearest([]float32{0, 0}, centroids, 2, dist)
	b := Nearest([]float32{10, 10}, centroids, 2, dist)
	assert.NotEqual(t, a, b)
	assert.InDelta(t, 0.05, centroids[a*2], 0.01)
	assert.InDelta(t, 10.05, centroids[b*2], 0.01)
}

func TestTrain_TooFewVectors(t *testing.T) {
	_, err := Train(context.Background(), []float32{1, 2}, 2, Config{K: 2, Distance: l2(t)})
	assert.ErrorIs(t, err, ErrTooFewVectors)
}

func TestTrain_Deterministic(t *testing.T) {
	vectors := make([]float32, 0, 200)
	for i := 0; i < 100; i++ {
		vectors = append(vectors, float32(i%10), float32(i/10))
	}
	cfg := Config{K: 4, MaxIter: 10, Seed: 42, Distance: l2(t)}

	a, err := Train(context.Background(), vectors, 2, cfg)
	require.NoError(t, err)
	b, err := Train(context.Background(), vectors, 2, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNearestN(t *testing.T) {
	centroids := []float32{0, 0, 5, 5, 1, 1}
	got := NearestN([]float32{0.9, 0.9}, centroids, 2, 2, l2(t))
	assert.Equal(t, []int{2, 0}, got)

	assert.Len(t, NearestN([]float32{0, 0}, centroids, 2, 10, l2(t)), 3)
	assert.Nil(t, NearestN([]float32{0, 0}, centroids, 2, 0, l2(t)))
}
