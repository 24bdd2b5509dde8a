package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Metric
	}{
		{"L2", L2},
		{"l2", L2},
		{"euclidean", L2},
		{"IP", IP},
		{"inner_product", IP},
		{"cosine", Cosine},
		{" angular ", Cosine},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("hamming")
	assert.Error(t, err)
}

func TestMetric_TextRoundTrip(t *testing.T) {
	for _, m := range []Metric{L2, IP, Cosine} {
		b, err := m.MarshalText()
		require.NoError(t, err)

		var got Metric
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, m, got)
	}
}

func TestSelect(t *testing.T) {
	k, err := Select("generic")
	require.NoError(t, err)
	assert.Equal(t, Generic, k.ISA)

	k, err = Select("auto")
	require.NoError(t, err)
	assert.Equal(t, Best(), k.ISA)

	_, err = Select("sparc-vis")
	assert.Error(t, err)
}

func TestKernelsAgree(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5, 6, 7}
	b := []float32{7, 6, 5, 4, 3, 2, 1}

	assert.InDelta(t, dotGeneric(a, b), dotUnrolled(a, b), 1e-4)
	assert.InDelta(t, squaredL2Generic(a, b), squaredL2Unrolled(a, b), 1e-4)
	assert.InDelta(t, float32(84), dotGeneric(a, b), 1e-4)
	assert.InDelta(t, float32(112), squaredL2Generic(a, b), 1e-4)
}

func TestKernel_Distance(t *testing.T) {
	k, err := Select("generic")
	require.NoError(t, err)

	a := []float32{1, 0}
	near := []float32{0.9, 0.1}
	far := []float32{-1, 0}

	for _, m := range []Metric{L2, IP, Cosine} {
		fn, err := k.Distance(m)
		require.NoError(t, err)
		assert.Less(t, fn(a, near), fn(a, far), "metric %v", m)
	}

	_, err = k.Distance(Metric(42))
	assert.Error(t, err)
}

func TestKernel_Normalize(t *testing.T) {
	k, err := Select("generic")
	require.NoError(t, err)

	v := []float32{3, 4}
	require.True(t, k.Normalize(v))
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	assert.False(t, k.Normalize([]float32{0, 0}))
}
