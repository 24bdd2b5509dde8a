package binfmt

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeSample(t *testing.T) []byte {
	t.Helper()
	data, err := Encode(func(w *Writer) {
		w.WriteHeader(NewHeader("HNSW", 1, 2, 3, 4))
		w.Write(uint32(7))
		w.Write([]float32{1.5, -2})
		w.Write([]int64{-1, 42})
	})
	require.NoError(t, err)
	return data
}

func TestEncodeDecode(t *testing.T) {
	r, err := NewReader(encodeSample(t))
	require.NoError(t, err)

	h, err := r.ReadHeader("HNSW")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), h.Metric)
	assert.Equal(t, uint8(2), h.Precision)
	assert.Equal(t, uint64(3), h.Rows)
	assert.Equal(t, uint32(4), h.Dim)

	assert.Equal(t, uint32(7), r.Uint32())
	assert.Equal(t, []float32{1.5, -2}, r.Float32s(2))
	assert.Equal(t, []int64{-1, 42}, r.Int64s(2))
	assert.NoError(t, r.Err())

	r.Uint32()
	assert.ErrorIs(t, r.Err(), ErrTruncated)
}

func TestReader_Checksum(t *testing.T) {
	data := encodeSample(t)
	data[headerSize+1] ^= 0xFF

	_, err := NewReader(data)
	assert.ErrorIs(t, err, ErrChecksum)

	_, err = NewReader(data[:10])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReader_FamilyMismatch(t *testing.T) {
	r, err := NewReader(encodeSample(t))
	require.NoError(t, err)

	_, err = r.ReadHeader("IDMAP")
	assert.ErrorIs(t, err, ErrFamilyMismatch)
}

func TestReader_CorruptCount(t *testing.T) {
	r, err := NewReader(encodeSample(t))
	require.NoError(t, err)
	_, err = r.ReadHeader("HNSW")
	require.NoError(t, err)

	assert.Nil(t, r.Float32s(1<<30))
	assert.ErrorIs(t, r.Err(), ErrTruncated)
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.bin")

	require.NoError(t, SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("payload"))
		return err
	}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
