package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		typ, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, typ.String())
	}
	_, err := ByName("gzip")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestCompress_RoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("vecbench-"), 1000)
	random := make([]byte, 512)
	for i := range random {
		random[i] = byte(i*131 + i*i*7)
	}

	for _, typ := range []Type{None, LZ4, Zstd} {
		for name, data := range map[string][]byte{"compressible": compressible, "noisy": random, "empty": {}} {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				block, err := Compress(typ, data)
				require.NoError(t, err)
				if typ != None && name == "compressible" {
					assert.Less(t, len(block), len(data)/2)
				}
				got, err := Decompress(typ, block)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.True(t, bytes.Equal(data, got))
			})
		}
	}
}

func TestDecompress_Corrupt(t *testing.T) {
	_, err := Decompress(LZ4, []byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)

	block, err := Compress(Zstd, bytes.Repeat([]byte{7}, 4096))
	require.NoError(t, err)
	_, err = Decompress(Zstd, block[:len(block)-1])
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStream_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	for _, path := range []string{"base.fvecs.zst", "base.fvecs.lz4", "base.fvecs"} {
		t.Run(path, func(t *testing.T) {
			typ, stripped := ForPath(path)
			assert.Equal(t, "base.fvecs", stripped)

			var buf bytes.Buffer
			w, err := NewWriter(typ, &buf)
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := NewReader(typ, &buf)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}
