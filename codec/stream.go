package codec

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ForPath returns the codec implied by a file extension and the name with
// that extension stripped.
func ForPath(path string) (Type, string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return Zstd, strings.TrimSuffix(path, filepath.Ext(path))
	case ".lz4":
		return LZ4, strings.TrimSuffix(path, filepath.Ext(path))
	default:
		return None, path
	}
}

// NewReader wraps r with a streaming decoder for t. The returned closer
// releases decoder resources but does not close r.
func NewReader(t Type, r io.Reader) (io.ReadCloser, error) {
	switch t {
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

// NewWriter wraps w with a streaming encoder for t. Close flushes the
// encoder but does not close w.
func NewWriter(t Type, w io.Writer) (io.WriteCloser, error) {
	switch t {
	case Zstd:
		return zstd.NewWriter(w)
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
