// Package binfmt is the little-endian, checksummed blob format the index
// families serialize to.
//
// Every blob starts with a fixed Header and ends with a CRC32 (IEEE) of all
// preceding bytes. Readers verify the checksum before decoding anything.
package binfmt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

const (
	// Magic identifies vecbench blobs (ASCII: "VBNC").
	Magic uint32 = 0x56424E43
	// Version is the current blob format version.
	Version uint32 = 1
)

var (
	ErrInvalidMagic   = errors.New("binfmt: invalid magic number")
	ErrInvalidVersion = errors.New("binfmt: unsupported version")
	ErrChecksum       = errors.New("binfmt: checksum mismatch")
	ErrFamilyMismatch = errors.New("binfmt: family mismatch")
	ErrTruncated      = errors.New("binfmt: truncated blob")
)

var (
	byteOrder    = binary.LittleEndian
	headerSize   = binary.Size(Header{})
	checksumSize = 4
)

// Header is the fixed-size prefix of every blob.
type Header struct {
	Magic     uint32
	Version   uint32
	Family    [16]byte
	Metric    uint8
	Precision uint8
	_         [2]byte
	Dim       uint32
	Rows      uint64
	Reserved  [16]byte
}

// NewHeader fills in the family tag and shape.
func NewHeader(family string, metric, precision uint8, rows, dim int) Header {
	h := Header{Metric: metric, Precision: precision, Rows: uint64(rows), Dim: uint32(dim)}
	copy(h.Family[:], family)
	return h
}

// FamilyName returns the family tag as a string.
func (h *Header) FamilyName() string {
	return string(bytes.TrimRight(h.Family[:], "\x00"))
}

// Writer appends fields to a blob while maintaining its checksum.
type Writer struct {
	w   io.Writer
	crc hash.Hash32
	err error
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	crc := crc32.NewIEEE()
	return &Writer{w: io.MultiWriter(w, crc), crc: crc}
}

// Write writes v (a fixed-size value or slice of fixed-size values).
// Errors are sticky and reported by Finish.
func (bw *Writer) Write(v any) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, byteOrder, v)
}

// WriteHeader stamps magic and version and writes h.
func (bw *Writer) WriteHeader(h Header) {
	h.Magic = Magic
	h.Version = Version
	bw.Write(&h)
}

// Finish writes the trailing checksum and returns the first error seen.
func (bw *Writer) Finish() error {
	if bw.err != nil {
		return bw.err
	}
	sum := bw.crc.Sum32()
	return binary.Write(bw.w, byteOrder, sum)
}

// Encode runs fn against a buffer-backed Writer and returns the finished blob.
func Encode(fn func(w *Writer)) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	fn(w)
	if err := w.Finish(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Reader decodes fields from a verified blob.
type Reader struct {
	r   *bytes.Reader
	err error
}

// NewReader verifies the trailing checksum of data and returns a Reader
// positioned at the header.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < headerSize+checksumSize {
		return nil, ErrTruncated
	}
	body := data[:len(data)-checksumSize]
	want := byteOrder.Uint32(data[len(data)-checksumSize:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, fmt.Errorf("%w: 0x%08X (expected 0x%08X)", ErrChecksum, got, want)
	}
	return &Reader{r: bytes.NewReader(body)}, nil
}

// ReadHeader reads and validates the header against family.
func (br *Reader) ReadHeader(family string) (Header, error) {
	var h Header
	if err := binary.Read(br.r, byteOrder, &h); err != nil {
		return h, err
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	if name := h.FamilyName(); name != family {
		return h, fmt.Errorf("%w: blob is %q, want %q", ErrFamilyMismatch, name, family)
	}
	return h, nil
}

// Read decodes into v (a pointer or pre-sized slice). Errors are sticky.
func (br *Reader) Read(v any) {
	if br.err != nil {
		return
	}
	if err := binary.Read(br.r, byteOrder, v); err != nil {
		br.err = fmt.Errorf("%w: %v", ErrTruncated, err)
	}
}

// Uint32 reads one uint32.
func (br *Reader) Uint32() uint32 {
	var v uint32
	br.Read(&v)
	return v
}

// Float32s reads n float32 values.
func (br *Reader) Float32s(n int) []float32 {
	if !br.fits(n, 4) {
		return nil
	}
	v := make([]float32, n)
	br.Read(v)
	return v
}

// Uint16s reads n uint16 values.
func (br *Reader) Uint16s(n int) []uint16 {
	if !br.fits(n, 2) {
		return nil
	}
	v := make([]uint16, n)
	br.Read(v)
	return v
}

// Uint32s reads n uint32 values.
func (br *Reader) Uint32s(n int) []uint32 {
	if !br.fits(n, 4) {
		return nil
	}
	v := make([]uint32, n)
	br.Read(v)
	return v
}

// Int64s reads n int64 values.
func (br *Reader) Int64s(n int) []int64 {
	if !br.fits(n, 8) {
		return nil
	}
	v := make([]int64, n)
	br.Read(v)
	return v
}

// Bytes reads n raw bytes.
func (br *Reader) Bytes(n int) []byte {
	if !br.fits(n, 1) {
		return nil
	}
	v := make([]byte, n)
	br.Read(v)
	return v
}

// Err returns the first decoding error.
func (br *Reader) Err() error { return br.err }

// fits guards allocations against corrupt counts.
func (br *Reader) fits(n, size int) bool {
	if br.err != nil {
		return false
	}
	if n < 0 || int64(n)*int64(size) > int64(br.r.Len()) {
		br.err = ErrTruncated
		return false
	}
	return true
}

// SaveToFile writes a file atomically: fn writes to a temp file in the same
// directory, which is synced and renamed over filename.
func SaveToFile(filename string, fn func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := fn(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	tmpName = ""
	return nil
}

// HeaderSize returns the encoded size of Header in bytes.
func HeaderSize() int { return headerSize }
