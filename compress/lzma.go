package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/cramio/cram/internal/pool"
)

// LzmaCodec implements the LZMA block compression method using the legacy
// LZMA-alone stream format that the container format specifies.
type LzmaCodec struct{}

var _ Codec = LzmaCodec{}

// NewLzmaCodec returns an LZMA codec with default writer parameters.
func NewLzmaCodec() LzmaCodec {
	return LzmaCodec{}
}

// Compress compresses data into an LZMA-alone stream.
func (LzmaCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("lzma compression failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lzma compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lzma compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress restores an LZMA-alone stream.
func (LzmaCodec) Decompress(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("lzma decompression failed: %w", err)
	}

	bb := pool.GetBlockBuffer()
	defer pool.PutBlockBuffer(bb)
	if _, err := io.Copy(bb, r); err != nil {
		return nil, fmt.Errorf("lzma decompression failed: %w", err)
	}

	return append([]byte(nil), bb.Bytes()...), nil
}
