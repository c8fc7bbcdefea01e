package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/cramio/cram/internal/pool"
)

// gzipWriterPool pools gzip writers; the deflate state is expensive to
// build and benefits from reuse.
var gzipWriterPool = sync.Pool{
	New: func() any {
		w, err := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		if err != nil {
			panic(fmt.Sprintf("failed to create gzip writer for pool: %v", err))
		}

		return w
	},
}

// GzipCodec implements the gzip block compression method.
type GzipCodec struct{}

var _ Codec = GzipCodec{}

// NewGzipCodec returns a gzip codec at the default compression level.
func NewGzipCodec() GzipCodec {
	return GzipCodec{}
}

// Compress compresses data into an RFC 1952 gzip member.
func (GzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data)/2 + 64)

	w, _ := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress restores a gzip member.
func (GzipCodec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip decompression failed: %w", err)
	}
	defer r.Close()

	bb := pool.GetBlockBuffer()
	defer pool.PutBlockBuffer(bb)
	if _, err := io.Copy(bb, r); err != nil {
		return nil, fmt.Errorf("gzip decompression failed: %w", err)
	}

	return append([]byte(nil), bb.Bytes()...), nil
}
