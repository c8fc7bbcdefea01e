package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"

	"github.com/cramio/cram/internal/pool"
)

// Bzip2Codec implements the bzip2 block compression method.
//
// The dsnet implementation is used for both directions; the standard
// library's bzip2 package only decompresses.
type Bzip2Codec struct{}

var _ Codec = Bzip2Codec{}

// NewBzip2Codec returns a bzip2 codec at the default block size.
func NewBzip2Codec() Bzip2Codec {
	return Bzip2Codec{}
}

// Compress compresses data into a bzip2 stream.
func (Bzip2Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	if err != nil {
		return nil, fmt.Errorf("bzip2 compression failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("bzip2 compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("bzip2 compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress restores a bzip2 stream.
func (Bzip2Codec) Decompress(data []byte) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("bzip2 decompression failed: %w", err)
	}
	defer r.Close()

	bb := pool.GetBlockBuffer()
	defer pool.PutBlockBuffer(bb)
	if _, err := io.Copy(bb, r); err != nil {
		return nil, fmt.Errorf("bzip2 decompression failed: %w", err)
	}

	return append([]byte(nil), bb.Bytes()...), nil
}
