package encoding

import (
	"github.com/cramio/cram/format"
)

// ByteCursor is a forward-only cursor over a decompressed block payload.
// Reads return subslices of the backing array, never copies.
type ByteCursor struct {
	data []byte
	pos  int
}

// NewByteCursor returns a cursor over data.
func NewByteCursor(data []byte) *ByteCursor {
	return &ByteCursor{data: data}
}

// ReadByte implements io.ByteReader.
func (c *ByteCursor) ReadByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, format.Corruptionf("external stream exhausted at byte %d", c.pos)
	}
	b := c.data[c.pos]
	c.pos++

	return b, nil
}

// ReadBytes returns the next n bytes as a subslice.
func (c *ByteCursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, format.Corruptionf("negative read length %d", n)
	}
	if c.pos+n > len(c.data) {
		return nil, format.Corruptionf("external stream exhausted: need %d bytes at offset %d of %d",
			n, c.pos, len(c.data))
	}
	p := c.data[c.pos : c.pos+n]
	c.pos += n

	return p, nil
}

// ReadUntil returns the bytes up to (excluding) the next occurrence of stop,
// consuming the stop byte as well.
func (c *ByteCursor) ReadUntil(stop byte) ([]byte, error) {
	for i := c.pos; i < len(c.data); i++ {
		if c.data[i] == stop {
			p := c.data[c.pos:i]
			c.pos = i + 1

			return p, nil
		}
	}

	return nil, format.Corruptionf("stop byte 0x%02x not found in external stream", stop)
}

// Since returns the bytes consumed between an earlier Pos value and the
// current position. The slice aliases the cursor's backing array.
func (c *ByteCursor) Since(mark int) []byte { return c.data[mark:c.pos] }

// Len returns the number of unread bytes.
func (c *ByteCursor) Len() int { return len(c.data) - c.pos }

// Pos returns the current offset.
func (c *ByteCursor) Pos() int { return c.pos }
