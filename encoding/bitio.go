package encoding

import (
	"github.com/cramio/cram/format"
)

// BitReader is an MSB-first bit cursor over a core data payload.
//
// The cursor accumulates bits from the underlying byte slice into a shift
// register, mirroring the accumulation scheme used by XOR-style float
// compressors: bits are consumed from the high end of each byte, and byte
// boundaries are invisible to callers.
type BitReader struct {
	data   []byte
	pos    int   // next byte index
	bitBuf uint8 // bits of the current partially consumed byte
	nBits  int   // valid bit count in bitBuf
}

// NewBitReader returns a BitReader over data. The slice is not copied; it
// must not be mutated while the reader is in use.
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// ReadBit reads a single bit.
func (br *BitReader) ReadBit() (uint32, error) {
	if br.nBits == 0 {
		if br.pos >= len(br.data) {
			return 0, format.Corruptionf("core bit stream exhausted at byte %d", br.pos)
		}
		br.bitBuf = br.data[br.pos]
		br.pos++
		br.nBits = 8
	}

	br.nBits--

	return uint32(br.bitBuf>>br.nBits) & 1, nil
}

// ReadBits reads n bits (0 <= n <= 32) MSB first and returns them as the low
// bits of the result. n == 0 consumes nothing and returns 0.
func (br *BitReader) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, format.Corruptionf("invalid bit read length %d", n)
	}

	var v uint32
	for n > 0 {
		if br.nBits == 0 {
			if br.pos >= len(br.data) {
				return 0, format.Corruptionf("core bit stream exhausted at byte %d", br.pos)
			}
			br.bitBuf = br.data[br.pos]
			br.pos++
			br.nBits = 8
		}

		take := br.nBits
		if take > n {
			take = n
		}
		br.nBits -= take
		v = v<<take | uint32(br.bitBuf>>br.nBits)&((1<<take)-1)
		n -= take
	}

	return v, nil
}

// BitWriter accumulates an MSB-first bit stream into a byte buffer.
type BitWriter struct {
	buf    []byte
	bitBuf uint8
	nBits  int
}

// NewBitWriter returns an empty BitWriter.
func NewBitWriter() *BitWriter {
	return &BitWriter{}
}

// WriteBits writes the low n bits of v (0 <= n <= 32), most significant
// first.
func (bw *BitWriter) WriteBits(v uint32, n int) {
	for n > 0 {
		space := 8 - bw.nBits
		take := space
		if take > n {
			take = n
		}
		bits := uint8(v>>(n-take)) & ((1 << take) - 1)
		bw.bitBuf = bw.bitBuf<<take | bits
		bw.nBits += take
		n -= take

		if bw.nBits == 8 {
			bw.buf = append(bw.buf, bw.bitBuf)
			bw.bitBuf = 0
			bw.nBits = 0
		}
	}
}

// WriteBit writes a single bit.
func (bw *BitWriter) WriteBit(v uint32) {
	bw.WriteBits(v&1, 1)
}

// Bytes flushes any partial byte (zero padded on the right) and returns the
// accumulated stream.
func (bw *BitWriter) Bytes() []byte {
	if bw.nBits > 0 {
		bw.buf = append(bw.buf, bw.bitBuf<<(8-bw.nBits))
		bw.bitBuf = 0
		bw.nBits = 0
	}

	return bw.buf
}

// Len returns the flushed length in bytes, counting a partial byte as one.
func (bw *BitWriter) Len() int {
	n := len(bw.buf)
	if bw.nBits > 0 {
		n++
	}

	return n
}
