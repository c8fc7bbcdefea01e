package encoding

import (
	"io"

	"github.com/cramio/cram/format"
)

// MaxLtf8Length is the longest valid LTF-8 byte sequence.
const MaxLtf8Length = 9

// DecodeLtf8 reads one LTF-8 encoded int64 from r.
//
// As with ITF-8 the count of leading one bits in the first byte selects the
// number of trailing bytes (0-8), but payload bytes always contribute all
// eight bits: the nine-byte form carries the full 64-bit value in its eight
// trailing bytes.
func DecodeLtf8(r io.ByteReader) (int64, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	extra := 0
	for mask := byte(0x80); mask > 0 && b0&mask != 0; mask >>= 1 {
		extra++
	}

	if extra == 0 {
		return int64(b0), nil
	}

	var v uint64
	if extra < 8 {
		v = uint64(b0) & (0x7F >> (extra - 1))
	}
	for i := 0; i < extra; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, malformedLtf8(err)
		}
		v = v<<8 | uint64(b)
	}

	return int64(v), nil
}

// AppendLtf8 appends the LTF-8 encoding of v to dst and returns the extended
// slice.
func AppendLtf8(dst []byte, v int64) []byte {
	u := uint64(v)
	switch {
	case u < 1<<7:
		return append(dst, byte(u))
	case u < 1<<14:
		return append(dst, byte(u>>8)|0x80, byte(u))
	case u < 1<<21:
		return append(dst, byte(u>>16)|0xC0, byte(u>>8), byte(u))
	case u < 1<<28:
		return append(dst, byte(u>>24)|0xE0, byte(u>>16), byte(u>>8), byte(u))
	case u < 1<<35:
		return append(dst, byte(u>>32)|0xF0, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	case u < 1<<42:
		return append(dst, byte(u>>40)|0xF8, byte(u>>32), byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	case u < 1<<49:
		return append(dst, byte(u>>48)|0xFC, byte(u>>40), byte(u>>32), byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	case u < 1<<56:
		return append(dst, byte(u>>56)|0xFE, byte(u>>48), byte(u>>40), byte(u>>32), byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	default:
		return append(dst, 0xFF,
			byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32), byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	}
}

func malformedLtf8(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return format.Corruptionf("malformed LTF-8: continuation bytes truncated")
	}

	return err
}
