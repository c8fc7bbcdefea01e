// Package encoding implements the primitive value codecs of the container
// format: the ITF-8 and LTF-8 variable-length integers, the MSB-first bit
// cursor over core data, canonical Huffman tables, and the tagged-variant
// Encoding engine that binds data series to their streams.
package encoding

import (
	"io"

	"github.com/cramio/cram/format"
)

// MaxItf8Length is the longest valid ITF-8 byte sequence.
const MaxItf8Length = 5

// DecodeItf8 reads one ITF-8 encoded int32 from r.
//
// The number of leading one bits in the first byte selects how many more
// bytes follow (0-4). The first byte's remaining bits are the most
// significant payload bits; the five-byte form contributes only the low four
// bits of its final byte, so a 32-bit value always fits in exactly five
// bytes.
func DecodeItf8(r io.ByteReader) (int32, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	switch {
	case b0 < 0x80:
		return int32(b0), nil
	case b0 < 0xC0:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, malformedItf8(err)
		}

		return int32(b0&0x3F)<<8 | int32(b1), nil
	case b0 < 0xE0:
		var buf [2]byte
		if err := fillBytes(r, buf[:]); err != nil {
			return 0, malformedItf8(err)
		}

		return int32(b0&0x1F)<<16 | int32(buf[0])<<8 | int32(buf[1]), nil
	case b0 < 0xF0:
		var buf [3]byte
		if err := fillBytes(r, buf[:]); err != nil {
			return 0, malformedItf8(err)
		}

		return int32(b0&0x0F)<<24 | int32(buf[0])<<16 | int32(buf[1])<<8 | int32(buf[2]), nil
	default:
		var buf [4]byte
		if err := fillBytes(r, buf[:]); err != nil {
			return 0, malformedItf8(err)
		}

		v := uint32(b0&0x0F)<<28 | uint32(buf[0])<<20 | uint32(buf[1])<<12 | uint32(buf[2])<<4 | uint32(buf[3])&0x0F

		return int32(v), nil
	}
}

// AppendItf8 appends the ITF-8 encoding of v to dst and returns the extended
// slice.
func AppendItf8(dst []byte, v int32) []byte {
	u := uint32(v)
	switch {
	case u < 0x80:
		return append(dst, byte(u))
	case u < 0x4000:
		return append(dst, byte(u>>8)|0x80, byte(u))
	case u < 0x20_0000:
		return append(dst, byte(u>>16)|0xC0, byte(u>>8), byte(u))
	case u < 0x1000_0000:
		return append(dst, byte(u>>24)|0xE0, byte(u>>16), byte(u>>8), byte(u))
	default:
		return append(dst, byte(u>>28)|0xF0, byte(u>>20), byte(u>>12), byte(u>>4), byte(u)&0x0F)
	}
}

// Itf8Length returns the encoded byte length of v without encoding it.
func Itf8Length(v int32) int {
	u := uint32(v)
	switch {
	case u < 0x80:
		return 1
	case u < 0x4000:
		return 2
	case u < 0x20_0000:
		return 3
	case u < 0x1000_0000:
		return 4
	default:
		return 5
	}
}

// DecodeItf8Array reads an ITF-8 count followed by that many ITF-8 values.
func DecodeItf8Array(r io.ByteReader) ([]int32, error) {
	n, err := DecodeItf8(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, format.Corruptionf("negative ITF-8 array length %d", n)
	}

	values := make([]int32, n)
	for i := range values {
		if values[i], err = DecodeItf8(r); err != nil {
			return nil, err
		}
	}

	return values, nil
}

// AppendItf8Array appends an ITF-8 count followed by the values.
func AppendItf8Array(dst []byte, values []int32) []byte {
	dst = AppendItf8(dst, int32(len(values)))
	for _, v := range values {
		dst = AppendItf8(dst, v)
	}

	return dst
}

func malformedItf8(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return format.Corruptionf("malformed ITF-8: continuation bytes truncated")
	}

	return err
}

func fillBytes(r io.ByteReader, buf []byte) error {
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		buf[i] = b
	}

	return nil
}
