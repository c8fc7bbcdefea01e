package encoding

import (
	"io"
	"math/bits"

	"github.com/cramio/cram/format"
)

// Encoding is the self-describing, tagged-variant description of how one
// data series' values are decoded from its bound stream. The variant is
// resolved once per compression header; the same instance then serves every
// record in the container, so lazily built state (the Huffman table) is
// cached on the value.
type Encoding struct {
	ID format.Codec

	ContentID int32 // External, ByteArrayStop
	StopByte  byte  // ByteArrayStop

	Offset int32 // Beta, Subexponential, Gamma
	Length int32 // Beta: fixed bit length
	K      int32 // Subexponential

	Alphabet   []int32 // Huffman, in descriptor order
	BitLengths []int32 // Huffman, parallel to Alphabet

	Len *Encoding // ByteArrayLen: nested length encoding
	Val *Encoding // ByteArrayLen: nested value encoding

	huff *huffmanTable
}

// DecodeStreams is the set of named streams one slice exposes to the
// encoding engine: the shared core bit stream plus one byte cursor per
// external block content id.
type DecodeStreams struct {
	Core     *BitReader
	External map[int32]*ByteCursor
}

func (s *DecodeStreams) external(id int32) (*ByteCursor, error) {
	c, ok := s.External[id]
	if !ok {
		return nil, format.WithContentID(format.Schemaf("encoding references unknown external block"), id)
	}

	return c, nil
}

// EncodeStreams is the write-side counterpart of DecodeStreams. External
// buffers are created on first use.
type EncodeStreams struct {
	Core     *BitWriter
	External map[int32][]byte
}

// NewEncodeStreams returns an empty stream set ready for encoding.
func NewEncodeStreams() *EncodeStreams {
	return &EncodeStreams{
		Core:     NewBitWriter(),
		External: make(map[int32][]byte),
	}
}

func (s *EncodeStreams) appendExternal(id int32, p ...byte) {
	s.External[id] = append(s.External[id], p...)
}

// ParseEncoding reads one encoding descriptor (codec id, parameter length,
// parameters) from r.
func ParseEncoding(r *ByteCursor) (*Encoding, error) {
	id, err := DecodeItf8(r)
	if err != nil {
		return nil, err
	}
	n, err := DecodeItf8(r)
	if err != nil {
		return nil, err
	}
	params, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}

	return parseEncodingParams(format.Codec(id), NewByteCursor(params))
}

func parseEncodingParams(id format.Codec, p *ByteCursor) (*Encoding, error) {
	e := &Encoding{ID: id}
	var err error

	switch id {
	case format.CodecNull:

	case format.CodecExternal:
		if e.ContentID, err = DecodeItf8(p); err != nil {
			return nil, err
		}

	case format.CodecHuffman:
		if e.Alphabet, err = DecodeItf8Array(p); err != nil {
			return nil, err
		}
		if e.BitLengths, err = DecodeItf8Array(p); err != nil {
			return nil, err
		}
		// build eagerly so schema errors surface at header parse time
		if e.huff, err = newHuffmanTable(e.Alphabet, e.BitLengths); err != nil {
			return nil, err
		}

	case format.CodecByteArrayLen:
		if e.Len, err = ParseEncoding(p); err != nil {
			return nil, err
		}
		if e.Val, err = ParseEncoding(p); err != nil {
			return nil, err
		}

	case format.CodecByteArrayStop:
		if e.StopByte, err = p.ReadByte(); err != nil {
			return nil, err
		}
		if e.ContentID, err = DecodeItf8(p); err != nil {
			return nil, err
		}

	case format.CodecBeta:
		if e.Offset, err = DecodeItf8(p); err != nil {
			return nil, err
		}
		if e.Length, err = DecodeItf8(p); err != nil {
			return nil, err
		}
		if e.Length < 0 || e.Length > 32 {
			return nil, format.Schemaf("beta encoding bit length %d out of range", e.Length)
		}

	case format.CodecSubexp:
		if e.Offset, err = DecodeItf8(p); err != nil {
			return nil, err
		}
		if e.K, err = DecodeItf8(p); err != nil {
			return nil, err
		}
		if e.K < 0 || e.K > 31 {
			return nil, format.Schemaf("subexponential parameter k=%d out of range", e.K)
		}

	case format.CodecGamma:
		if e.Offset, err = DecodeItf8(p); err != nil {
			return nil, err
		}

	case format.CodecGolomb, format.CodecGolombRice:
		return nil, format.Unsupportedf("encoding codec %s is not implemented", id)

	default:
		return nil, format.Unsupportedf("unknown encoding codec id %d", int32(id))
	}

	if p.Len() != 0 {
		return nil, format.Corruptionf("%s encoding descriptor has %d trailing parameter bytes", id, p.Len())
	}

	return e, nil
}

// AppendDescriptor appends the wire form of the encoding (codec id,
// parameter byte length, parameters) to dst.
func (e *Encoding) AppendDescriptor(dst []byte) []byte {
	params := e.appendParams(nil)
	dst = AppendItf8(dst, int32(e.ID))
	dst = AppendItf8(dst, int32(len(params)))

	return append(dst, params...)
}

func (e *Encoding) appendParams(dst []byte) []byte {
	switch e.ID {
	case format.CodecExternal:
		dst = AppendItf8(dst, e.ContentID)
	case format.CodecHuffman:
		dst = AppendItf8Array(dst, e.Alphabet)
		dst = AppendItf8Array(dst, e.BitLengths)
	case format.CodecByteArrayLen:
		dst = e.Len.AppendDescriptor(dst)
		dst = e.Val.AppendDescriptor(dst)
	case format.CodecByteArrayStop:
		dst = append(dst, e.StopByte)
		dst = AppendItf8(dst, e.ContentID)
	case format.CodecBeta:
		dst = AppendItf8(dst, e.Offset)
		dst = AppendItf8(dst, e.Length)
	case format.CodecSubexp:
		dst = AppendItf8(dst, e.Offset)
		dst = AppendItf8(dst, e.K)
	case format.CodecGamma:
		dst = AppendItf8(dst, e.Offset)
	}

	return dst
}

func (e *Encoding) table() (*huffmanTable, error) {
	if e.huff == nil {
		t, err := newHuffmanTable(e.Alphabet, e.BitLengths)
		if err != nil {
			return nil, err
		}
		e.huff = t
	}

	return e.huff, nil
}

// DecodeInt decodes one integer value.
func (e *Encoding) DecodeInt(s *DecodeStreams) (int32, error) {
	switch e.ID {
	case format.CodecExternal:
		c, err := s.external(e.ContentID)
		if err != nil {
			return 0, err
		}

		return DecodeItf8(c)

	case format.CodecHuffman:
		t, err := e.table()
		if err != nil {
			return 0, err
		}

		return t.decode(s.Core)

	case format.CodecBeta:
		v, err := s.Core.ReadBits(int(e.Length))
		if err != nil {
			return 0, err
		}

		return int32(v) - e.Offset, nil

	case format.CodecGamma:
		var zeros int
		for {
			bit, err := s.Core.ReadBit()
			if err != nil {
				return 0, err
			}
			if bit == 1 {
				break
			}
			if zeros++; zeros > 31 {
				return 0, format.Corruptionf("gamma code prefix exceeds 31 bits")
			}
		}
		rest, err := s.Core.ReadBits(zeros)
		if err != nil {
			return 0, err
		}

		return int32(1<<zeros|rest) - e.Offset, nil

	case format.CodecSubexp:
		var u int32
		for {
			bit, err := s.Core.ReadBit()
			if err != nil {
				return 0, err
			}
			if bit == 0 {
				break
			}
			if u++; u > 31 {
				return 0, format.Corruptionf("subexponential code prefix exceeds 31 bits")
			}
		}

		var n uint32
		if u == 0 {
			v, err := s.Core.ReadBits(int(e.K))
			if err != nil {
				return 0, err
			}
			n = v
		} else {
			b := u + e.K - 1
			if b > 31 {
				return 0, format.Corruptionf("subexponential code width %d exceeds 31 bits", b)
			}
			v, err := s.Core.ReadBits(int(b))
			if err != nil {
				return 0, err
			}
			n = 1<<uint(b) | v
		}

		return int32(n) - e.Offset, nil

	case format.CodecNull:
		return 0, format.Schemaf("null encoding cannot supply integer values")

	default:
		return 0, format.Schemaf("%s encoding cannot supply integer values", e.ID)
	}
}

// DecodeByte decodes one byte value.
func (e *Encoding) DecodeByte(s *DecodeStreams) (byte, error) {
	switch e.ID {
	case format.CodecExternal:
		c, err := s.external(e.ContentID)
		if err != nil {
			return 0, err
		}

		return c.ReadByte()

	case format.CodecHuffman, format.CodecBeta, format.CodecGamma, format.CodecSubexp:
		v, err := e.DecodeInt(s)
		if err != nil {
			return 0, err
		}

		return byte(v), nil

	default:
		return 0, format.Schemaf("%s encoding cannot supply byte values", e.ID)
	}
}

// DecodeBytes decodes one self-delimiting byte array (ByteArrayLen or
// ByteArrayStop).
func (e *Encoding) DecodeBytes(s *DecodeStreams) ([]byte, error) {
	switch e.ID {
	case format.CodecByteArrayLen:
		n, err := e.Len.DecodeInt(s)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, format.Corruptionf("negative byte array length %d", n)
		}

		return e.Val.DecodeByteRun(s, int(n))

	case format.CodecByteArrayStop:
		c, err := s.external(e.ContentID)
		if err != nil {
			return nil, err
		}

		return c.ReadUntil(e.StopByte)

	default:
		return nil, format.Schemaf("%s encoding cannot supply delimited byte arrays", e.ID)
	}
}

// DecodeByteRun decodes exactly n bytes, for series whose run length is
// supplied externally (read-length sized base and quality runs).
func (e *Encoding) DecodeByteRun(s *DecodeStreams, n int) ([]byte, error) {
	if e.ID == format.CodecExternal {
		c, err := s.external(e.ContentID)
		if err != nil {
			return nil, err
		}

		return c.ReadBytes(n)
	}

	p := make([]byte, n)
	for i := range p {
		b, err := e.DecodeByte(s)
		if err != nil {
			return nil, err
		}
		p[i] = b
	}

	return p, nil
}

// EncodeInt encodes one integer value.
func (e *Encoding) EncodeInt(s *EncodeStreams, v int32) error {
	switch e.ID {
	case format.CodecExternal:
		s.External[e.ContentID] = AppendItf8(s.External[e.ContentID], v)

		return nil

	case format.CodecHuffman:
		t, err := e.table()
		if err != nil {
			return err
		}

		return t.encode(s.Core, v)

	case format.CodecBeta:
		u := v + e.Offset
		if u < 0 || (e.Length < 32 && uint32(u) >= 1<<uint(e.Length)) {
			return format.Schemaf("value %d does not fit beta encoding of %d bits", v, e.Length)
		}
		s.Core.WriteBits(uint32(u), int(e.Length))

		return nil

	case format.CodecGamma:
		u := v + e.Offset
		if u < 1 {
			return format.Schemaf("value %d maps below 1 under gamma offset %d", v, e.Offset)
		}
		n := bits.Len32(uint32(u))
		s.Core.WriteBits(0, n-1)
		s.Core.WriteBits(uint32(u), n)

		return nil

	case format.CodecSubexp:
		u := v + e.Offset
		if u < 0 {
			return format.Schemaf("value %d maps below 0 under subexponential offset %d", v, e.Offset)
		}
		if uint32(u) < 1<<uint(e.K) {
			s.Core.WriteBit(0)
			s.Core.WriteBits(uint32(u), int(e.K))

			return nil
		}
		b := int32(bits.Len32(uint32(u))) - 1
		for i := int32(0); i < b-e.K+1; i++ {
			s.Core.WriteBit(1)
		}
		s.Core.WriteBit(0)
		s.Core.WriteBits(uint32(u)&((1<<uint(b))-1), int(b))

		return nil

	default:
		return format.Schemaf("%s encoding cannot store integer values", e.ID)
	}
}

// EncodeByte encodes one byte value.
func (e *Encoding) EncodeByte(s *EncodeStreams, b byte) error {
	if e.ID == format.CodecExternal {
		s.appendExternal(e.ContentID, b)

		return nil
	}

	return e.EncodeInt(s, int32(b))
}

// EncodeBytes encodes one self-delimiting byte array.
func (e *Encoding) EncodeBytes(s *EncodeStreams, p []byte) error {
	switch e.ID {
	case format.CodecByteArrayLen:
		if err := e.Len.EncodeInt(s, int32(len(p))); err != nil {
			return err
		}

		return e.Val.EncodeByteRun(s, p)

	case format.CodecByteArrayStop:
		s.appendExternal(e.ContentID, p...)
		s.appendExternal(e.ContentID, e.StopByte)

		return nil

	default:
		return format.Schemaf("%s encoding cannot store delimited byte arrays", e.ID)
	}
}

// EncodeByteRun encodes bytes whose count the decoder learns elsewhere.
func (e *Encoding) EncodeByteRun(s *EncodeStreams, p []byte) error {
	if e.ID == format.CodecExternal {
		s.appendExternal(e.ContentID, p...)

		return nil
	}

	for _, b := range p {
		if err := e.EncodeByte(s, b); err != nil {
			return err
		}
	}

	return nil
}

// ExternalIDs reports the external block content ids the encoding consumes,
// including those of nested encodings.
func (e *Encoding) ExternalIDs() []int32 {
	var ids []int32
	switch e.ID {
	case format.CodecExternal, format.CodecByteArrayStop:
		ids = append(ids, e.ContentID)
	case format.CodecByteArrayLen:
		ids = append(ids, e.Len.ExternalIDs()...)
		ids = append(ids, e.Val.ExternalIDs()...)
	}

	return ids
}

var _ io.ByteReader = (*ByteCursor)(nil)
