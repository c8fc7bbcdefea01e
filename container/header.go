package container

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cramio/cram/encoding"
	"github.com/cramio/cram/format"
)

// Header is the fixed preamble of a container. Length counts the bytes of
// the block section that follows the header; Landmarks are byte offsets of
// each slice's header block within that section.
type Header struct {
	Length        int32
	RefID         int32
	Start         int32
	Span          int32
	Records       int32
	RecordCounter int64
	Bases         int64
	BlockCount    int32
	Landmarks     []int32
}

// teeByteReader feeds single bytes from r while retaining everything read,
// so the header checksum can be computed over the exact wire bytes.
type teeByteReader struct {
	r   io.Reader
	buf []byte
	one [1]byte
}

func (t *teeByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(t.r, t.one[:]); err != nil {
		return 0, err
	}
	t.buf = append(t.buf, t.one[0])

	return t.one[0], nil
}

// ReadHeader parses one container header from r and verifies its trailing
// CRC32. A clean end of stream before the first byte returns io.EOF; a
// truncated header returns a corruption error.
func ReadHeader(r io.Reader) (*Header, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}

		return nil, format.Corruptionf("truncated container header").Wrap(err)
	}

	h := &Header{Length: int32(binary.LittleEndian.Uint32(lenBytes[:]))}
	if h.Length < 0 {
		return nil, format.Corruptionf("negative container length %d", h.Length)
	}

	tee := &teeByteReader{r: r, buf: append(make([]byte, 0, 64), lenBytes[:]...)}

	var err error
	if h.RefID, err = encoding.DecodeItf8(tee); err != nil {
		return nil, err
	}
	if h.Start, err = encoding.DecodeItf8(tee); err != nil {
		return nil, err
	}
	if h.Span, err = encoding.DecodeItf8(tee); err != nil {
		return nil, err
	}
	if h.Records, err = encoding.DecodeItf8(tee); err != nil {
		return nil, err
	}
	if h.RecordCounter, err = encoding.DecodeLtf8(tee); err != nil {
		return nil, err
	}
	if h.Bases, err = encoding.DecodeLtf8(tee); err != nil {
		return nil, err
	}
	if h.BlockCount, err = encoding.DecodeItf8(tee); err != nil {
		return nil, err
	}
	if h.Landmarks, err = encoding.DecodeItf8Array(tee); err != nil {
		return nil, err
	}
	if h.Records < 0 || h.BlockCount < 0 {
		return nil, format.Corruptionf("negative container counts: records %d, blocks %d", h.Records, h.BlockCount)
	}
	for _, lm := range h.Landmarks {
		if lm < 0 || lm >= h.Length {
			return nil, format.Corruptionf("landmark %d outside container body of %d bytes", lm, h.Length)
		}
	}

	sum := crc32.ChecksumIEEE(tee.buf)
	var crcBytes [4]byte
	if _, err := io.ReadFull(r, crcBytes[:]); err != nil {
		return nil, format.Corruptionf("truncated container header checksum").Wrap(err)
	}
	if want := binary.LittleEndian.Uint32(crcBytes[:]); sum != want {
		return nil, format.Corruptionf("container header checksum mismatch: computed %08x, stored %08x", sum, want)
	}

	return h, nil
}

// Append serializes the header, including its CRC32, and returns the
// extended slice.
func (h *Header) Append(dst []byte) []byte {
	mark := len(dst)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.Length))
	dst = encoding.AppendItf8(dst, h.RefID)
	dst = encoding.AppendItf8(dst, h.Start)
	dst = encoding.AppendItf8(dst, h.Span)
	dst = encoding.AppendItf8(dst, h.Records)
	dst = encoding.AppendLtf8(dst, h.RecordCounter)
	dst = encoding.AppendLtf8(dst, h.Bases)
	dst = encoding.AppendItf8(dst, h.BlockCount)
	dst = encoding.AppendItf8Array(dst, h.Landmarks)

	sum := crc32.ChecksumIEEE(dst[mark:])

	return binary.LittleEndian.AppendUint32(dst, sum)
}
