package container

import (
	"io"
)

// eofStart is the alignment start of the end-of-file container: the bytes
// "EOF" interpreted as an integer position.
const eofStart = 4_542_278

// eofBytes is the canonical 38-byte end-of-file container, fixed bit for
// bit by the format, trailing checksums included.
var eofBytes = []byte{
	0x0f, 0x00, 0x00, 0x00, // length = 15
	0xff, 0xff, 0xff, 0xff, 0x0f, // reference id = -1
	0xe0, 0x45, 0x4f, 0x46, // start = "EOF"
	0x00,                   // span
	0x00,                   // records
	0x00,                   // record counter
	0x00,                   // bases
	0x01,                   // one block
	0x00,                   // no landmarks
	0x05, 0xbd, 0xd9, 0x4f, // header crc32
	0x00, 0x01, 0x00, 0x06, 0x06, // raw compression-header block, 6 bytes
	0x01, 0x00, 0x01, 0x00, 0x01, 0x00, // empty compression header
	0xee, 0x63, 0x01, 0x4b, // block crc32
}

// EOFLength is the serialized size of the end-of-file container.
const EOFLength = 38

// WriteEOF writes the canonical end-of-file container to w.
func WriteEOF(w io.Writer) error {
	_, err := w.Write(eofBytes)

	return err
}

// IsEOF reports whether the header announces the end-of-file container.
// Recognition works on the parsed fields rather than the raw bytes, so a
// container that re-encodes the same values is still accepted.
func (h *Header) IsEOF() bool {
	return h.Length == 15 &&
		h.RefID == -1 &&
		h.Start == eofStart &&
		h.Span == 0 &&
		h.Records == 0 &&
		h.RecordCounter == 0 &&
		h.Bases == 0 &&
		h.BlockCount == 1 &&
		len(h.Landmarks) == 0
}
