package container

import (
	"github.com/cramio/cram/compress"
	"github.com/cramio/cram/encoding"
	"github.com/cramio/cram/format"
)

// SliceHeader describes one slice: its alignment window, record counts and
// the content ids of the external blocks it carries. EmbeddedRefID is -1
// when no embedded reference block is present.
type SliceHeader struct {
	RefID         int32
	Start         int32
	Span          int32
	Records       int32
	RecordCounter int64
	BlockCount    int32
	ContentIDs    []int32
	EmbeddedRefID int32
	RefMD5        [16]byte

	// Tags holds any optional trailing header bytes verbatim.
	Tags []byte
}

// ParseSliceHeader decodes a slice header block payload.
func ParseSliceHeader(data []byte) (*SliceHeader, error) {
	c := encoding.NewByteCursor(data)
	h := &SliceHeader{}

	var err error
	if h.RefID, err = encoding.DecodeItf8(c); err != nil {
		return nil, err
	}
	if h.Start, err = encoding.DecodeItf8(c); err != nil {
		return nil, err
	}
	if h.Span, err = encoding.DecodeItf8(c); err != nil {
		return nil, err
	}
	if h.Records, err = encoding.DecodeItf8(c); err != nil {
		return nil, err
	}
	if h.RecordCounter, err = encoding.DecodeLtf8(c); err != nil {
		return nil, err
	}
	if h.BlockCount, err = encoding.DecodeItf8(c); err != nil {
		return nil, err
	}
	if h.ContentIDs, err = encoding.DecodeItf8Array(c); err != nil {
		return nil, err
	}
	if h.EmbeddedRefID, err = encoding.DecodeItf8(c); err != nil {
		return nil, err
	}
	md5, err := c.ReadBytes(len(h.RefMD5))
	if err != nil {
		return nil, err
	}
	copy(h.RefMD5[:], md5)

	if c.Len() > 0 {
		h.Tags, _ = c.ReadBytes(c.Len())
	}
	if h.Records < 0 || h.BlockCount < 0 {
		return nil, format.Corruptionf("negative slice counts: records %d, blocks %d", h.Records, h.BlockCount)
	}
	if int(h.BlockCount) != len(h.ContentIDs)+1 {
		return nil, format.Corruptionf("slice declares %d blocks but lists %d external streams",
			h.BlockCount, len(h.ContentIDs))
	}

	return h, nil
}

// Append serializes the slice header payload and returns the extended
// slice.
func (h *SliceHeader) Append(dst []byte) []byte {
	dst = encoding.AppendItf8(dst, h.RefID)
	dst = encoding.AppendItf8(dst, h.Start)
	dst = encoding.AppendItf8(dst, h.Span)
	dst = encoding.AppendItf8(dst, h.Records)
	dst = encoding.AppendLtf8(dst, h.RecordCounter)
	dst = encoding.AppendItf8(dst, h.BlockCount)
	dst = encoding.AppendItf8Array(dst, h.ContentIDs)
	dst = encoding.AppendItf8(dst, h.EmbeddedRefID)
	dst = append(dst, h.RefMD5[:]...)

	return append(dst, h.Tags...)
}

// Slice bundles a parsed slice header with its core and external blocks.
type Slice struct {
	Header   *SliceHeader
	Core     *Block
	External []*Block
}

// newSlice assembles a slice from its header block and the data blocks
// that follow it. The first data block must be the core bit stream.
func newSlice(hdrBlock *Block, blocks []*Block, reg *compress.Registry) (*Slice, error) {
	if hdrBlock.ContentType != format.ContentSliceHeader {
		return nil, format.Corruptionf("landmark addresses a %s block, want SliceHeader", hdrBlock.ContentType)
	}
	data, err := hdrBlock.Data(reg)
	if err != nil {
		return nil, err
	}
	h, err := ParseSliceHeader(data)
	if err != nil {
		return nil, err
	}
	if len(blocks) < int(h.BlockCount) {
		return nil, format.Corruptionf("slice needs %d blocks, container has %d after its header", h.BlockCount, len(blocks))
	}

	s := &Slice{Header: h}
	for i, b := range blocks[:h.BlockCount] {
		switch {
		case i == 0:
			if b.ContentType != format.ContentCore {
				return nil, format.Corruptionf("first slice data block is %s, want Core", b.ContentType)
			}
			s.Core = b
		case b.ContentType != format.ContentExternal:
			return nil, format.Corruptionf("slice data block %d is %s, want External", i, b.ContentType)
		default:
			s.External = append(s.External, b)
		}
	}

	return s, nil
}

// DecodeStreams decompresses the slice's blocks and exposes them as the
// stream set the encoding engine reads from.
func (s *Slice) DecodeStreams(reg *compress.Registry) (*encoding.DecodeStreams, error) {
	core, err := s.Core.Data(reg)
	if err != nil {
		return nil, err
	}

	streams := &encoding.DecodeStreams{
		Core:     encoding.NewBitReader(core),
		External: make(map[int32]*encoding.ByteCursor, len(s.External)),
	}
	for _, b := range s.External {
		data, err := b.Data(reg)
		if err != nil {
			return nil, err
		}
		streams.External[b.ContentID] = encoding.NewByteCursor(data)
	}

	return streams, nil
}

// EmbeddedReference returns the decompressed embedded reference block, or
// nil when the slice does not carry one.
func (s *Slice) EmbeddedReference(reg *compress.Registry) ([]byte, error) {
	if s.Header.EmbeddedRefID < 0 {
		return nil, nil
	}
	for _, b := range s.External {
		if b.ContentID == s.Header.EmbeddedRefID {
			return b.Data(reg)
		}
	}

	return nil, format.WithContentID(
		format.Corruptionf("embedded reference block not present in slice"), s.Header.EmbeddedRefID)
}
