package container

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/cramio/cram/encoding"
	"github.com/cramio/cram/format"
)

// TagKey identifies one auxiliary tag stream: the two-character tag name
// plus its value type byte.
type TagKey struct {
	Tag  [2]byte
	Type byte
}

// ID packs the key into the integer used to index the tag encoding map.
func (k TagKey) ID() int32 {
	return int32(k.Tag[0])<<16 | int32(k.Tag[1])<<8 | int32(k.Type)
}

func (k TagKey) String() string {
	return fmt.Sprintf("%s:%c", k.Tag[:], k.Type)
}

// substBases are the reference bases the substitution matrix is defined
// over, in matrix row order.
var substBases = [5]byte{'A', 'C', 'G', 'T', 'N'}

func baseIndex(b byte) int {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	default:
		return 4
	}
}

// SubstitutionMatrix maps (reference base, 2-bit code) pairs to read bases.
// Each byte holds the codes of the four possible substitutions for one
// reference base, packed high bits first in ACGTN order.
type SubstitutionMatrix [5]byte

// DefaultSubstitutionMatrix assigns codes in ACGTN order for every row.
func DefaultSubstitutionMatrix() SubstitutionMatrix {
	return SubstitutionMatrix{0x1b, 0x1b, 0x1b, 0x1b, 0x1b}
}

// Substitute returns the read base encoded by code at a position whose
// reference base is refBase.
func (m SubstitutionMatrix) Substitute(refBase, code byte) byte {
	r := baseIndex(refBase)
	row := m[r]
	k := 0
	for j := 0; j < len(substBases); j++ {
		if j == r {
			continue
		}
		if (row>>(6-2*k))&3 == code&3 {
			return substBases[j]
		}
		k++
	}

	return 'N'
}

// Code returns the 2-bit code for substituting readBase at a reference
// position holding refBase, and false when the pair is not a substitution.
func (m SubstitutionMatrix) Code(refBase, readBase byte) (byte, bool) {
	r := baseIndex(refBase)
	b := baseIndex(readBase)
	if r == b {
		return 0, false
	}
	row := m[r]
	k := 0
	for j := 0; j < len(substBases); j++ {
		if j == r {
			continue
		}
		if j == b {
			return (row >> (6 - 2*k)) & 3, true
		}
		k++
	}

	return 0, false
}

// CompressionHeader is the first block of every data container: it binds
// each data series and tag stream to an encoding, and carries the
// preservation options record decoding depends on.
type CompressionHeader struct {
	// Preservation map. All three flags default to true when absent.
	ReadNamesIncluded  bool
	APDelta            bool
	ReferenceRequired  bool
	SubstitutionMatrix SubstitutionMatrix

	// TagDictionary lists, per tag line, the tag streams a record carries.
	// Records select a line through the TL data series.
	TagDictionary [][]TagKey

	DataSeries   map[format.DataSeries]*encoding.Encoding
	TagEncodings map[int32]*encoding.Encoding
}

// SeriesEncoding returns the encoding bound to the given data series.
func (h *CompressionHeader) SeriesEncoding(s format.DataSeries) (*encoding.Encoding, error) {
	e, ok := h.DataSeries[s]
	if !ok {
		return nil, format.Schemaf("no encoding declared for data series %s", s)
	}

	return e, nil
}

// TagEncoding returns the encoding bound to the given tag stream.
func (h *CompressionHeader) TagEncoding(key TagKey) (*encoding.Encoding, error) {
	e, ok := h.TagEncodings[key.ID()]
	if !ok {
		return nil, format.Schemaf("no encoding declared for tag %s", key)
	}

	return e, nil
}

// ParseCompressionHeader decodes the block payload holding the three
// compression header maps.
func ParseCompressionHeader(data []byte) (*CompressionHeader, error) {
	c := encoding.NewByteCursor(data)
	h := &CompressionHeader{
		ReadNamesIncluded:  true,
		APDelta:            true,
		ReferenceRequired:  true,
		SubstitutionMatrix: DefaultSubstitutionMatrix(),
		DataSeries:         make(map[format.DataSeries]*encoding.Encoding),
		TagEncodings:       make(map[int32]*encoding.Encoding),
	}

	if err := h.parsePreservationMap(c); err != nil {
		return nil, err
	}
	if err := h.parseDataSeriesMap(c); err != nil {
		return nil, err
	}
	if err := h.parseTagEncodingMap(c); err != nil {
		return nil, err
	}
	if c.Len() != 0 {
		return nil, format.Corruptionf("%d trailing bytes after compression header maps", c.Len())
	}

	return h, nil
}

// readMapFrame consumes a map's byte size and entry count. The size counts
// everything after the size field itself, entry count included.
func readMapFrame(c *encoding.ByteCursor) (count int32, end int, err error) {
	size, err := encoding.DecodeItf8(c)
	if err != nil {
		return 0, 0, err
	}
	if size < 0 {
		return 0, 0, format.Corruptionf("negative map size %d", size)
	}
	end = c.Pos() + int(size)
	if end > c.Pos()+c.Len() {
		return 0, 0, format.Corruptionf("map size %d overruns compression header", size)
	}

	count, err = encoding.DecodeItf8(c)
	if err != nil {
		return 0, 0, err
	}
	if count < 0 {
		return 0, 0, format.Corruptionf("negative map entry count %d", count)
	}

	return count, end, nil
}

func checkMapFrame(c *encoding.ByteCursor, end int) error {
	if c.Pos() != end {
		return format.Corruptionf("map entries end at byte %d, declared size ends at %d", c.Pos(), end)
	}

	return nil
}

func (h *CompressionHeader) parsePreservationMap(c *encoding.ByteCursor) error {
	count, end, err := readMapFrame(c)
	if err != nil {
		return err
	}

	for i := int32(0); i < count; i++ {
		key, err := c.ReadBytes(2)
		if err != nil {
			return err
		}

		switch string(key) {
		case "RN", "AP", "RR":
			b, err := c.ReadByte()
			if err != nil {
				return err
			}
			if b > 1 {
				return format.Corruptionf("preservation flag %s has non-boolean value 0x%02x", key, b)
			}
			switch string(key) {
			case "RN":
				h.ReadNamesIncluded = b == 1
			case "AP":
				h.APDelta = b == 1
			case "RR":
				h.ReferenceRequired = b == 1
			}
		case "SM":
			sm, err := c.ReadBytes(len(h.SubstitutionMatrix))
			if err != nil {
				return err
			}
			copy(h.SubstitutionMatrix[:], sm)
		case "TD":
			n, err := encoding.DecodeItf8(c)
			if err != nil {
				return err
			}
			if n < 0 {
				return format.Corruptionf("negative tag dictionary size %d", n)
			}
			blob, err := c.ReadBytes(int(n))
			if err != nil {
				return err
			}
			if h.TagDictionary, err = parseTagDictionary(blob); err != nil {
				return err
			}
		default:
			// Values are not self-delimiting, so an unknown key cannot be
			// skipped.
			return format.Schemaf("unknown preservation map key %q", key)
		}
	}

	return checkMapFrame(c, end)
}

func parseTagDictionary(blob []byte) ([][]TagKey, error) {
	var dict [][]TagKey
	start := 0
	for i := 0; i < len(blob); i++ {
		if blob[i] != 0 {
			continue
		}
		line := blob[start:i]
		start = i + 1
		if len(line)%3 != 0 {
			return nil, format.Corruptionf("tag dictionary line of %d bytes is not a run of 3-byte keys", len(line))
		}
		keys := make([]TagKey, 0, len(line)/3)
		for j := 0; j < len(line); j += 3 {
			keys = append(keys, TagKey{Tag: [2]byte{line[j], line[j+1]}, Type: line[j+2]})
		}
		dict = append(dict, keys)
	}
	if start != len(blob) {
		return nil, format.Corruptionf("unterminated tag dictionary line")
	}

	return dict, nil
}

func (h *CompressionHeader) parseDataSeriesMap(c *encoding.ByteCursor) error {
	count, end, err := readMapFrame(c)
	if err != nil {
		return err
	}

	for i := int32(0); i < count; i++ {
		key, err := c.ReadBytes(2)
		if err != nil {
			return err
		}
		e, err := encoding.ParseEncoding(c)
		if err != nil {
			return format.Schemaf("data series %s: invalid encoding", key).Wrap(err)
		}
		h.DataSeries[format.DataSeries{key[0], key[1]}] = e
	}

	return checkMapFrame(c, end)
}

func (h *CompressionHeader) parseTagEncodingMap(c *encoding.ByteCursor) error {
	count, end, err := readMapFrame(c)
	if err != nil {
		return err
	}

	for i := int32(0); i < count; i++ {
		key, err := encoding.DecodeItf8(c)
		if err != nil {
			return err
		}
		e, err := encoding.ParseEncoding(c)
		if err != nil {
			return format.Schemaf("tag stream %06x: invalid encoding", key).Wrap(err)
		}
		h.TagEncodings[key] = e
	}

	return checkMapFrame(c, end)
}

// Append serializes the three maps in their on-wire order and returns the
// extended slice. Map entries are emitted in a deterministic key order.
func (h *CompressionHeader) Append(dst []byte) []byte {
	dst = appendMap(dst, 5, h.appendPreservationEntries)
	dst = appendMap(dst, int32(len(h.DataSeries)), h.appendDataSeriesEntries)
	dst = appendMap(dst, int32(len(h.TagEncodings)), h.appendTagEncodingEntries)

	return dst
}

func appendMap(dst []byte, count int32, entries func([]byte) []byte) []byte {
	body := encoding.AppendItf8(nil, count)
	body = entries(body)
	dst = encoding.AppendItf8(dst, int32(len(body)))

	return append(dst, body...)
}

func appendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}

	return append(dst, 0)
}

func (h *CompressionHeader) appendPreservationEntries(dst []byte) []byte {
	dst = append(dst, "RN"...)
	dst = appendBool(dst, h.ReadNamesIncluded)
	dst = append(dst, "AP"...)
	dst = appendBool(dst, h.APDelta)
	dst = append(dst, "RR"...)
	dst = appendBool(dst, h.ReferenceRequired)
	dst = append(dst, "SM"...)
	dst = append(dst, h.SubstitutionMatrix[:]...)

	var blob []byte
	for _, line := range h.TagDictionary {
		for _, k := range line {
			blob = append(blob, k.Tag[0], k.Tag[1], k.Type)
		}
		blob = append(blob, 0)
	}
	dst = append(dst, "TD"...)
	dst = encoding.AppendItf8(dst, int32(len(blob)))

	return append(dst, blob...)
}

func (h *CompressionHeader) appendDataSeriesEntries(dst []byte) []byte {
	keys := make([]format.DataSeries, 0, len(h.DataSeries))
	for k := range h.DataSeries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })

	for _, k := range keys {
		dst = append(dst, k[0], k[1])
		dst = h.DataSeries[k].AppendDescriptor(dst)
	}

	return dst
}

func (h *CompressionHeader) appendTagEncodingEntries(dst []byte) []byte {
	keys := make([]int32, 0, len(h.TagEncodings))
	for k := range h.TagEncodings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		dst = encoding.AppendItf8(dst, k)
		dst = h.TagEncodings[k].AppendDescriptor(dst)
	}

	return dst
}
