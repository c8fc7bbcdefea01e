package container

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cramio/cram/compress"
	"github.com/cramio/cram/encoding"
	"github.com/cramio/cram/format"
)

// Block is one length-prefixed, checksummed unit inside a container. The
// payload is kept in its on-wire (possibly compressed) form until Data is
// called; decompression is lazy and cached.
type Block struct {
	Method      format.CompressionMethod
	ContentType format.ContentType
	ContentID   int32
	RawSize     int32

	compressed []byte
	raw        []byte
}

// NewBlock returns a block holding raw, ready to be appended with a chosen
// compression method.
func NewBlock(t format.ContentType, id int32, raw []byte) *Block {
	return &Block{
		ContentType: t,
		ContentID:   id,
		RawSize:     int32(len(raw)),
		raw:         raw,
	}
}

// ReadBlock parses one block from the cursor and verifies its trailing
// CRC32. The checksum covers every wire byte of the block from the method
// byte through the payload.
func ReadBlock(c *encoding.ByteCursor) (*Block, error) {
	mark := c.Pos()

	method, err := c.ReadByte()
	if err != nil {
		return nil, err
	}
	ctype, err := c.ReadByte()
	if err != nil {
		return nil, err
	}
	contentID, err := encoding.DecodeItf8(c)
	if err != nil {
		return nil, err
	}
	compSize, err := encoding.DecodeItf8(c)
	if err != nil {
		return nil, err
	}
	rawSize, err := encoding.DecodeItf8(c)
	if err != nil {
		return nil, err
	}
	if compSize < 0 || rawSize < 0 {
		return nil, format.WithContentID(
			format.Corruptionf("negative block size: compressed %d, raw %d", compSize, rawSize), contentID)
	}

	payload, err := c.ReadBytes(int(compSize))
	if err != nil {
		return nil, format.WithContentID(err, contentID)
	}
	sum := crc32.ChecksumIEEE(c.Since(mark))

	crcBytes, err := c.ReadBytes(4)
	if err != nil {
		return nil, format.WithContentID(err, contentID)
	}
	if want := binary.LittleEndian.Uint32(crcBytes); sum != want {
		return nil, format.WithContentID(
			format.Corruptionf("block checksum mismatch: computed %08x, stored %08x", sum, want), contentID)
	}

	b := &Block{
		Method:      format.CompressionMethod(method),
		ContentType: format.ContentType(ctype),
		ContentID:   contentID,
		RawSize:     rawSize,
		compressed:  payload,
	}
	if b.Method == format.MethodRaw {
		if compSize != rawSize {
			return nil, format.WithContentID(
				format.Corruptionf("raw block sizes disagree: compressed %d, raw %d", compSize, rawSize), contentID)
		}
		b.raw = payload
	}

	return b, nil
}

// Data returns the decompressed payload, decoding it on first use. The
// result must match the block's declared raw size exactly.
func (b *Block) Data(reg *compress.Registry) ([]byte, error) {
	if b.raw != nil || b.RawSize == 0 {
		return b.raw, nil
	}

	codec, err := reg.Lookup(b.Method)
	if err != nil {
		return nil, format.WithContentID(err, b.ContentID)
	}
	raw, err := codec.Decompress(b.compressed)
	if err != nil {
		return nil, format.WithContentID(format.Corruptionf("block decompression failed").Wrap(err), b.ContentID)
	}
	if int32(len(raw)) != b.RawSize {
		return nil, format.WithContentID(
			format.Corruptionf("block raw size mismatch: declared %d, decompressed %d", b.RawSize, len(raw)),
			b.ContentID)
	}
	b.raw = raw

	return raw, nil
}

// Append serializes the block to dst using the given compression method and
// returns the extended slice. When the compressed form would not be smaller
// than the raw payload the block is stored raw instead.
func (b *Block) Append(dst []byte, reg *compress.Registry, method format.CompressionMethod) ([]byte, error) {
	payload := b.raw
	if method != format.MethodRaw {
		codec, err := reg.Lookup(method)
		if err != nil {
			return nil, format.WithContentID(err, b.ContentID)
		}
		comp, err := codec.Compress(b.raw)
		if err != nil {
			return nil, format.WithContentID(err, b.ContentID)
		}
		if len(comp) < len(b.raw) {
			payload = comp
		} else {
			method = format.MethodRaw
		}
	}

	mark := len(dst)
	dst = append(dst, byte(method), byte(b.ContentType))
	dst = encoding.AppendItf8(dst, b.ContentID)
	dst = encoding.AppendItf8(dst, int32(len(payload)))
	dst = encoding.AppendItf8(dst, b.RawSize)
	dst = append(dst, payload...)

	sum := crc32.ChecksumIEEE(dst[mark:])
	dst = binary.LittleEndian.AppendUint32(dst, sum)

	return dst, nil
}
