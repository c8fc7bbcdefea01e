// Package container implements the on-disk framing of the format: blocks
// with compression dispatch and checksums, container and slice headers,
// the compression header maps, and the end-of-file marker.
package container

import (
	"context"
	"io"

	"github.com/cramio/cram/compress"
	"github.com/cramio/cram/encoding"
	"github.com/cramio/cram/format"
)

// Container is one parsed container: its header plus every block of its
// body, in wire order. Block payloads stay compressed until asked for.
type Container struct {
	Header *Header
	Blocks []*Block

	// offsets holds each block's byte offset within the body, the address
	// space landmarks point into.
	offsets []int32
}

// ReadContainer reads one container from r.
func ReadContainer(r io.Reader) (*Container, error) {
	return ReadContainerContext(context.Background(), r)
}

// ReadContainerContext reads one container from r, honoring ctx at block
// boundaries. Whole blocks are buffered; cancellation never leaves r
// positioned inside a block.
func ReadContainerContext(ctx context.Context, r io.Reader) (*Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, format.Corruptionf("container body truncated: want %d bytes", h.Length).Wrap(err)
	}

	c := &Container{
		Header:  h,
		Blocks:  make([]*Block, 0, h.BlockCount),
		offsets: make([]int32, 0, h.BlockCount),
	}
	cur := encoding.NewByteCursor(body)
	for i := int32(0); i < h.BlockCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		off := int32(cur.Pos())
		b, err := ReadBlock(cur)
		if err != nil {
			return nil, err
		}
		c.Blocks = append(c.Blocks, b)
		c.offsets = append(c.offsets, off)
	}
	if cur.Len() != 0 {
		return nil, format.Corruptionf("%d trailing bytes after last block in container body", cur.Len())
	}

	return c, nil
}

// IsEOF reports whether this is the end-of-file container.
func (c *Container) IsEOF() bool { return c.Header.IsEOF() }

// CompressionHeader parses the container's first block, which must hold
// the compression header maps.
func (c *Container) CompressionHeader(reg *compress.Registry) (*CompressionHeader, error) {
	if len(c.Blocks) == 0 {
		return nil, format.Corruptionf("container has no blocks")
	}
	b := c.Blocks[0]
	if b.ContentType != format.ContentCompressionHeader {
		return nil, format.Corruptionf("first container block is %s, want CompressionHeader", b.ContentType)
	}
	data, err := b.Data(reg)
	if err != nil {
		return nil, err
	}

	return ParseCompressionHeader(data)
}

// SliceCount returns the number of slices the header's landmarks announce.
func (c *Container) SliceCount() int { return len(c.Header.Landmarks) }

// Slice materializes the i-th slice by seeking its landmark, without
// touching the blocks of any other slice.
func (c *Container) Slice(i int, reg *compress.Registry) (*Slice, error) {
	if i < 0 || i >= len(c.Header.Landmarks) {
		return nil, format.Corruptionf("slice index %d out of range: container has %d landmarks",
			i, len(c.Header.Landmarks))
	}

	landmark := c.Header.Landmarks[i]
	idx := -1
	for j, off := range c.offsets {
		if off == landmark {
			idx = j
			break
		}
	}
	if idx < 0 {
		return nil, format.WithSlice(
			format.Corruptionf("landmark %d does not address a block boundary", landmark), i)
	}

	s, err := newSlice(c.Blocks[idx], c.Blocks[idx+1:], reg)
	if err != nil {
		return nil, format.WithSlice(err, i)
	}

	return s, nil
}

// Slices materializes every slice in the container.
func (c *Container) Slices(reg *compress.Registry) ([]*Slice, error) {
	slices := make([]*Slice, 0, c.SliceCount())
	for i := 0; i < c.SliceCount(); i++ {
		s, err := c.Slice(i, reg)
		if err != nil {
			return nil, err
		}
		slices = append(slices, s)
	}

	return slices, nil
}
