package container

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cramio/cram/compress"
	"github.com/cramio/cram/format"
)

// buildTestContainer assembles a single-slice container: compression
// header, slice header, core stream and two external streams.
func buildTestContainer(t *testing.T, reg *compress.Registry) []byte {
	t.Helper()

	ch, err := ParseCompressionHeader(emptyCompressionHeader)
	require.NoError(t, err)

	body, err := NewBlock(format.ContentCompressionHeader, 0, ch.Append(nil)).
		Append(nil, reg, format.MethodRaw)
	require.NoError(t, err)

	landmark := int32(len(body))

	sh := &SliceHeader{
		RefID:         1,
		Start:         1000,
		Span:          500,
		Records:       3,
		RecordCounter: 42,
		BlockCount:    3,
		ContentIDs:    []int32{1, 2},
		EmbeddedRefID: -1,
	}
	body, err = NewBlock(format.ContentSliceHeader, 0, sh.Append(nil)).
		Append(body, reg, format.MethodRaw)
	require.NoError(t, err)

	body, err = NewBlock(format.ContentCore, 0, []byte{0xA5, 0x0F}).
		Append(body, reg, format.MethodRaw)
	require.NoError(t, err)
	body, err = NewBlock(format.ContentExternal, 1, []byte("first external stream")).
		Append(body, reg, format.MethodGzip)
	require.NoError(t, err)
	body, err = NewBlock(format.ContentExternal, 2, []byte("second external stream")).
		Append(body, reg, format.MethodRans)
	require.NoError(t, err)

	h := &Header{
		Length:        int32(len(body)),
		RefID:         1,
		Start:         1000,
		Span:          500,
		Records:       3,
		RecordCounter: 42,
		Bases:         150,
		BlockCount:    5,
		Landmarks:     []int32{landmark},
	}

	return append(h.Append(nil), body...)
}

func TestReadContainer_RoundTrip(t *testing.T) {
	reg := compress.NewRegistry()
	wire := buildTestContainer(t, reg)

	c, err := ReadContainer(bytes.NewReader(wire))
	require.NoError(t, err)
	require.False(t, c.IsEOF())
	require.Len(t, c.Blocks, 5)
	require.Equal(t, int32(3), c.Header.Records)

	_, err = c.CompressionHeader(reg)
	require.NoError(t, err)

	require.Equal(t, 1, c.SliceCount())
	s, err := c.Slice(0, reg)
	require.NoError(t, err)
	require.Equal(t, int32(3), s.Header.Records)
	require.Len(t, s.External, 2)

	streams, err := s.DecodeStreams(reg)
	require.NoError(t, err)
	require.Contains(t, streams.External, int32(1))
	require.Contains(t, streams.External, int32(2))
	require.Equal(t, 21, streams.External[1].Len())
}

func TestReadContainer_EOF(t *testing.T) {
	c, err := ReadContainer(bytes.NewReader(eofBytes))
	require.NoError(t, err)
	require.True(t, c.IsEOF())

	// The EOF container's only block parses as an empty compression
	// header.
	ch, err := c.CompressionHeader(compress.NewRegistry())
	require.NoError(t, err)
	require.Empty(t, ch.DataSeries)
}

func TestReadContainer_BodyTruncated(t *testing.T) {
	reg := compress.NewRegistry()
	wire := buildTestContainer(t, reg)

	_, err := ReadContainer(bytes.NewReader(wire[:len(wire)-10]))
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))
}

func TestReadContainer_PayloadBitFlip(t *testing.T) {
	reg := compress.NewRegistry()
	wire := buildTestContainer(t, reg)

	// Flip one bit somewhere inside the last block's payload.
	bad := append([]byte(nil), wire...)
	bad[len(bad)-8] ^= 0x08

	_, err := ReadContainer(bytes.NewReader(bad))
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))
}

func TestReadContainerContext_Canceled(t *testing.T) {
	reg := compress.NewRegistry()
	wire := buildTestContainer(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadContainerContext(ctx, bytes.NewReader(wire))
	require.ErrorIs(t, err, context.Canceled)
}

func TestContainer_SliceErrors(t *testing.T) {
	reg := compress.NewRegistry()
	wire := buildTestContainer(t, reg)

	c, err := ReadContainer(bytes.NewReader(wire))
	require.NoError(t, err)

	_, err = c.Slice(-1, reg)
	require.Error(t, err)
	_, err = c.Slice(1, reg)
	require.Error(t, err)

	// A landmark pointing inside a block is corruption, not a panic.
	c.Header.Landmarks[0]++
	_, err = c.Slice(0, reg)
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))
	require.Contains(t, err.Error(), "block boundary")
}

func TestContainer_Slices(t *testing.T) {
	reg := compress.NewRegistry()
	wire := buildTestContainer(t, reg)

	c, err := ReadContainer(bytes.NewReader(wire))
	require.NoError(t, err)

	slices, err := c.Slices(reg)
	require.NoError(t, err)
	require.Len(t, slices, 1)
}

func TestSliceHeader_RoundTrip(t *testing.T) {
	h := &SliceHeader{
		RefID:         3,
		Start:         2_000_000,
		Span:          10_000,
		Records:       5000,
		RecordCounter: 987_654_321,
		BlockCount:    4,
		ContentIDs:    []int32{1, 2, 3},
		EmbeddedRefID: -1,
		RefMD5:        [16]byte{0xde, 0xad, 0xbe, 0xef},
	}

	got, err := ParseSliceHeader(h.Append(nil))
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestSliceHeader_BlockCountMismatch(t *testing.T) {
	h := &SliceHeader{
		BlockCount:    5,
		ContentIDs:    []int32{1, 2},
		EmbeddedRefID: -1,
	}

	_, err := ParseSliceHeader(h.Append(nil))
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))
}
