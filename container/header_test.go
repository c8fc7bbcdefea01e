package container

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cramio/cram/format"
)

func TestHeader_RoundTrip(t *testing.T) {
	h := &Header{
		Length:        4096,
		RefID:         2,
		Start:         1_000_000,
		Span:          5_000,
		Records:       1500,
		RecordCounter: 123_456_789_012,
		Bases:         225_000,
		BlockCount:    12,
		Landmarks:     []int32{0, 1024, 2048},
	}

	wire := h.Append(nil)
	got, err := ReadHeader(bytes.NewReader(wire))
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHeader_ChecksumMismatch(t *testing.T) {
	h := &Header{Length: 64, RefID: -1, BlockCount: 1, Landmarks: []int32{0}}
	wire := h.Append(nil)

	// Corrupt the record counter byte. The length field is excluded: the
	// checksum covers it too, so flipping it must also fail.
	for _, idx := range []int{0, len(wire) / 2} {
		bad := append([]byte(nil), wire...)
		bad[idx] ^= 0x10

		_, err := ReadHeader(bytes.NewReader(bad))
		require.Error(t, err)
		require.True(t, format.IsKind(err, format.KindCorruption))
	}
}

func TestHeader_EmptyStream(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.EOF)
}

func TestHeader_Truncated(t *testing.T) {
	h := &Header{Length: 64, BlockCount: 2, Landmarks: []int32{0, 32}}
	wire := h.Append(nil)

	for n := 1; n < len(wire); n++ {
		_, err := ReadHeader(bytes.NewReader(wire[:n]))
		require.Error(t, err, "prefix of %d bytes", n)
		require.True(t, format.IsKind(err, format.KindCorruption), "prefix of %d bytes", n)
	}
}

func TestHeader_LandmarkOutsideBody(t *testing.T) {
	h := &Header{Length: 100, BlockCount: 2, Landmarks: []int32{100}}
	wire := h.Append(nil)

	_, err := ReadHeader(bytes.NewReader(wire))
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))
	require.Contains(t, err.Error(), "landmark")
}

func TestEOF_CanonicalBytes(t *testing.T) {
	require.Len(t, eofBytes, EOFLength)

	// Both embedded checksums must be self-consistent with the bytes they
	// cover: the header up to its CRC, and the block up to its CRC.
	hdrSum := crc32.ChecksumIEEE(eofBytes[:19])
	require.Equal(t, hdrSum, binary.LittleEndian.Uint32(eofBytes[19:23]))

	blkSum := crc32.ChecksumIEEE(eofBytes[23:34])
	require.Equal(t, blkSum, binary.LittleEndian.Uint32(eofBytes[34:38]))
}

func TestEOF_Detection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEOF(&buf))
	require.Equal(t, EOFLength, buf.Len())

	h, err := ReadHeader(&buf)
	require.NoError(t, err)
	require.True(t, h.IsEOF())

	// Any ordinary container header must not be mistaken for it.
	plain := &Header{Length: 15, RefID: -1, Start: eofStart, BlockCount: 2}
	require.False(t, plain.IsEOF())
}
