package encoding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cramio/cram/format"
)

func TestItf8_RoundTrip(t *testing.T) {
	values := []int32{
		0, 1, 0x7F, // 1 byte boundary
		0x80, 0x3FFF, // 2 bytes
		0x4000, 0x1F_FFFF, // 3 bytes
		0x20_0000, 0x0FFF_FFFF, // 4 bytes
		0x1000_0000, math.MaxInt32, // 5 bytes
		-1, math.MinInt32, // negative values use the 5-byte form
	}

	for _, v := range values {
		buf := AppendItf8(nil, v)
		require.Len(t, buf, Itf8Length(v), "value %d", v)

		got, err := DecodeItf8(NewByteCursor(buf))
		require.NoError(t, err, "value %d", v)
		require.Equal(t, v, got)
	}
}

func TestItf8_EncodedLengths(t *testing.T) {
	require.Len(t, AppendItf8(nil, 0x7F), 1)
	require.Len(t, AppendItf8(nil, 0x80), 2)
	require.Len(t, AppendItf8(nil, 0x3FFF), 2)
	require.Len(t, AppendItf8(nil, 0x4000), 3)
	require.Len(t, AppendItf8(nil, 0x1F_FFFF), 3)
	require.Len(t, AppendItf8(nil, 0x20_0000), 4)
	require.Len(t, AppendItf8(nil, 0x0FFF_FFFF), 4)
	require.Len(t, AppendItf8(nil, 0x1000_0000), 5)
	require.Len(t, AppendItf8(nil, -1), 5)
}

func TestItf8_FiveByteFormUsesLowNibble(t *testing.T) {
	// The trailing byte of the 5-byte form contributes only its low 4 bits.
	buf := AppendItf8(nil, math.MinInt32)
	require.Equal(t, []byte{0xF8, 0x00, 0x00, 0x00, 0x00}, buf)

	buf = AppendItf8(nil, -1)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, buf)
}

func TestItf8_Truncated(t *testing.T) {
	full := AppendItf8(nil, 0x1234_5678)
	for cut := 1; cut < len(full); cut++ {
		_, err := DecodeItf8(NewByteCursor(full[:cut]))
		require.Error(t, err, "cut at %d", cut)
		require.True(t, format.IsKind(err, format.KindCorruption), "cut at %d", cut)
	}
}

func TestItf8_Array(t *testing.T) {
	values := []int32{0, -1, 42, math.MaxInt32}
	buf := AppendItf8Array(nil, values)

	got, err := DecodeItf8Array(NewByteCursor(buf))
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestLtf8_RoundTrip(t *testing.T) {
	values := []int64{
		0, 0x7F,
		0x80, 1<<14 - 1,
		1 << 14, 1<<21 - 1,
		1 << 21, 1<<28 - 1,
		1 << 28, 1<<35 - 1,
		1 << 35, 1<<42 - 1,
		1 << 42, 1<<49 - 1,
		1 << 49, 1<<56 - 1,
		1 << 56, math.MaxInt64,
		-1, math.MinInt64,
	}

	for _, v := range values {
		buf := AppendLtf8(nil, v)
		got, err := DecodeLtf8(NewByteCursor(buf))
		require.NoError(t, err, "value %d", v)
		require.Equal(t, v, got, "value %d", v)
	}
}

func TestLtf8_NineByteForm(t *testing.T) {
	buf := AppendLtf8(nil, -1)
	require.Len(t, buf, MaxLtf8Length)
	require.Equal(t, byte(0xFF), buf[0])
}

func TestLtf8_Truncated(t *testing.T) {
	full := AppendLtf8(nil, math.MaxInt64)
	for cut := 1; cut < len(full); cut++ {
		_, err := DecodeLtf8(NewByteCursor(full[:cut]))
		require.True(t, format.IsKind(err, format.KindCorruption), "cut at %d", cut)
	}
}
