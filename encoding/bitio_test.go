package encoding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cramio/cram/format"
)

func TestBitWriter_ReaderRoundTrip(t *testing.T) {
	bw := NewBitWriter()
	bw.WriteBit(1)
	bw.WriteBits(0b1011, 4)
	bw.WriteBits(0xDEADBEEF, 32)
	bw.WriteBits(0, 0)
	bw.WriteBits(0x3FF, 10)

	br := NewBitReader(bw.Bytes())

	bit, err := br.ReadBit()
	require.NoError(t, err)
	require.Equal(t, uint32(1), bit)

	v, err := br.ReadBits(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0b1011), v)

	v, err = br.ReadBits(32)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), v)

	v, err = br.ReadBits(10)
	require.NoError(t, err)
	require.Equal(t, uint32(0x3FF), v)
}

func TestBitReader_MSBFirst(t *testing.T) {
	br := NewBitReader([]byte{0b1010_0000})

	for _, want := range []uint32{1, 0, 1, 0} {
		bit, err := br.ReadBit()
		require.NoError(t, err)
		require.Equal(t, want, bit)
	}
}

func TestBitReader_CrossesByteBoundary(t *testing.T) {
	br := NewBitReader([]byte{0xAB, 0xCD})

	_, err := br.ReadBits(4)
	require.NoError(t, err)

	v, err := br.ReadBits(8)
	require.NoError(t, err)
	require.Equal(t, uint32(0xBC), v)
}

func TestBitReader_Exhausted(t *testing.T) {
	br := NewBitReader([]byte{0xFF})

	_, err := br.ReadBits(8)
	require.NoError(t, err)

	_, err = br.ReadBit()
	require.True(t, format.IsKind(err, format.KindCorruption))
}

func TestBitWriter_PartialBytePadding(t *testing.T) {
	bw := NewBitWriter()
	bw.WriteBits(0b101, 3)
	require.Equal(t, 1, bw.Len())
	require.Equal(t, []byte{0b1010_0000}, bw.Bytes())
}
