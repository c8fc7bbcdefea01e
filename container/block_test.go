package container

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cramio/cram/compress"
	"github.com/cramio/cram/encoding"
	"github.com/cramio/cram/format"
)

func TestBlock_RoundTrip(t *testing.T) {
	reg := compress.NewRegistry()
	payload := []byte("GATTACAGATTACAGATTACAGATTACAGATTACAGATTACA")

	methods := []format.CompressionMethod{
		format.MethodRaw,
		format.MethodGzip,
		format.MethodBzip2,
		format.MethodLzma,
		format.MethodRans,
	}
	for _, m := range methods {
		t.Run(m.String(), func(t *testing.T) {
			b := NewBlock(format.ContentExternal, 7, payload)
			wire, err := b.Append(nil, reg, m)
			require.NoError(t, err)

			got, err := ReadBlock(encoding.NewByteCursor(wire))
			require.NoError(t, err)
			require.Equal(t, format.ContentExternal, got.ContentType)
			require.Equal(t, int32(7), got.ContentID)
			require.Equal(t, int32(len(payload)), got.RawSize)

			data, err := got.Data(reg)
			require.NoError(t, err)
			require.Equal(t, payload, data)
		})
	}
}

func TestBlock_ChecksumMismatch(t *testing.T) {
	reg := compress.NewRegistry()
	b := NewBlock(format.ContentExternal, 1, []byte("payload bytes"))
	wire, err := b.Append(nil, reg, format.MethodRaw)
	require.NoError(t, err)

	// Flip one payload bit; the trailing CRC must catch it.
	wire[len(wire)-6] ^= 0x01

	_, err = ReadBlock(encoding.NewByteCursor(wire))
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))
	require.Contains(t, err.Error(), "checksum")
}

func TestBlock_RawSizeMismatch(t *testing.T) {
	reg := compress.NewRegistry()
	gz, err := reg.Lookup(format.MethodGzip)
	require.NoError(t, err)

	payload := make([]byte, 99)
	comp, err := gz.Compress(payload)
	require.NoError(t, err)

	// A block declaring raw size 100 over a 99-byte payload: the frame is
	// intact, so the mismatch surfaces on decompression, not on read.
	wire := []byte{byte(format.MethodGzip), byte(format.ContentExternal)}
	wire = encoding.AppendItf8(wire, 3)
	wire = encoding.AppendItf8(wire, int32(len(comp)))
	wire = encoding.AppendItf8(wire, 100)
	wire = append(wire, comp...)
	wire = binary.LittleEndian.AppendUint32(wire, crc32.ChecksumIEEE(wire))

	b, err := ReadBlock(encoding.NewByteCursor(wire))
	require.NoError(t, err)

	_, err = b.Data(reg)
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))
	require.Contains(t, err.Error(), "raw size mismatch")

	var fe *format.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, int32(3), fe.ContentID)
}

func TestBlock_Truncated(t *testing.T) {
	reg := compress.NewRegistry()
	b := NewBlock(format.ContentCore, 0, []byte("core bits here"))
	wire, err := b.Append(nil, reg, format.MethodRaw)
	require.NoError(t, err)

	for _, n := range []int{1, 3, len(wire) / 2, len(wire) - 1} {
		_, err := ReadBlock(encoding.NewByteCursor(wire[:n]))
		require.Error(t, err, "prefix of %d bytes", n)
		require.True(t, format.IsKind(err, format.KindCorruption))
	}
}

func TestBlock_UnknownMethodSurfacesOnData(t *testing.T) {
	reg := compress.NewRegistry()

	wire := []byte{0x42, byte(format.ContentExternal)}
	wire = encoding.AppendItf8(wire, 1)
	wire = encoding.AppendItf8(wire, 4)
	wire = encoding.AppendItf8(wire, 4)
	wire = append(wire, "abcd"...)
	wire = binary.LittleEndian.AppendUint32(wire, crc32.ChecksumIEEE(wire))

	b, err := ReadBlock(encoding.NewByteCursor(wire))
	require.NoError(t, err)

	_, err = b.Data(reg)
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindUnsupported))
}

func TestBlock_ExtensionMethods(t *testing.T) {
	reg := compress.NewRegistry()
	reg.Register(format.MethodLZ4, compress.NewLZ4Codec())
	reg.Register(format.MethodZstd, compress.NewZstdCodec())

	payload := []byte("TTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTT")
	for _, m := range []format.CompressionMethod{format.MethodLZ4, format.MethodZstd} {
		b := NewBlock(format.ContentExternal, 2, payload)
		wire, err := b.Append(nil, reg, m)
		require.NoError(t, err)

		got, err := ReadBlock(encoding.NewByteCursor(wire))
		require.NoError(t, err)

		data, err := got.Data(reg)
		require.NoError(t, err)
		require.Equal(t, payload, data)
	}
}
