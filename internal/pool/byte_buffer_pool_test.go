package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBuffer_Basics(t *testing.T) {
	bb := NewByteBuffer(16)
	require.Equal(t, 0, bb.Len())

	bb.MustWrite([]byte("hello"))
	require.Equal(t, 5, bb.Len())
	require.Equal(t, "hello", string(bb.Bytes()))

	bb.Reset()
	require.Equal(t, 0, bb.Len())
	require.GreaterOrEqual(t, cap(bb.B), 16)
}

func TestByteBuffer_Grow(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.Grow(1024)
	require.GreaterOrEqual(t, cap(bb.B), 1024)

	// growing within capacity must not reallocate
	before := cap(bb.B)
	bb.Grow(512)
	require.Equal(t, before, cap(bb.B))
}

func TestByteBuffer_WriteTo(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.MustWrite([]byte("payload"))

	var out bytes.Buffer
	n, err := bb.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	require.Equal(t, "payload", out.String())
}

func TestByteBufferPool_Reuse(t *testing.T) {
	p := NewByteBufferPool(32, 1024)

	bb := p.Get()
	require.NotNil(t, bb)
	bb.MustWrite([]byte("x"))
	p.Put(bb)

	got := p.Get()
	require.Equal(t, 0, got.Len(), "pooled buffers are returned reset")
}

func TestByteBufferPool_DropsOversized(t *testing.T) {
	p := NewByteBufferPool(32, 64)

	bb := p.Get()
	bb.Grow(4096)
	p.Put(bb) // over threshold: dropped, must not panic

	require.NotNil(t, p.Get())
}

func TestDefaultPools(t *testing.T) {
	bb := GetBlockBuffer()
	require.NotNil(t, bb)
	PutBlockBuffer(bb)

	cb := GetContainerBuffer()
	require.NotNil(t, cb)
	PutContainerBuffer(cb)
}
