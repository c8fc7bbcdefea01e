// Package compress provides the block compression codecs of the container
// format behind a single Codec interface, dispatched by wire method id
// through an extensible Registry.
//
// The standard methods (raw, gzip, bzip2, lzma, rANS 4x8) are always
// installed. Extension methods (LZ4, Zstd) ship with the package but are
// only honored when a caller registers them explicitly, keeping written
// files interoperable by default.
package compress

import (
	"github.com/cramio/cram/format"
)

// Compressor compresses one decompressed block payload.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller
//   - Input slice is not modified
//   - Internal buffers may be reused across calls
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores one block payload.
//
// Implementations validate their own framing and return an error for
// corrupted input; they never guess or repair. Size validation against the
// block's declared raw size happens in the block layer, not here.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions. All implementations in this package are
// safe for concurrent use.
type Codec interface {
	Compressor
	Decompressor
}

// Registry maps wire method ids to codecs.
//
// The zero value is unusable; NewRegistry returns a registry with the
// standard methods installed.
type Registry struct {
	codecs map[format.CompressionMethod]Codec
}

// NewRegistry returns a registry with the standard block compression
// methods installed.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[format.CompressionMethod]Codec)}
	r.Register(format.MethodRaw, NewNoOpCodec())
	r.Register(format.MethodGzip, NewGzipCodec())
	r.Register(format.MethodBzip2, NewBzip2Codec())
	r.Register(format.MethodLzma, NewLzmaCodec())
	r.Register(format.MethodRans, NewRansCodec(0))

	return r
}

// Register installs (or replaces) the codec for a method.
func (r *Registry) Register(m format.CompressionMethod, c Codec) {
	r.codecs[m] = c
}

// Lookup returns the codec for a method. Recognized-but-unregistered methods
// and unknown method bytes both fail as unsupported features, distinguishing
// "can't" from corruption.
func (r *Registry) Lookup(m format.CompressionMethod) (Codec, error) {
	if c, ok := r.codecs[m]; ok {
		return c, nil
	}

	switch m {
	case format.MethodLZ4, format.MethodZstd:
		return nil, format.Unsupportedf("compression method %s is not registered", m)
	default:
		return nil, format.Unsupportedf("unknown compression method id %d", uint8(m))
	}
}
