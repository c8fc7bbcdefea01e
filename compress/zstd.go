package compress

// ZstdCodec is the Zstandard extension method. It is never selected by
// default; register it under format.MethodZstd to read or write streams
// that use it.
//
// Two implementations are provided behind build tags: the cgo build wraps
// libzstd, the pure-Go build uses klauspost/compress. Both produce standard
// zstd frames and interoperate freely.
type ZstdCodec struct{}

var _ Codec = ZstdCodec{}

// NewZstdCodec returns a zstd codec with default settings.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}
