package hash

import "github.com/cespare/xxhash/v2"

// RefID computes the xxHash64 of a reference sequence name. The reference
// store keys its sequences by this ID so lookups during record resolution
// avoid string map keys on the hot path.
func RefID(name string) uint64 {
	return xxhash.Sum64String(name)
}
