package cram

import (
	"strings"
	"sync"

	"github.com/cramio/cram/internal/hash"
)

// ReferenceSource supplies reference sequences by name. Implementations
// must be safe for concurrent use.
type ReferenceSource interface {
	// Sequence returns the full sequence of the named reference. The
	// second result is false when the source does not have it.
	Sequence(name string) ([]byte, bool)
}

// ReferenceStore is an in-memory ReferenceSource keyed by hashed sequence
// name.
type ReferenceStore struct {
	mu   sync.RWMutex
	seqs map[uint64][]byte
}

// NewReferenceStore returns an empty store.
func NewReferenceStore() *ReferenceStore {
	return &ReferenceStore{seqs: make(map[uint64][]byte)}
}

// Add registers a sequence under name, replacing any previous one.
func (s *ReferenceStore) Add(name string, seq []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[hash.RefID(name)] = seq
}

// Sequence implements ReferenceSource.
func (s *ReferenceStore) Sequence(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, ok := s.seqs[hash.RefID(name)]

	return seq, ok
}

// parseReferenceNames extracts the @SQ sequence names from a SAM header,
// in dictionary order. Reference ids index this list.
func parseReferenceNames(header string) []string {
	var names []string
	for _, line := range strings.Split(header, "\n") {
		if !strings.HasPrefix(line, "@SQ") {
			continue
		}
		for _, field := range strings.Split(line, "\t")[1:] {
			if name, ok := strings.CutPrefix(field, "SN:"); ok {
				names = append(names, strings.TrimRight(name, "\r"))
				break
			}
		}
	}

	return names
}
