package encoding

import (
	"sort"

	"github.com/cramio/cram/format"
)

// huffmanTable is a canonical Huffman code built from an explicit
// {symbol, code length} list. Construction is a pure function of the list:
// entries are ordered by code length with symbol value as the tie break, and
// code values are assigned incrementally, shifting left whenever the length
// grows.
//
// A single-symbol table with code length zero is the degenerate constant
// case: decoding returns the symbol without consuming any bits.
type huffmanTable struct {
	symbols []int32 // sorted by (length, symbol)
	lengths []int32
	codes   []uint32

	// per-length decode acceleration, indexed by code length
	firstCode []uint32
	count     []int32
	offset    []int32

	maxLength int32
	constant  bool
}

func newHuffmanTable(alphabet, bitLengths []int32) (*huffmanTable, error) {
	if len(alphabet) != len(bitLengths) {
		return nil, format.Schemaf("huffman alphabet size %d does not match bit-length table size %d",
			len(alphabet), len(bitLengths))
	}
	if len(alphabet) == 0 {
		return nil, format.Schemaf("huffman table has an empty alphabet")
	}

	t := new(huffmanTable)

	order := make([]int, len(alphabet))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if bitLengths[order[a]] != bitLengths[order[b]] {
			return bitLengths[order[a]] < bitLengths[order[b]]
		}

		return alphabet[order[a]] < alphabet[order[b]]
	})

	syms := make([]int32, len(order))
	lens := make([]int32, len(order))
	for i, j := range order {
		syms[i] = alphabet[j]
		lens[i] = bitLengths[j]
	}
	t.symbols, t.lengths = syms, lens
	t.maxLength = lens[len(lens)-1]

	if t.maxLength == 0 {
		if len(syms) != 1 {
			return nil, format.Schemaf("huffman table with %d symbols has all-zero code lengths", len(syms))
		}
		t.constant = true

		return t, nil
	}
	if lens[0] == 0 {
		return nil, format.Schemaf("huffman table mixes zero and non-zero code lengths")
	}
	if t.maxLength > 31 {
		return nil, format.Schemaf("huffman code length %d exceeds 31 bits", t.maxLength)
	}

	t.codes = make([]uint32, len(syms))
	t.firstCode = make([]uint32, t.maxLength+1)
	t.count = make([]int32, t.maxLength+1)
	t.offset = make([]int32, t.maxLength+1)

	var code uint32
	for i := range syms {
		if i > 0 {
			code = (code + 1) << uint(lens[i]-lens[i-1])
		}
		t.codes[i] = code
		if t.count[lens[i]] == 0 {
			t.firstCode[lens[i]] = code
			t.offset[lens[i]] = int32(i)
		}
		t.count[lens[i]]++
	}
	if code>>uint(t.maxLength) != 0 {
		return nil, format.Schemaf("huffman code lengths overflow the code space")
	}

	return t, nil
}

// decode walks br bit by bit through the canonical code space.
func (t *huffmanTable) decode(br *BitReader) (int32, error) {
	if t.constant {
		return t.symbols[0], nil
	}

	var (
		code   uint32
		length int32
	)
	for {
		bit, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | bit
		length++

		if n := t.count[length]; n > 0 && code >= t.firstCode[length] && code-t.firstCode[length] < uint32(n) {
			return t.symbols[t.offset[length]+int32(code-t.firstCode[length])], nil
		}
		if length == t.maxLength {
			return 0, format.Corruptionf("huffman bit pattern matches no code")
		}
	}
}

// encode writes the code for symbol to bw.
func (t *huffmanTable) encode(bw *BitWriter, symbol int32) error {
	if t.constant {
		if symbol != t.symbols[0] {
			return format.Schemaf("symbol %d not in single-symbol huffman alphabet", symbol)
		}

		return nil
	}

	for i, s := range t.symbols {
		if s == symbol {
			bw.WriteBits(t.codes[i], int(t.lengths[i]))

			return nil
		}
	}

	return format.Schemaf("symbol %d not in huffman alphabet", symbol)
}
