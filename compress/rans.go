package compress

import (
	"encoding/binary"

	"github.com/cramio/cram/format"
)

// rANS 4x8: four interleaved static arithmetic coder states with byte-wise
// renormalization and 12-bit frequency precision. Order-0 models each byte
// independently; order-1 conditions each byte on its predecessor and codes
// the stream as four quarters, one per state.
//
// Framing: 1 byte order, 4 bytes little-endian compressed size (table +
// state data), 4 bytes little-endian raw size, then the serialized
// frequency table and the interleaved state bytes.
const (
	ransByteL    = 1 << 23 // lower bound of the normalization interval
	ransTFShift  = 12
	ransTotFreq  = 1 << ransTFShift
	ransNStates  = 4
	ransHeaderSz = 9
)

// RansCodec implements the rANS block compression method.
type RansCodec struct {
	order int
}

var _ Codec = RansCodec{}

// NewRansCodec returns a rANS codec that compresses with the given order
// (0 or 1). Decompression accepts either order regardless.
func NewRansCodec(order int) RansCodec {
	if order != 0 && order != 1 {
		order = 0
	}

	return RansCodec{order: order}
}

type ransEncSymbol struct {
	freq uint32
	cum  uint32
}

type ransState uint32

func (r *ransState) put(out *[]byte, sym ransEncSymbol) {
	x := uint32(*r)
	xMax := ((ransByteL >> ransTFShift) << 8) * sym.freq
	for x >= xMax {
		*out = append(*out, byte(x))
		x >>= 8
	}
	*r = ransState((x/sym.freq)<<ransTFShift + sym.cum + x%sym.freq)
}

func (r ransState) flush(out *[]byte) {
	// bytes are emitted in stream order after the whole buffer is reversed,
	// so the 32-bit state is appended high byte first
	*out = append(*out, byte(r>>24), byte(r>>16), byte(r>>8), byte(r))
}

type ransDecoder struct {
	data []byte
	pos  int
}

func (d *ransDecoder) u8() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, format.Corruptionf("rans stream truncated at byte %d", d.pos)
	}
	b := d.data[d.pos]
	d.pos++

	return b, nil
}

func (d *ransDecoder) peek() byte {
	if d.pos >= len(d.data) {
		return 0
	}

	return d.data[d.pos]
}

func (d *ransDecoder) initState() (uint32, error) {
	if d.pos+4 > len(d.data) {
		return 0, format.Corruptionf("rans stream truncated reading coder state")
	}
	x := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4

	return x, nil
}

func (d *ransDecoder) renorm(x uint32) uint32 {
	for x < ransByteL && d.pos < len(d.data) {
		x = x<<8 | uint32(d.data[d.pos])
		d.pos++
	}

	return x
}

// normalizeFreqs scales freqs so nonzero entries stay nonzero and the total
// is exactly ransTotFreq.
func normalizeFreqs(freqs []uint32, total uint32) {
	if total == 0 {
		return
	}

	sum := uint32(0)
	for i, f := range freqs {
		if f == 0 {
			continue
		}
		nf := uint32(uint64(f) * ransTotFreq / uint64(total))
		if nf == 0 {
			nf = 1
		}
		freqs[i] = nf
		sum += nf
	}

	// push the residual onto the most frequent symbol, then shave excess
	// off any symbol that can spare it
	if sum < ransTotFreq {
		max := 0
		for i, f := range freqs {
			if f > freqs[max] {
				max = i
			}
		}
		freqs[max] += ransTotFreq - sum

		return
	}
	for sum > ransTotFreq {
		for i := range freqs {
			if sum == ransTotFreq {
				break
			}
			if freqs[i] > 1 {
				freqs[i]--
				sum--
			}
		}
	}
}

// appendFreqs serializes one 256-entry frequency row using the symbol
// run-length scheme shared by both orders: a symbol byte, an optional run
// length when symbols are consecutive, frequencies as one byte (<128) or
// two (high bit set), and a zero terminator.
func appendFreqs(out []byte, freqs *[256]uint32) []byte {
	rle := 0
	for j := 0; j < 256; j++ {
		f := freqs[j]
		if f == 0 {
			continue
		}

		if rle > 0 {
			rle--
		} else {
			out = append(out, byte(j))
			if j > 0 && freqs[j-1] > 0 {
				for rle = j + 1; rle < 256 && freqs[rle] > 0; rle++ {
				}
				rle -= j + 1
				out = append(out, byte(rle))
			}
		}

		if f < 128 {
			out = append(out, byte(f))
		} else {
			out = append(out, byte(128|f>>8), byte(f))
		}
	}

	return append(out, 0)
}

// ransDecTable is one decode context: frequencies, cumulative frequencies
// and the slot-to-symbol lookup.
type ransDecTable struct {
	freq [256]uint32
	cum  [256]uint32
	ssym [ransTotFreq]byte
}

// parseFreqs reads one frequency row and builds its decode table.
func (d *ransDecoder) parseFreqs() (*ransDecTable, error) {
	t := new(ransDecTable)

	j, err := d.u8()
	if err != nil {
		return nil, err
	}

	rle := 0
	var total uint32
	for {
		fb, err := d.u8()
		if err != nil {
			return nil, err
		}
		f := uint32(fb)
		if f >= 128 {
			lo, err := d.u8()
			if err != nil {
				return nil, err
			}
			f = (f&127)<<8 | uint32(lo)
		}
		t.freq[j] = f

		t.cum[j] = total
		if total+f > ransTotFreq {
			return nil, format.Corruptionf("rans frequency table total exceeds %d", ransTotFreq)
		}
		for slot := total; slot < total+f; slot++ {
			t.ssym[slot] = j
		}
		total += f

		if rle == 0 && int(j)+1 == int(d.peek()) {
			if j, err = d.u8(); err != nil {
				return nil, err
			}
			rb, err := d.u8()
			if err != nil {
				return nil, err
			}
			rle = int(rb)
		} else if rle > 0 {
			rle--
			j++
		} else {
			if j, err = d.u8(); err != nil {
				return nil, err
			}
			if j == 0 {
				break
			}
		}
	}

	// unclaimed slots map to symbol 0; hitting one during decode means the
	// stream is corrupt, which the frequency update then surfaces
	return t, nil
}

// Compress compresses data with the codec's configured order.
func (c RansCodec) Compress(data []byte) ([]byte, error) {
	order := c.order
	if len(data) < ransNStates {
		// order-1 needs at least one byte per state quarter
		order = 0
	}

	var body []byte
	if order == 0 {
		body = ransCompress0(data)
	} else {
		body = ransCompress1(data)
	}

	out := make([]byte, ransHeaderSz, ransHeaderSz+len(body))
	out[0] = byte(order)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[5:], uint32(len(data)))

	return append(out, body...), nil
}

// Decompress restores a rANS stream of either order.
func (c RansCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) < ransHeaderSz {
		return nil, format.Corruptionf("rans stream shorter than its %d-byte header", ransHeaderSz)
	}

	order := data[0]
	compSz := binary.LittleEndian.Uint32(data[1:])
	rawSz := binary.LittleEndian.Uint32(data[5:])

	if int(compSz) != len(data)-ransHeaderSz {
		return nil, format.Corruptionf("rans compressed size %d does not match stream length %d",
			compSz, len(data)-ransHeaderSz)
	}
	if rawSz == 0 {
		return []byte{}, nil
	}

	d := &ransDecoder{data: data[ransHeaderSz:]}

	switch order {
	case 0:
		return ransDecompress0(d, int(rawSz))
	case 1:
		return ransDecompress1(d, int(rawSz))
	default:
		return nil, format.Corruptionf("rans order byte %d is not 0 or 1", order)
	}
}

func ransCompress0(data []byte) []byte {
	var freqs [256]uint32
	for _, b := range data {
		freqs[b]++
	}
	normalizeFreqs(freqs[:], uint32(len(data)))

	var syms [256]ransEncSymbol
	var cum uint32
	for j := 0; j < 256; j++ {
		syms[j] = ransEncSymbol{freq: freqs[j], cum: cum}
		cum += freqs[j]
	}

	out := appendFreqs(nil, &freqs)
	if len(data) == 0 {
		return out
	}

	// state bytes are produced in reverse; collect then flip
	var rev []byte
	var r [ransNStates]ransState
	for i := range r {
		r[i] = ransByteL
	}

	i := len(data)
	switch i & 3 {
	case 3:
		r[2].put(&rev, syms[data[i-1]])
		r[1].put(&rev, syms[data[i-2]])
		r[0].put(&rev, syms[data[i-3]])
	case 2:
		r[1].put(&rev, syms[data[i-1]])
		r[0].put(&rev, syms[data[i-2]])
	case 1:
		r[0].put(&rev, syms[data[i-1]])
	}

	for i = len(data) &^ 3; i > 0; i -= 4 {
		r[3].put(&rev, syms[data[i-1]])
		r[2].put(&rev, syms[data[i-2]])
		r[1].put(&rev, syms[data[i-3]])
		r[0].put(&rev, syms[data[i-4]])
	}

	r[3].flush(&rev)
	r[2].flush(&rev)
	r[1].flush(&rev)
	r[0].flush(&rev)

	for a, b := 0, len(rev)-1; a < b; a, b = a+1, b-1 {
		rev[a], rev[b] = rev[b], rev[a]
	}

	return append(out, rev...)
}

func ransDecompress0(d *ransDecoder, rawSz int) ([]byte, error) {
	t, err := d.parseFreqs()
	if err != nil {
		return nil, err
	}

	var r [ransNStates]uint32
	for i := range r {
		if r[i], err = d.initState(); err != nil {
			return nil, err
		}
	}

	out := make([]byte, rawSz)
	i := 0
	for ; i+ransNStates <= rawSz; i += ransNStates {
		for k := 0; k < ransNStates; k++ {
			m := r[k] & (ransTotFreq - 1)
			s := t.ssym[m]
			if t.freq[s] == 0 {
				return nil, format.Corruptionf("rans state selects a zero-frequency symbol")
			}
			out[i+k] = s
			r[k] = t.freq[s]*(r[k]>>ransTFShift) + m - t.cum[s]
			r[k] = d.renorm(r[k])
		}
	}
	for k := 0; i < rawSz; i, k = i+1, k+1 {
		m := r[k] & (ransTotFreq - 1)
		s := t.ssym[m]
		if t.freq[s] == 0 {
			return nil, format.Corruptionf("rans state selects a zero-frequency symbol")
		}
		out[i] = s
		r[k] = t.freq[s]*(r[k]>>ransTFShift) + m - t.cum[s]
		r[k] = d.renorm(r[k])
	}

	return out, nil
}

func ransCompress1(data []byte) []byte {
	isz4 := len(data) >> 2

	// conditional frequencies; context 0 also covers each quarter's first byte
	freqs := make([]*[256]uint32, 256)
	totals := make([]uint32, 256)
	row := func(ctx byte) *[256]uint32 {
		if freqs[ctx] == nil {
			freqs[ctx] = new([256]uint32)
		}

		return freqs[ctx]
	}

	row(0)[data[0]]++
	row(0)[data[1*isz4]]++
	row(0)[data[2*isz4]]++
	row(0)[data[3*isz4]]++
	totals[0] += 4
	for i := 1; i < len(data); i++ {
		if i == 1*isz4 || i == 2*isz4 || i == 3*isz4 {
			continue
		}
		row(data[i-1])[data[i]]++
		totals[data[i-1]]++
	}

	syms := make([]*[256]ransEncSymbol, 256)
	var out []byte
	rle := 0
	for ctx := 0; ctx < 256; ctx++ {
		if freqs[ctx] == nil || totals[ctx] == 0 {
			continue
		}
		normalizeFreqs(freqs[ctx][:], totals[ctx])

		syms[ctx] = new([256]ransEncSymbol)
		var cum uint32
		for j := 0; j < 256; j++ {
			syms[ctx][j] = ransEncSymbol{freq: freqs[ctx][j], cum: cum}
			cum += freqs[ctx][j]
		}

		if rle > 0 {
			rle--
		} else {
			out = append(out, byte(ctx))
			if ctx > 0 && freqs[ctx-1] != nil && totals[ctx-1] > 0 {
				for rle = ctx + 1; rle < 256 && freqs[rle] != nil && totals[rle] > 0; rle++ {
				}
				rle -= ctx + 1
				out = append(out, byte(rle))
			}
		}
		out = appendFreqs(out, freqs[ctx])
	}
	out = append(out, 0)

	var rev []byte
	var r [ransNStates]ransState
	for i := range r {
		r[i] = ransByteL
	}

	i0, i1, i2, i3 := 1*isz4-2, 2*isz4-2, 3*isz4-2, len(data)-2
	l0, l1, l2, l3 := data[i0+1], data[i1+1], data[i2+1], data[i3+1]

	// the tail beyond 4*isz4 belongs to the last state
	for ; i3 > 4*isz4-2; i3-- {
		c3 := data[i3]
		r[3].put(&rev, syms[c3][l3])
		l3 = c3
	}

	for ; i0 >= 0; i0, i1, i2, i3 = i0-1, i1-1, i2-1, i3-1 {
		c0, c1, c2, c3 := data[i0], data[i1], data[i2], data[i3]
		r[3].put(&rev, syms[c3][l3])
		r[2].put(&rev, syms[c2][l2])
		r[1].put(&rev, syms[c1][l1])
		r[0].put(&rev, syms[c0][l0])
		l0, l1, l2, l3 = c0, c1, c2, c3
	}

	// each quarter's first byte is coded in context 0
	r[3].put(&rev, syms[0][l3])
	r[2].put(&rev, syms[0][l2])
	r[1].put(&rev, syms[0][l1])
	r[0].put(&rev, syms[0][l0])

	r[3].flush(&rev)
	r[2].flush(&rev)
	r[1].flush(&rev)
	r[0].flush(&rev)

	for a, b := 0, len(rev)-1; a < b; a, b = a+1, b-1 {
		rev[a], rev[b] = rev[b], rev[a]
	}

	return append(out, rev...)
}

func ransDecompress1(d *ransDecoder, rawSz int) ([]byte, error) {
	tables := make([]*ransDecTable, 256)

	ctx, err := d.u8()
	if err != nil {
		return nil, err
	}
	rle := 0
	for {
		t, err := d.parseFreqs()
		if err != nil {
			return nil, err
		}
		tables[ctx] = t

		if rle == 0 && int(ctx)+1 == int(d.peek()) {
			if ctx, err = d.u8(); err != nil {
				return nil, err
			}
			rb, err := d.u8()
			if err != nil {
				return nil, err
			}
			rle = int(rb)
		} else if rle > 0 {
			rle--
			ctx++
		} else {
			if ctx, err = d.u8(); err != nil {
				return nil, err
			}
			if ctx == 0 {
				break
			}
		}
	}

	var r [ransNStates]uint32
	for i := range r {
		if r[i], err = d.initState(); err != nil {
			return nil, err
		}
	}

	out := make([]byte, rawSz)
	isz4 := rawSz >> 2
	var last [ransNStates]byte

	idx := [ransNStates]int{0, isz4, 2 * isz4, 3 * isz4}
	for n := 0; n < isz4; n++ {
		for k := 0; k < ransNStates; k++ {
			t := tables[last[k]]
			if t == nil {
				return nil, format.Corruptionf("rans order-1 context 0x%02x has no frequency table", last[k])
			}
			m := r[k] & (ransTotFreq - 1)
			s := t.ssym[m]
			if t.freq[s] == 0 {
				return nil, format.Corruptionf("rans state selects a zero-frequency symbol")
			}
			out[idx[k]] = s
			r[k] = t.freq[s]*(r[k]>>ransTFShift) + m - t.cum[s]
			r[k] = d.renorm(r[k])
			last[k] = s
			idx[k]++
		}
	}

	// remainder decoded by the last state
	for i := 4 * isz4; i < rawSz; i++ {
		t := tables[last[3]]
		if t == nil {
			return nil, format.Corruptionf("rans order-1 context 0x%02x has no frequency table", last[3])
		}
		m := r[3] & (ransTotFreq - 1)
		s := t.ssym[m]
		if t.freq[s] == 0 {
			return nil, format.Corruptionf("rans state selects a zero-frequency symbol")
		}
		out[i] = s
		r[3] = t.freq[s]*(r[3]>>ransTFShift) + m - t.cum[s]
		r[3] = d.renorm(r[3])
		last[3] = s
	}

	return out, nil
}
