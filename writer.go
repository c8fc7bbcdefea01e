package cram

import (
	"crypto/md5"
	"fmt"
	"io"
	"sort"

	"github.com/cramio/cram/compress"
	"github.com/cramio/cram/container"
	"github.com/cramio/cram/format"
	"github.com/cramio/cram/internal/hash"
	"github.com/cramio/cram/internal/pool"
	"github.com/cramio/cram/record"
)

const (
	defaultRecordsPerSlice    = 10_000
	defaultSlicesPerContainer = 1
)

// WriterOptions configure a Writer. The zero value is usable.
type WriterOptions struct {
	// Registry supplies block compression. Defaults to the standard
	// methods.
	Registry *compress.Registry

	// References supplies sequences for decomposing mapped records and
	// for slice checksums.
	References ReferenceSource

	// Method compresses data blocks. Defaults to gzip; blocks that do
	// not shrink are stored raw.
	Method format.CompressionMethod

	// RecordsPerSlice and SlicesPerContainer bound container size.
	RecordsPerSlice    int
	SlicesPerContainer int

	// PositionDeltas stores alignment starts as deltas against the
	// previous record, which helps on coordinate-sorted input.
	PositionDeltas bool

	// DropReadNames omits read names; readers regenerate them.
	DropReadNames bool
}

// Writer encodes records into containers. Records accumulate until a
// container is full; Close flushes the remainder and writes the
// end-of-file container. It is not safe for concurrent use.
type Writer struct {
	w    io.Writer
	reg  *compress.Registry
	refs ReferenceSource

	method             format.CompressionMethod
	recordsPerSlice    int
	slicesPerContainer int
	hdrOpts            record.HeaderOptions

	refNames []string
	pending  []*record.Record
	counter  int64

	wroteDefinition bool
	closed          bool
}

// NewWriter returns a writer targeting w. WriteHeader must be called
// before the first record.
func NewWriter(w io.Writer, opts *WriterOptions) *Writer {
	if opts == nil {
		opts = &WriterOptions{}
	}

	wr := &Writer{
		w:                  w,
		reg:                opts.Registry,
		refs:               opts.References,
		method:             opts.Method,
		recordsPerSlice:    opts.RecordsPerSlice,
		slicesPerContainer: opts.SlicesPerContainer,
		hdrOpts: record.HeaderOptions{
			APDelta:       opts.PositionDeltas,
			DropReadNames: opts.DropReadNames,
		},
	}
	if wr.reg == nil {
		wr.reg = compress.NewRegistry()
	}
	if wr.method == format.MethodRaw {
		wr.method = format.MethodGzip
	}
	if wr.recordsPerSlice <= 0 {
		wr.recordsPerSlice = defaultRecordsPerSlice
	}
	if wr.slicesPerContainer <= 0 {
		wr.slicesPerContainer = defaultSlicesPerContainer
	}

	return wr
}

// WriteHeader writes the file definition and the header container. The
// header text's @SQ lines define the reference ids of all records that
// follow.
func (w *Writer) WriteHeader(samHeader string) error {
	if w.wroteDefinition {
		return format.Schemaf("header already written")
	}

	def := make([]byte, 0, 4+2+format.FileIDLength)
	def = append(def, format.Magic[:]...)
	def = append(def, format.MajorVersion, format.MinorVersion)
	var fileID [format.FileIDLength]byte
	copy(fileID[:], fmt.Sprintf("%016x", hash.RefID(samHeader)))
	def = append(def, fileID[:]...)
	if _, err := w.w.Write(def); err != nil {
		return err
	}

	payload := make([]byte, 4, 4+len(samHeader))
	payload[0] = byte(len(samHeader))
	payload[1] = byte(len(samHeader) >> 8)
	payload[2] = byte(len(samHeader) >> 16)
	payload[3] = byte(len(samHeader) >> 24)
	payload = append(payload, samHeader...)

	body, err := container.NewBlock(format.ContentFileHeader, 0, payload).
		Append(nil, w.reg, w.method)
	if err != nil {
		return err
	}
	hdr := &container.Header{
		Length:     int32(len(body)),
		RefID:      -1,
		BlockCount: 1,
	}
	if _, err := w.w.Write(append(hdr.Append(nil), body...)); err != nil {
		return err
	}

	w.refNames = parseReferenceNames(samHeader)
	w.wroteDefinition = true

	return nil
}

// Write queues one record, flushing a container when full.
func (w *Writer) Write(rec *record.Record) error {
	if w.closed {
		return format.Schemaf("writer is closed")
	}
	if !w.wroteDefinition {
		return format.Schemaf("WriteHeader must precede records")
	}

	prepared, err := w.prepare(rec)
	if err != nil {
		return err
	}
	w.pending = append(w.pending, prepared)

	if len(w.pending) >= w.recordsPerSlice*w.slicesPerContainer {
		return w.Flush()
	}

	return nil
}

// Flush writes any buffered records as one container.
func (w *Writer) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	records := w.pending
	w.pending = nil

	return w.flushContainer(records)
}

// Close flushes buffered records and writes the end-of-file container.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if !w.wroteDefinition {
		return format.Schemaf("WriteHeader was never called")
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true

	return container.WriteEOF(w.w)
}

// prepare normalizes a record for storage: quality flags are made
// consistent, and a mapped record supplied as plain bases is decomposed
// into features against the reference. Records carrying an explicit
// feature list (empty counts) are stored as given.
func (w *Writer) prepare(rec *record.Record) (*record.Record, error) {
	cp := *rec
	if cp.QualityScores != nil {
		cp.Flags |= record.FlagQualityScoresStored
	}
	if !cp.Mapped() || cp.Features != nil || cp.Bases == nil {
		return &cp, nil
	}

	win, err := w.window(&cp)
	if err != nil {
		return nil, err
	}
	if win == nil {
		return nil, format.Schemaf("decomposing a mapped record requires its reference sequence")
	}

	sm := w.hdrOpts.SubstitutionMatrix
	if sm == (container.SubstitutionMatrix{}) {
		sm = container.DefaultSubstitutionMatrix()
	}
	cigar := []record.CigarOp{{Op: 'M', Len: cp.ReadLength}}
	features, err := record.DecomposeFeatures(cp.Bases, cp.QualityScores, cigar, win, cp.AlignmentStart, sm)
	if err != nil {
		return nil, err
	}
	if features == nil {
		features = []record.Feature{}
	}
	cp.Features = features

	return &cp, nil
}

func (w *Writer) window(rec *record.Record) (*record.RefWindow, error) {
	if rec.RefID < 0 || int(rec.RefID) >= len(w.refNames) {
		return nil, format.Schemaf("reference id %d out of range: header declares %d sequences",
			rec.RefID, len(w.refNames))
	}
	if w.refs == nil {
		return nil, nil
	}
	seq, ok := w.refs.Sequence(w.refNames[rec.RefID])
	if !ok {
		return nil, nil
	}

	return &record.RefWindow{Start: 1, Seq: seq}, nil
}

// pendingSlice is one slice ready for block emission.
type pendingSlice struct {
	header *container.SliceHeader
	core   *container.Block
	ext    []*container.Block
	bases  int64
}

func basesOf(slices []*pendingSlice) int64 {
	var n int64
	for _, ps := range slices {
		n += ps.bases
	}

	return n
}

func (w *Writer) flushContainer(records []*record.Record) error {
	hdr := record.BuildCompressionHeader(records, w.hdrOpts)

	var slices []*pendingSlice
	base := w.counter
	for len(records) > 0 {
		n := w.recordsPerSlice
		if n > len(records) {
			n = len(records)
		}
		ps, err := w.buildSlice(hdr, records[:n], base)
		if err != nil {
			return err
		}
		slices = append(slices, ps)
		records = records[n:]
		base += int64(n)
	}

	body, err := container.NewBlock(format.ContentCompressionHeader, 0, hdr.Append(nil)).
		Append(nil, w.reg, w.method)
	if err != nil {
		return err
	}

	blockCount := int32(1)
	landmarks := make([]int32, 0, len(slices))
	for _, ps := range slices {
		landmarks = append(landmarks, int32(len(body)))
		if body, err = container.NewBlock(format.ContentSliceHeader, 0, ps.header.Append(nil)).
			Append(body, w.reg, format.MethodRaw); err != nil {
			return err
		}
		if body, err = ps.core.Append(body, w.reg, format.MethodRaw); err != nil {
			return err
		}
		blockCount += 2
		for _, b := range ps.ext {
			if body, err = b.Append(body, w.reg, w.method); err != nil {
				return err
			}
			blockCount++
		}
	}

	ch := &container.Header{
		Length:        int32(len(body)),
		RefID:         containerRefID(slices),
		Records:       0,
		RecordCounter: w.counter,
		BlockCount:    blockCount,
		Landmarks:     landmarks,
	}
	for _, ps := range slices {
		ch.Records += ps.header.Records
	}
	ch.Start, ch.Span = containerSpan(slices)
	ch.Bases = basesOf(slices)

	bb := pool.GetContainerBuffer()
	defer pool.PutContainerBuffer(bb)
	bb.MustWrite(ch.Append(nil))
	bb.MustWrite(body)
	if _, err := bb.WriteTo(w.w); err != nil {
		return err
	}

	w.counter = base

	return nil
}

func containerRefID(slices []*pendingSlice) int32 {
	refID := slices[0].header.RefID
	for _, ps := range slices[1:] {
		if ps.header.RefID != refID {
			return record.MultiRefID
		}
	}

	return refID
}

func containerSpan(slices []*pendingSlice) (start, span int32) {
	first := true
	var end int32
	for _, ps := range slices {
		if ps.header.RefID < 0 || ps.header.Span == 0 {
			continue
		}
		if first || ps.header.Start < start {
			start = ps.header.Start
		}
		if e := ps.header.Start + ps.header.Span - 1; first || e > end {
			end = e
		}
		first = false
	}
	if first {
		return 0, 0
	}

	return start, end - start + 1
}

func (w *Writer) buildSlice(hdr *container.CompressionHeader, recs []*record.Record, counter int64) (*pendingSlice, error) {
	refID := recs[0].RefID
	for _, rec := range recs[1:] {
		if rec.RefID != refID {
			refID = record.MultiRefID
			break
		}
	}

	start, span := sliceSpan(recs)

	rw := record.NewWriter(hdr, refID, start)
	for _, rec := range recs {
		if err := rw.Write(rec); err != nil {
			return nil, err
		}
	}

	streams := rw.Streams()
	ids := make([]int32, 0, len(streams.External))
	for id := range streams.External {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sh := &container.SliceHeader{
		RefID:         refID,
		Start:         start,
		Span:          span,
		Records:       int32(len(recs)),
		RecordCounter: counter,
		BlockCount:    int32(len(ids)) + 1,
		ContentIDs:    ids,
		EmbeddedRefID: -1,
	}
	if refID >= 0 {
		sh.RefMD5 = w.referenceMD5(refID, start, span)
	}

	ps := &pendingSlice{
		header: sh,
		core:   container.NewBlock(format.ContentCore, 0, streams.Core.Bytes()),
	}
	for _, rec := range recs {
		ps.bases += int64(rec.ReadLength)
	}
	for _, id := range ids {
		ps.ext = append(ps.ext, container.NewBlock(format.ContentExternal, id, streams.External[id]))
	}

	return ps, nil
}

func sliceSpan(recs []*record.Record) (start, span int32) {
	first := true
	var end int32
	for _, rec := range recs {
		if !rec.Mapped() || rec.RefID < 0 {
			continue
		}
		if first || rec.AlignmentStart < start {
			start = rec.AlignmentStart
		}
		if e := rec.AlignmentEnd(); first || e > end {
			end = e
		}
		first = false
	}
	if first {
		return 0, 0
	}

	return start, end - start + 1
}

// referenceMD5 checksums the reference span the slice covers, zero when
// the sequence is unavailable.
func (w *Writer) referenceMD5(refID, start, span int32) [16]byte {
	var sum [16]byte
	if w.refs == nil || span <= 0 || int(refID) >= len(w.refNames) {
		return sum
	}
	seq, ok := w.refs.Sequence(w.refNames[refID])
	if !ok {
		return sum
	}

	lo, hi := int(start-1), int(start-1+span)
	if lo < 0 {
		lo = 0
	}
	if hi > len(seq) {
		hi = len(seq)
	}
	if lo >= hi {
		return sum
	}

	return md5.Sum(seq[lo:hi])
}
