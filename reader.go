package cram

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/cramio/cram/compress"
	"github.com/cramio/cram/container"
	"github.com/cramio/cram/format"
	"github.com/cramio/cram/record"
)

// ReaderOptions configure a Reader. The zero value is usable.
type ReaderOptions struct {
	// Registry supplies block decompression. Defaults to the standard
	// methods; extension methods must be registered explicitly.
	Registry *compress.Registry

	// References resolves mapped records against reference sequences.
	// Without one, only files whose compression headers do not require
	// the reference (or whose slices embed it) decode fully.
	References ReferenceSource
}

// Reader decodes records from a file, container by container. It is not
// safe for concurrent use.
type Reader struct {
	r    *bufio.Reader
	reg  *compress.Registry
	refs ReferenceSource

	def      FileDefinition
	header   string
	refNames []string

	queue        []*record.Record
	containerIdx int
	done         bool
}

// NewReader reads the file definition and the header container from r.
func NewReader(r io.Reader, opts *ReaderOptions) (*Reader, error) {
	if opts == nil {
		opts = &ReaderOptions{}
	}
	rd := &Reader{
		r:    bufio.NewReader(r),
		reg:  opts.Registry,
		refs: opts.References,
	}
	if rd.reg == nil {
		rd.reg = compress.NewRegistry()
	}

	if err := rd.readDefinition(); err != nil {
		return nil, err
	}
	if err := rd.readFileHeader(); err != nil {
		return nil, err
	}

	return rd, nil
}

func (r *Reader) readDefinition() error {
	var def [4 + 2 + format.FileIDLength]byte
	if _, err := io.ReadFull(r.r, def[:]); err != nil {
		return format.Corruptionf("truncated file definition").Wrap(err)
	}
	if !bytes.Equal(def[:4], format.Magic[:]) {
		return format.Schemaf("bad magic %q", def[:4])
	}

	r.def = FileDefinition{Major: def[4], Minor: def[5]}
	copy(r.def.FileID[:], def[6:])
	if !r.def.supported() {
		return format.Unsupportedf("format version %d.%d", r.def.Major, r.def.Minor)
	}

	return nil
}

func (r *Reader) readFileHeader() error {
	c, err := container.ReadContainer(r.r)
	if err != nil {
		if err == io.EOF {
			return format.Corruptionf("file ends before the header container")
		}

		return format.WithContainer(err, 0)
	}
	r.containerIdx = 1

	if len(c.Blocks) == 0 || c.Blocks[0].ContentType != format.ContentFileHeader {
		return format.Corruptionf("first container does not hold the header text")
	}
	data, err := c.Blocks[0].Data(r.reg)
	if err != nil {
		return format.WithContainer(err, 0)
	}
	if len(data) < 4 {
		return format.Corruptionf("header text block of %d bytes is too short", len(data))
	}
	n := int32(binary.LittleEndian.Uint32(data))
	if n < 0 || int(n) > len(data)-4 {
		return format.Corruptionf("header text length %d exceeds block of %d bytes", n, len(data))
	}

	r.header = string(data[4 : 4+n])
	r.refNames = parseReferenceNames(r.header)

	return nil
}

// Definition returns the parsed file definition.
func (r *Reader) Definition() FileDefinition { return r.def }

// Header returns the file's header text.
func (r *Reader) Header() string { return r.header }

// ReferenceNames returns the sequence names declared by the header, in
// reference id order.
func (r *Reader) ReferenceNames() []string {
	return append([]string(nil), r.refNames...)
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (*record.Record, error) {
	return r.NextContext(context.Background())
}

// NextContext is Next honoring ctx at container and block boundaries.
func (r *Reader) NextContext(ctx context.Context) (*record.Record, error) {
	for len(r.queue) == 0 {
		if r.done {
			return nil, io.EOF
		}
		if err := r.advance(ctx); err != nil {
			return nil, err
		}
	}

	rec := r.queue[0]
	r.queue = r.queue[1:]

	return rec, nil
}

// ReadAll drains the remaining records.
func (r *Reader) ReadAll() ([]*record.Record, error) {
	var records []*record.Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// advance reads one container and queues its records. The end-of-file
// container stops iteration; anything after it is never read.
func (r *Reader) advance(ctx context.Context) error {
	idx := r.containerIdx
	c, err := container.ReadContainerContext(ctx, r.r)
	if err != nil {
		if err == io.EOF {
			return format.Corruptionf("file ends without the end-of-file container")
		}

		return format.WithContainer(err, idx)
	}
	r.containerIdx++

	if c.IsEOF() {
		r.done = true

		return nil
	}
	if c.Header.Records == 0 {
		// A container with no records still frames correctly; skip it.
		return nil
	}

	hdr, err := c.CompressionHeader(r.reg)
	if err != nil {
		return format.WithContainer(err, idx)
	}

	for i := 0; i < c.SliceCount(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := c.Slice(i, r.reg)
		if err != nil {
			return format.WithContainer(err, idx)
		}
		streams, err := s.DecodeStreams(r.reg)
		if err != nil {
			return format.WithContainer(format.WithSlice(err, i), idx)
		}
		records, err := record.NewReader(hdr, s.Header, streams).ReadAll()
		if err != nil {
			return format.WithContainer(format.WithSlice(err, i), idx)
		}
		if err := r.resolveSlice(hdr, s, records); err != nil {
			return format.WithContainer(format.WithSlice(err, i), idx)
		}
		r.queue = append(r.queue, records...)
	}

	return nil
}

// resolveSlice reconstructs bases and quality scores for the slice's
// mapped records. A reconstruction failure poisons the whole slice.
func (r *Reader) resolveSlice(hdr *container.CompressionHeader, s *container.Slice, records []*record.Record) error {
	var embedded *record.RefWindow
	if s.Header.EmbeddedRefID >= 0 {
		seq, err := s.EmbeddedReference(r.reg)
		if err != nil {
			return err
		}
		embedded = &record.RefWindow{Start: s.Header.Start, Seq: seq}
	}

	for i, rec := range records {
		if !rec.Mapped() {
			continue
		}

		win := embedded
		if win == nil {
			var err error
			if win, err = r.window(hdr, rec); err != nil {
				return format.WithRecord(err, i)
			}
		}

		bases, err := record.ResolveBases(rec, win, hdr.SubstitutionMatrix)
		if err != nil {
			return format.WithRecord(err, i)
		}
		rec.Bases = bases
		rec.QualityScores = record.ResolveQualities(rec)
	}

	return nil
}

// window looks the record's reference sequence up in the configured
// source. A nil window (N-filled) is only allowed when the compression
// header does not require the reference.
func (r *Reader) window(hdr *container.CompressionHeader, rec *record.Record) (*record.RefWindow, error) {
	if rec.RefID < 0 || int(rec.RefID) >= len(r.refNames) {
		return nil, format.Corruptionf("reference id %d out of range: header declares %d sequences",
			rec.RefID, len(r.refNames))
	}

	name := r.refNames[rec.RefID]
	if r.refs == nil {
		if hdr.ReferenceRequired {
			return nil, format.Schemaf("decoding requires reference %q but no source is configured", name)
		}

		return nil, nil
	}

	seq, ok := r.refs.Sequence(name)
	if !ok {
		if hdr.ReferenceRequired {
			return nil, format.Schemaf("reference %q not found in source", name)
		}

		return nil, nil
	}

	return &record.RefWindow{Start: 1, Seq: seq}, nil
}
