package cram

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cramio/cram/container"
	"github.com/cramio/cram/format"
	"github.com/cramio/cram/record"
)

const testSAMHeader = "@HD\tVN:1.6\tSO:coordinate\n" +
	"@SQ\tSN:chr1\tLN:16\n" +
	"@SQ\tSN:chr2\tLN:16\n"

var (
	chr1 = []byte("ACGTACGTACGTACGT")
	chr2 = []byte("TTTTGGGGCCCCAAAA")
)

func testReferences() *ReferenceStore {
	refs := NewReferenceStore()
	refs.Add("chr1", chr1)
	refs.Add("chr2", chr2)

	return refs
}

// detached fills the mate fields of an unpaired record.
func detached(rec *record.Record) *record.Record {
	rec.Flags |= record.FlagDetached
	rec.MateFlags = record.MateFlagUnmapped
	rec.MateRefID = -1

	return rec
}

func testRecords() []*record.Record {
	return []*record.Record{
		// chr1 positions 3..10 are GTACGTAC; index 2 carries an A->C
		// substitution.
		detached(&record.Record{
			RefID:          0,
			ReadLength:     8,
			AlignmentStart: 3,
			ReadName:       []byte("read.1"),
			MappingQuality: 40,
			Bases:          []byte("GTCCGTAC"),
			QualityScores:  []byte{30, 30, 12, 30, 30, 30, 30, 30},
		}),
		detached(&record.Record{
			RefID:          1,
			ReadLength:     4,
			AlignmentStart: 5,
			ReadName:       []byte("read.2"),
			MappingQuality: 60,
			Bases:          []byte("GGGG"),
			QualityScores:  []byte{40, 40, 40, 40},
		}),
		detached(&record.Record{
			BamFlags:      record.BamFlagUnmapped,
			RefID:         -1,
			ReadLength:    4,
			ReadName:      []byte("read.3"),
			Bases:         []byte("ACGT"),
			QualityScores: []byte{2, 2, 2, 2},
		}),
	}
}

func encodeTestFile(t *testing.T, opts *WriterOptions, records []*record.Record) []byte {
	t.Helper()

	if opts == nil {
		opts = &WriterOptions{References: testReferences()}
	}
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	require.NoError(t, w.WriteHeader(testSAMHeader))
	for _, rec := range records {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestWriterReader_RoundTrip(t *testing.T) {
	want := testRecords()
	data := encodeTestFile(t, nil, want)

	r, err := NewReader(bytes.NewReader(data), &ReaderOptions{References: testReferences()})
	require.NoError(t, err)
	require.Equal(t, uint8(3), r.Definition().Major)
	require.Equal(t, testSAMHeader, r.Header())
	require.Equal(t, []string{"chr1", "chr2"}, r.ReferenceNames())

	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i, rec := range got {
		require.Equal(t, want[i].BamFlags, rec.BamFlags, "record %d", i)
		require.Equal(t, want[i].RefID, rec.RefID, "record %d", i)
		require.Equal(t, want[i].AlignmentStart, rec.AlignmentStart, "record %d", i)
		require.Equal(t, want[i].ReadLength, rec.ReadLength, "record %d", i)
		require.Equal(t, want[i].ReadName, rec.ReadName, "record %d", i)
		require.Equal(t, want[i].MappingQuality, rec.MappingQuality, "record %d", i)
		require.Equal(t, want[i].Bases, rec.Bases, "record %d", i)
		require.Equal(t, want[i].QualityScores, rec.QualityScores, "record %d", i)
	}

	// The substitution decomposed against the reference must survive as a
	// feature, not as a stored base run.
	require.True(t, got[0].Mapped())
	require.NotEmpty(t, got[0].Features)
}

func TestWriterReader_MultiSliceContainers(t *testing.T) {
	var want []*record.Record
	for i := 0; i < 5; i++ {
		rec := detached(&record.Record{
			RefID:          0,
			ReadLength:     4,
			AlignmentStart: int32(1 + i*2),
			ReadName:       []byte{'q', byte('0' + i)},
			MappingQuality: 30,
			QualityScores:  []byte{20, 20, 20, 20},
		})
		rec.Bases = append([]byte(nil), chr1[rec.AlignmentStart-1:rec.AlignmentStart+3]...)
		want = append(want, rec)
	}

	data := encodeTestFile(t, &WriterOptions{
		References:         testReferences(),
		RecordsPerSlice:    2,
		SlicesPerContainer: 2,
	}, want)

	r, err := NewReader(bytes.NewReader(data), &ReaderOptions{References: testReferences()})
	require.NoError(t, err)
	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, rec := range got {
		require.Equal(t, want[i].ReadName, rec.ReadName)
		require.Equal(t, want[i].AlignmentStart, rec.AlignmentStart)
		require.Equal(t, want[i].Bases, rec.Bases)
	}
}

func TestWriterReader_PositionDeltas(t *testing.T) {
	want := testRecords()[:2]
	data := encodeTestFile(t, &WriterOptions{
		References:     testReferences(),
		PositionDeltas: true,
	}, want)

	r, err := NewReader(bytes.NewReader(data), &ReaderOptions{References: testReferences()})
	require.NoError(t, err)
	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int32(3), got[0].AlignmentStart)
	require.Equal(t, int32(5), got[1].AlignmentStart)
}

func TestWriterReader_DroppedReadNames(t *testing.T) {
	// Records without mate sections, so no name survives through the
	// detached mate fields either.
	want := []*record.Record{
		{
			RefID:          0,
			ReadLength:     4,
			AlignmentStart: 1,
			ReadName:       []byte("discarded"),
			MappingQuality: 30,
			Bases:          append([]byte(nil), chr1[:4]...),
			QualityScores:  []byte{20, 20, 20, 20},
		},
	}

	data := encodeTestFile(t, &WriterOptions{
		References:    testReferences(),
		DropReadNames: true,
	}, want)

	r, err := NewReader(bytes.NewReader(data), &ReaderOptions{References: testReferences()})
	require.NoError(t, err)
	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Empty(t, got[0].ReadName)
	require.Equal(t, want[0].Bases, got[0].Bases)
}

func TestReader_TrailingBytesAfterEOFIgnored(t *testing.T) {
	data := encodeTestFile(t, nil, testRecords())
	data = append(data, "junk after the terminator"...)

	r, err := NewReader(bytes.NewReader(data), &ReaderOptions{References: testReferences()})
	require.NoError(t, err)
	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestReader_SkipsEmptyContainer(t *testing.T) {
	data := encodeTestFile(t, nil, testRecords())

	// Splice an empty container between the last data container and the
	// terminator.
	empty := (&container.Header{RefID: -1}).Append(nil)
	spliced := append([]byte(nil), data[:len(data)-38]...)
	spliced = append(spliced, empty...)
	spliced = append(spliced, data[len(data)-38:]...)

	r, err := NewReader(bytes.NewReader(spliced), &ReaderOptions{References: testReferences()})
	require.NoError(t, err)
	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestReader_MissingEOFContainer(t *testing.T) {
	data := encodeTestFile(t, nil, testRecords())
	data = data[:len(data)-38]

	r, err := NewReader(bytes.NewReader(data), &ReaderOptions{References: testReferences()})
	require.NoError(t, err)
	_, err = r.ReadAll()

	var fe *format.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, format.KindCorruption, fe.Kind)
}

func TestReader_CorruptBlockChecksum(t *testing.T) {
	data := encodeTestFile(t, nil, testRecords())
	// The byte just before the end-of-file container is the last data
	// block's checksum.
	data[len(data)-39] ^= 0x01

	r, err := NewReader(bytes.NewReader(data), &ReaderOptions{References: testReferences()})
	require.NoError(t, err)
	_, err = r.ReadAll()

	var fe *format.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, format.KindCorruption, fe.Kind)
}

func TestNewReader_BadMagic(t *testing.T) {
	data := encodeTestFile(t, nil, nil)
	copy(data, "BAM\x01")

	_, err := NewReader(bytes.NewReader(data), nil)
	var fe *format.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, format.KindSchema, fe.Kind)
}

func TestNewReader_UnsupportedVersion(t *testing.T) {
	data := encodeTestFile(t, nil, nil)
	data[4] = 2

	_, err := NewReader(bytes.NewReader(data), nil)
	var fe *format.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, format.KindUnsupported, fe.Kind)
	require.Contains(t, err.Error(), "2.0")
}

func TestNewReader_EmptyStream(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil), nil)
	require.Error(t, err)
}

func TestReader_NextContextCanceled(t *testing.T) {
	data := encodeTestFile(t, nil, testRecords())

	r, err := NewReader(bytes.NewReader(data), &ReaderOptions{References: testReferences()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.NextContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReader_MissingReferenceSource(t *testing.T) {
	data := encodeTestFile(t, nil, testRecords())

	r, err := NewReader(bytes.NewReader(data), nil)
	require.NoError(t, err)
	_, err = r.ReadAll()

	var fe *format.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, format.KindSchema, fe.Kind)
}

func TestReader_EmptyFileHasOnlyHeader(t *testing.T) {
	data := encodeTestFile(t, nil, nil)

	r, err := NewReader(bytes.NewReader(data), nil)
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestWriter_Misuse(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)

	err := w.Write(testRecords()[2])
	var fe *format.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, format.KindSchema, fe.Kind)

	require.NoError(t, w.WriteHeader(testSAMHeader))
	err = w.WriteHeader(testSAMHeader)
	require.ErrorAs(t, err, &fe)

	require.NoError(t, w.Close())
	err = w.Write(testRecords()[2])
	require.ErrorAs(t, err, &fe)
}

func TestWriter_MappedRecordNeedsReference(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	require.NoError(t, w.WriteHeader(testSAMHeader))

	err := w.Write(testRecords()[0])
	var fe *format.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, format.KindSchema, fe.Kind)
}
