package record

import (
	"github.com/cramio/cram/container"
	"github.com/cramio/cram/encoding"
	"github.com/cramio/cram/format"
)

// Writer encodes records into the stream set of one slice, mirroring the
// reader's decode order exactly.
type Writer struct {
	hdr     *container.CompressionHeader
	streams *encoding.EncodeStreams

	sliceRefID int32
	prevStart  int32
	tagLines   map[string]int32
	index      int
}

// NewWriter returns a writer binding hdr's encodings to a fresh stream
// set. sliceRefID and sliceStart must match the slice header the streams
// will be stored under.
func NewWriter(hdr *container.CompressionHeader, sliceRefID, sliceStart int32) *Writer {
	tagLines := make(map[string]int32, len(hdr.TagDictionary))
	for i, line := range hdr.TagDictionary {
		tagLines[tagLineSignature(line)] = int32(i)
	}

	return &Writer{
		hdr:        hdr,
		streams:    encoding.NewEncodeStreams(),
		sliceRefID: sliceRefID,
		prevStart:  sliceStart,
		tagLines:   tagLines,
	}
}

// Streams exposes the accumulated streams for block emission.
func (w *Writer) Streams() *encoding.EncodeStreams { return w.streams }

func tagLineSignature(line []container.TagKey) string {
	sig := make([]byte, 0, len(line)*3)
	for _, k := range line {
		sig = append(sig, k.Tag[0], k.Tag[1], k.Type)
	}

	return string(sig)
}

func recordTagSignature(tags []Tag) string {
	sig := make([]byte, 0, len(tags)*3)
	for _, t := range tags {
		sig = append(sig, t.Key.Tag[0], t.Key.Tag[1], t.Key.Type)
	}

	return string(sig)
}

func (w *Writer) writeInt(s format.DataSeries, v int32) error {
	e, err := w.hdr.SeriesEncoding(s)
	if err != nil {
		return err
	}

	return e.EncodeInt(w.streams, v)
}

func (w *Writer) writeByte(s format.DataSeries, b byte) error {
	e, err := w.hdr.SeriesEncoding(s)
	if err != nil {
		return err
	}

	return e.EncodeByte(w.streams, b)
}

func (w *Writer) writeBytes(s format.DataSeries, p []byte) error {
	e, err := w.hdr.SeriesEncoding(s)
	if err != nil {
		return err
	}

	return e.EncodeBytes(w.streams, p)
}

func (w *Writer) writeByteRun(s format.DataSeries, p []byte) error {
	e, err := w.hdr.SeriesEncoding(s)
	if err != nil {
		return err
	}

	return e.EncodeByteRun(w.streams, p)
}

// Write encodes one record. Errors carry the record's ordinal within the
// slice.
func (w *Writer) Write(rec *Record) error {
	if err := w.write(rec); err != nil {
		return format.WithRecord(err, w.index)
	}
	w.index++

	return nil
}

func (w *Writer) write(rec *Record) error {
	if err := w.writeInt(format.SeriesBamFlags, rec.BamFlags); err != nil {
		return err
	}
	if err := w.writeInt(format.SeriesCramFlags, int32(rec.Flags)); err != nil {
		return err
	}

	if w.sliceRefID == MultiRefID {
		if err := w.writeInt(format.SeriesRefID, rec.RefID); err != nil {
			return err
		}
	} else if rec.RefID != w.sliceRefID {
		return format.Schemaf("record reference id %d differs from slice reference id %d",
			rec.RefID, w.sliceRefID)
	}

	if err := w.writeInt(format.SeriesReadLength, rec.ReadLength); err != nil {
		return err
	}
	if err := w.writeAlignmentStart(rec); err != nil {
		return err
	}
	if err := w.writeInt(format.SeriesReadGroup, rec.ReadGroup); err != nil {
		return err
	}

	if w.hdr.ReadNamesIncluded {
		if err := w.writeBytes(format.SeriesReadName, rec.ReadName); err != nil {
			return err
		}
	}
	if err := w.writeMate(rec); err != nil {
		return err
	}
	if err := w.writeTags(rec); err != nil {
		return err
	}

	if rec.Mapped() {
		return w.writeMappedRead(rec)
	}

	return w.writeUnmappedRead(rec)
}

func (w *Writer) writeAlignmentStart(rec *Record) error {
	v := rec.AlignmentStart
	if w.hdr.APDelta {
		v -= w.prevStart
		w.prevStart = rec.AlignmentStart
	}

	return w.writeInt(format.SeriesAlignmentStart, v)
}

func (w *Writer) writeMate(rec *Record) error {
	switch {
	case rec.Flags.Detached():
		if err := w.writeInt(format.SeriesMateFlags, int32(rec.MateFlags)); err != nil {
			return err
		}
		if !w.hdr.ReadNamesIncluded {
			if err := w.writeBytes(format.SeriesReadName, rec.ReadName); err != nil {
				return err
			}
		}
		if err := w.writeInt(format.SeriesMateRefID, rec.MateRefID); err != nil {
			return err
		}
		if err := w.writeInt(format.SeriesMateStart, rec.MateAlignmentStart); err != nil {
			return err
		}

		return w.writeInt(format.SeriesTemplateSize, rec.TemplateLength)
	case rec.Flags.HasMateDownstream():
		return w.writeInt(format.SeriesMateDistance, rec.MateDistance)
	}

	return nil
}

func (w *Writer) writeTags(rec *Record) error {
	line, ok := w.tagLines[recordTagSignature(rec.Tags)]
	if !ok {
		return format.Schemaf("record's tag set is not in the tag dictionary")
	}
	if err := w.writeInt(format.SeriesTagLine, line); err != nil {
		return err
	}

	for _, t := range rec.Tags {
		e, err := w.hdr.TagEncoding(t.Key)
		if err != nil {
			return err
		}
		if err := e.EncodeBytes(w.streams, t.Value); err != nil {
			return err
		}
	}

	return nil
}

func (w *Writer) writeMappedRead(rec *Record) error {
	if err := w.writeInt(format.SeriesFeatureCount, int32(len(rec.Features))); err != nil {
		return err
	}

	prevPos := int32(0)
	for _, f := range rec.Features {
		if err := w.writeFeature(f, prevPos); err != nil {
			return err
		}
		prevPos = f.Position
	}

	if err := w.writeInt(format.SeriesMappingQuality, rec.MappingQuality); err != nil {
		return err
	}
	if rec.Flags.QualityScoresStored() {
		if int32(len(rec.QualityScores)) != rec.ReadLength {
			return format.Schemaf("record stores %d quality scores for read length %d",
				len(rec.QualityScores), rec.ReadLength)
		}

		return w.writeByteRun(format.SeriesQualityScores, rec.QualityScores)
	}

	return nil
}

func (w *Writer) writeUnmappedRead(rec *Record) error {
	if !rec.Flags.SequenceUnknown() {
		if int32(len(rec.Bases)) != rec.ReadLength {
			return format.Schemaf("record stores %d bases for read length %d", len(rec.Bases), rec.ReadLength)
		}
		if err := w.writeByteRun(format.SeriesBases, rec.Bases); err != nil {
			return err
		}
	}
	if rec.Flags.QualityScoresStored() {
		if int32(len(rec.QualityScores)) != rec.ReadLength {
			return format.Schemaf("record stores %d quality scores for read length %d",
				len(rec.QualityScores), rec.ReadLength)
		}

		return w.writeByteRun(format.SeriesQualityScores, rec.QualityScores)
	}

	return nil
}

func (w *Writer) writeFeature(f Feature, prevPos int32) error {
	if err := w.writeByte(format.SeriesFeatureCode, byte(f.Code)); err != nil {
		return err
	}
	if err := w.writeInt(format.SeriesFeaturePosition, f.Position-prevPos); err != nil {
		return err
	}

	switch f.Code {
	case format.FeatureReadBase:
		if err := w.writeByte(format.SeriesBases, f.Base); err != nil {
			return err
		}

		return w.writeByte(format.SeriesQualityScores, f.Quality)
	case format.FeatureSubstitution:
		return w.writeByte(format.SeriesBaseSubstCode, f.SubstCode)
	case format.FeatureInsertion:
		return w.writeBytes(format.SeriesInsertion, f.Bases)
	case format.FeatureDeletion:
		return w.writeInt(format.SeriesDeletionLength, f.Length)
	case format.FeatureInsertBase:
		return w.writeByte(format.SeriesBases, f.Base)
	case format.FeatureQuality:
		return w.writeByte(format.SeriesQualityScores, f.Quality)
	case format.FeatureReferenceSkip:
		return w.writeInt(format.SeriesReferenceSkip, f.Length)
	case format.FeatureSoftClip:
		return w.writeBytes(format.SeriesSoftClip, f.Bases)
	case format.FeaturePadding:
		return w.writeInt(format.SeriesPadding, f.Length)
	case format.FeatureHardClip:
		return w.writeInt(format.SeriesHardClip, f.Length)
	case format.FeatureBases:
		return w.writeBytes(format.SeriesStretchBases, f.Bases)
	case format.FeatureScores:
		return w.writeBytes(format.SeriesStretchQuals, f.Scores)
	default:
		return format.Schemaf("unknown feature code 0x%02x", byte(f.Code))
	}
}
