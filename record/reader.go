package record

import (
	"github.com/cramio/cram/container"
	"github.com/cramio/cram/encoding"
	"github.com/cramio/cram/format"
)

// MultiRefID is the slice reference id meaning records carry their own
// reference ids in the RI series.
const MultiRefID = -2

// Reader decodes the records of one slice in storage order. Records are
// interdependent (alignment start deltas, mate distances), so decoding is
// strictly sequential.
type Reader struct {
	hdr     *container.CompressionHeader
	slice   *container.SliceHeader
	streams *encoding.DecodeStreams

	prevStart int32
	index     int
}

// NewReader returns a reader over one slice's streams.
func NewReader(hdr *container.CompressionHeader, slice *container.SliceHeader, streams *encoding.DecodeStreams) *Reader {
	return &Reader{
		hdr:       hdr,
		slice:     slice,
		streams:   streams,
		prevStart: slice.Start,
	}
}

// Read decodes the next record. Errors carry the record's ordinal within
// the slice.
func (r *Reader) Read() (*Record, error) {
	rec, err := r.read()
	if err != nil {
		return nil, format.WithRecord(err, r.index)
	}
	r.index++

	return rec, nil
}

// ReadAll decodes every record the slice header announces.
func (r *Reader) ReadAll() ([]*Record, error) {
	records := make([]*Record, 0, r.slice.Records)
	for i := int32(0); i < r.slice.Records; i++ {
		rec, err := r.Read()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func (r *Reader) readInt(s format.DataSeries) (int32, error) {
	e, err := r.hdr.SeriesEncoding(s)
	if err != nil {
		return 0, err
	}

	return e.DecodeInt(r.streams)
}

func (r *Reader) readByte(s format.DataSeries) (byte, error) {
	e, err := r.hdr.SeriesEncoding(s)
	if err != nil {
		return 0, err
	}

	return e.DecodeByte(r.streams)
}

func (r *Reader) readBytes(s format.DataSeries) ([]byte, error) {
	e, err := r.hdr.SeriesEncoding(s)
	if err != nil {
		return nil, err
	}

	return e.DecodeBytes(r.streams)
}

func (r *Reader) readByteRun(s format.DataSeries, n int) ([]byte, error) {
	e, err := r.hdr.SeriesEncoding(s)
	if err != nil {
		return nil, err
	}

	return e.DecodeByteRun(r.streams, n)
}

func (r *Reader) read() (*Record, error) {
	rec := &Record{ReadGroup: -1, MateRefID: -1, MappingQuality: -1}

	var err error
	if rec.BamFlags, err = r.readInt(format.SeriesBamFlags); err != nil {
		return nil, err
	}
	cf, err := r.readInt(format.SeriesCramFlags)
	if err != nil {
		return nil, err
	}
	rec.Flags = Flags(cf)

	if r.slice.RefID == MultiRefID {
		if rec.RefID, err = r.readInt(format.SeriesRefID); err != nil {
			return nil, err
		}
	} else {
		rec.RefID = r.slice.RefID
	}

	if rec.ReadLength, err = r.readInt(format.SeriesReadLength); err != nil {
		return nil, err
	}
	if err := r.readAlignmentStart(rec); err != nil {
		return nil, err
	}
	if rec.ReadGroup, err = r.readInt(format.SeriesReadGroup); err != nil {
		return nil, err
	}

	if r.hdr.ReadNamesIncluded {
		if rec.ReadName, err = r.readBytes(format.SeriesReadName); err != nil {
			return nil, err
		}
	}
	if err := r.readMate(rec); err != nil {
		return nil, err
	}
	if err := r.readTags(rec); err != nil {
		return nil, err
	}

	if rec.Mapped() {
		err = r.readMappedRead(rec)
	} else {
		err = r.readUnmappedRead(rec)
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func (r *Reader) readAlignmentStart(rec *Record) error {
	v, err := r.readInt(format.SeriesAlignmentStart)
	if err != nil {
		return err
	}
	if r.hdr.APDelta {
		rec.AlignmentStart = r.prevStart + v
		r.prevStart = rec.AlignmentStart
	} else {
		rec.AlignmentStart = v
	}

	return nil
}

func (r *Reader) readMate(rec *Record) error {
	switch {
	case rec.Flags.Detached():
		mf, err := r.readInt(format.SeriesMateFlags)
		if err != nil {
			return err
		}
		rec.MateFlags = MateFlags(mf)

		if !r.hdr.ReadNamesIncluded {
			if rec.ReadName, err = r.readBytes(format.SeriesReadName); err != nil {
				return err
			}
		}
		if rec.MateRefID, err = r.readInt(format.SeriesMateRefID); err != nil {
			return err
		}
		if rec.MateAlignmentStart, err = r.readInt(format.SeriesMateStart); err != nil {
			return err
		}
		if rec.TemplateLength, err = r.readInt(format.SeriesTemplateSize); err != nil {
			return err
		}
	case rec.Flags.HasMateDownstream():
		var err error
		if rec.MateDistance, err = r.readInt(format.SeriesMateDistance); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reader) readTags(rec *Record) error {
	line, err := r.readInt(format.SeriesTagLine)
	if err != nil {
		return err
	}
	if line < 0 || int(line) >= len(r.hdr.TagDictionary) {
		if line == 0 && len(r.hdr.TagDictionary) == 0 {
			return nil
		}

		return format.Corruptionf("tag line %d out of range: dictionary has %d lines",
			line, len(r.hdr.TagDictionary))
	}

	keys := r.hdr.TagDictionary[line]
	if len(keys) == 0 {
		return nil
	}

	rec.Tags = make([]Tag, 0, len(keys))
	for _, key := range keys {
		e, err := r.hdr.TagEncoding(key)
		if err != nil {
			return err
		}
		value, err := e.DecodeBytes(r.streams)
		if err != nil {
			return err
		}
		rec.Tags = append(rec.Tags, Tag{Key: key, Value: value})
	}

	return nil
}

func (r *Reader) readMappedRead(rec *Record) error {
	n, err := r.readInt(format.SeriesFeatureCount)
	if err != nil {
		return err
	}
	if n < 0 {
		return format.Corruptionf("negative feature count %d", n)
	}

	if n > 0 {
		rec.Features = make([]Feature, 0, n)
	}
	prevPos := int32(0)
	for i := int32(0); i < n; i++ {
		f, err := r.readFeature(prevPos)
		if err != nil {
			return err
		}
		prevPos = f.Position
		rec.Features = append(rec.Features, f)
	}

	if rec.MappingQuality, err = r.readInt(format.SeriesMappingQuality); err != nil {
		return err
	}
	if rec.Flags.QualityScoresStored() {
		if rec.QualityScores, err = r.readByteRun(format.SeriesQualityScores, int(rec.ReadLength)); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reader) readUnmappedRead(rec *Record) error {
	var err error
	if !rec.Flags.SequenceUnknown() {
		if rec.Bases, err = r.readByteRun(format.SeriesBases, int(rec.ReadLength)); err != nil {
			return err
		}
	}
	if rec.Flags.QualityScoresStored() {
		if rec.QualityScores, err = r.readByteRun(format.SeriesQualityScores, int(rec.ReadLength)); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reader) readFeature(prevPos int32) (Feature, error) {
	code, err := r.readByte(format.SeriesFeatureCode)
	if err != nil {
		return Feature{}, err
	}
	delta, err := r.readInt(format.SeriesFeaturePosition)
	if err != nil {
		return Feature{}, err
	}

	f := Feature{Code: format.FeatureCode(code), Position: prevPos + delta}

	switch f.Code {
	case format.FeatureReadBase:
		if f.Base, err = r.readByte(format.SeriesBases); err != nil {
			return Feature{}, err
		}
		if f.Quality, err = r.readByte(format.SeriesQualityScores); err != nil {
			return Feature{}, err
		}
	case format.FeatureSubstitution:
		if f.SubstCode, err = r.readByte(format.SeriesBaseSubstCode); err != nil {
			return Feature{}, err
		}
	case format.FeatureInsertion:
		if f.Bases, err = r.readBytes(format.SeriesInsertion); err != nil {
			return Feature{}, err
		}
	case format.FeatureDeletion:
		if f.Length, err = r.readInt(format.SeriesDeletionLength); err != nil {
			return Feature{}, err
		}
	case format.FeatureInsertBase:
		if f.Base, err = r.readByte(format.SeriesBases); err != nil {
			return Feature{}, err
		}
	case format.FeatureQuality:
		if f.Quality, err = r.readByte(format.SeriesQualityScores); err != nil {
			return Feature{}, err
		}
	case format.FeatureReferenceSkip:
		if f.Length, err = r.readInt(format.SeriesReferenceSkip); err != nil {
			return Feature{}, err
		}
	case format.FeatureSoftClip:
		if f.Bases, err = r.readBytes(format.SeriesSoftClip); err != nil {
			return Feature{}, err
		}
	case format.FeaturePadding:
		if f.Length, err = r.readInt(format.SeriesPadding); err != nil {
			return Feature{}, err
		}
	case format.FeatureHardClip:
		if f.Length, err = r.readInt(format.SeriesHardClip); err != nil {
			return Feature{}, err
		}
	case format.FeatureBases:
		if f.Bases, err = r.readBytes(format.SeriesStretchBases); err != nil {
			return Feature{}, err
		}
	case format.FeatureScores:
		if f.Scores, err = r.readBytes(format.SeriesStretchQuals); err != nil {
			return Feature{}, err
		}
	default:
		return Feature{}, format.Corruptionf("unknown feature code 0x%02x", code)
	}

	return f, nil
}
