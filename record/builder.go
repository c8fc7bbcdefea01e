package record

import (
	"github.com/cramio/cram/container"
	"github.com/cramio/cram/encoding"
	"github.com/cramio/cram/format"
)

// Fixed content ids for the series streams a writer emits. Integer and
// single-byte series each get their own external block; the byte-array
// series interleave their length prefixes with their payloads in one
// block. Tag streams use the packed tag key as their content id, which
// keeps them clear of this range.
const (
	contentIDReadName = iota + 40
	contentIDBases
	contentIDQualityScores
	contentIDInsertion
	contentIDSoftClip
	contentIDStretchBases
	contentIDStretchQuals
)

// integerSeries are the series stored as plain external integer streams,
// in content id order starting at 1.
var integerSeries = []format.DataSeries{
	format.SeriesBamFlags,
	format.SeriesCramFlags,
	format.SeriesRefID,
	format.SeriesReadLength,
	format.SeriesAlignmentStart,
	format.SeriesReadGroup,
	format.SeriesMateFlags,
	format.SeriesMateRefID,
	format.SeriesMateStart,
	format.SeriesTemplateSize,
	format.SeriesMateDistance,
	format.SeriesTagLine,
	format.SeriesFeatureCount,
	format.SeriesFeatureCode,
	format.SeriesFeaturePosition,
	format.SeriesDeletionLength,
	format.SeriesBaseSubstCode,
	format.SeriesReferenceSkip,
	format.SeriesPadding,
	format.SeriesHardClip,
	format.SeriesMappingQuality,
}

// HeaderOptions steer BuildCompressionHeader.
type HeaderOptions struct {
	// APDelta stores alignment starts as deltas; suitable for
	// coordinate-sorted input.
	APDelta bool

	// DropReadNames omits read names from the stored records.
	DropReadNames bool

	// SubstitutionMatrix overrides the default code assignment when
	// non-zero.
	SubstitutionMatrix container.SubstitutionMatrix
}

// BuildCompressionHeader derives a compression header covering records:
// every data series bound to a stream, and a tag dictionary with one line
// per distinct tag set, in first-seen order.
func BuildCompressionHeader(records []*Record, opts HeaderOptions) *container.CompressionHeader {
	h := &container.CompressionHeader{
		ReadNamesIncluded:  !opts.DropReadNames,
		APDelta:            opts.APDelta,
		ReferenceRequired:  true,
		SubstitutionMatrix: opts.SubstitutionMatrix,
		DataSeries:         make(map[format.DataSeries]*encoding.Encoding),
		TagEncodings:       make(map[int32]*encoding.Encoding),
	}
	if h.SubstitutionMatrix == (container.SubstitutionMatrix{}) {
		h.SubstitutionMatrix = container.DefaultSubstitutionMatrix()
	}

	for i, s := range integerSeries {
		h.DataSeries[s] = &encoding.Encoding{ID: format.CodecExternal, ContentID: int32(i + 1)}
	}
	h.DataSeries[format.SeriesReadName] = &encoding.Encoding{
		ID:        format.CodecByteArrayStop,
		StopByte:  0x00,
		ContentID: contentIDReadName,
	}
	h.DataSeries[format.SeriesBases] = &encoding.Encoding{ID: format.CodecExternal, ContentID: contentIDBases}
	h.DataSeries[format.SeriesQualityScores] = &encoding.Encoding{ID: format.CodecExternal, ContentID: contentIDQualityScores}
	for s, id := range map[format.DataSeries]int32{
		format.SeriesInsertion:    contentIDInsertion,
		format.SeriesSoftClip:     contentIDSoftClip,
		format.SeriesStretchBases: contentIDStretchBases,
		format.SeriesStretchQuals: contentIDStretchQuals,
	} {
		h.DataSeries[s] = &encoding.Encoding{
			ID:  format.CodecByteArrayLen,
			Len: &encoding.Encoding{ID: format.CodecExternal, ContentID: id},
			Val: &encoding.Encoding{ID: format.CodecExternal, ContentID: id},
		}
	}

	seen := make(map[string]bool)
	for _, rec := range records {
		sig := recordTagSignature(rec.Tags)
		if !seen[sig] {
			seen[sig] = true
			line := make([]container.TagKey, len(rec.Tags))
			for i, t := range rec.Tags {
				line[i] = t.Key
			}
			h.TagDictionary = append(h.TagDictionary, line)
		}

		for _, t := range rec.Tags {
			id := t.Key.ID()
			if _, ok := h.TagEncodings[id]; ok {
				continue
			}
			h.TagEncodings[id] = &encoding.Encoding{
				ID:  format.CodecByteArrayLen,
				Len: &encoding.Encoding{ID: format.CodecExternal, ContentID: id},
				Val: &encoding.Encoding{ID: format.CodecExternal, ContentID: id},
			}
		}
	}
	if len(h.TagDictionary) == 0 {
		h.TagDictionary = [][]container.TagKey{{}}
	}

	return h
}
