// Package record implements the per-read layer: decoding records from a
// slice's streams, encoding them back, and reconstructing bases, CIGAR and
// quality scores against a reference window.
package record

import (
	"github.com/cramio/cram/container"
	"github.com/cramio/cram/format"
)

// BAM bit flags, stored verbatim in the BF data series.
const (
	BamFlagPaired       = 0x1
	BamFlagProperPair   = 0x2
	BamFlagUnmapped     = 0x4
	BamFlagMateUnmapped = 0x8
	BamFlagReverse      = 0x10
	BamFlagMateReverse  = 0x20
	BamFlagFirst        = 0x40
	BamFlagLast         = 0x80
	BamFlagSecondary    = 0x100
	BamFlagQCFail       = 0x200
	BamFlagDuplicate    = 0x400
	BamFlagSupplement   = 0x800
)

// Flags are the format's own per-record bits, carried in the CF series.
type Flags int32

const (
	// FlagQualityScoresStored marks records whose quality scores are
	// stored wholesale in the QS series rather than in features.
	FlagQualityScoresStored Flags = 0x1
	// FlagDetached marks records whose mate lies outside this slice; the
	// mate fields are stored explicitly.
	FlagDetached Flags = 0x2
	// FlagHasMateDownstream marks records whose mate follows within the
	// same slice, at the distance stored in the NF series.
	FlagHasMateDownstream Flags = 0x4
	// FlagDecodeSequenceAsUnknown marks records stored without bases.
	FlagDecodeSequenceAsUnknown Flags = 0x8
)

func (f Flags) QualityScoresStored() bool { return f&FlagQualityScoresStored != 0 }
func (f Flags) Detached() bool            { return f&FlagDetached != 0 }
func (f Flags) HasMateDownstream() bool   { return f&FlagHasMateDownstream != 0 }
func (f Flags) SequenceUnknown() bool     { return f&FlagDecodeSequenceAsUnknown != 0 }

// MateFlags describe a detached mate, carried in the MF series.
type MateFlags int32

const (
	MateFlagReverse  MateFlags = 0x1
	MateFlagUnmapped MateFlags = 0x2
)

// Tag is one auxiliary field. Value holds the raw typed bytes as they
// appear in the tag's stream; Key.Type names their layout.
type Tag struct {
	Key   container.TagKey
	Value []byte
}

// Record is one sequencing read as stored: alignment coordinates, flags,
// mate information, tags, and either a feature list (mapped) or verbatim
// bases (unmapped).
type Record struct {
	BamFlags       int32
	Flags          Flags
	RefID          int32
	ReadLength     int32
	AlignmentStart int32
	ReadGroup      int32
	ReadName       []byte

	MateFlags          MateFlags
	MateRefID          int32
	MateAlignmentStart int32
	TemplateLength     int32

	// MateDistance is the number of records between this one and its
	// downstream mate, valid when FlagHasMateDownstream is set.
	MateDistance int32

	Tags []Tag

	// Features hold the alignment differences of a mapped record.
	Features       []Feature
	MappingQuality int32

	// Bases holds the verbatim sequence of an unmapped record, or the
	// resolved sequence of a mapped one.
	Bases         []byte
	QualityScores []byte
}

// Mapped reports whether the record aligns to the reference.
func (r *Record) Mapped() bool { return r.BamFlags&BamFlagUnmapped == 0 }

// AlignmentSpan returns the number of reference bases the record covers.
func (r *Record) AlignmentSpan() int32 {
	span := r.ReadLength
	for _, f := range r.Features {
		switch f.Code {
		case format.FeatureDeletion, format.FeatureReferenceSkip:
			span += f.Length
		case format.FeatureInsertion, format.FeatureSoftClip:
			span -= int32(len(f.Bases))
		case format.FeatureInsertBase:
			span--
		}
	}

	return span
}

// AlignmentEnd returns the 1-based inclusive end position.
func (r *Record) AlignmentEnd() int32 {
	return r.AlignmentStart + r.AlignmentSpan() - 1
}
