package record

import (
	"github.com/cramio/cram/container"
	"github.com/cramio/cram/format"
)

// RefWindow is the reference subsequence a slice aligns against. Start is
// the 1-based genomic position of Seq[0]. A nil window substitutes 'N' for
// every reference base, which is only valid when the compression header
// does not require the reference.
type RefWindow struct {
	Start int32
	Seq   []byte
}

func (w *RefWindow) base(pos int32) (byte, error) {
	if w == nil {
		return 'N', nil
	}
	i := pos - w.Start
	if i < 0 || int(i) >= len(w.Seq) {
		return 0, format.Corruptionf("reference position %d outside window [%d, %d)",
			pos, w.Start, w.Start+int32(len(w.Seq)))
	}

	return w.Seq[i], nil
}

// ResolveBases reconstructs a mapped record's sequence from its features
// and the reference window. Positions the features leave untouched are
// filled from the reference.
func ResolveBases(rec *Record, ref *RefWindow, sm container.SubstitutionMatrix) ([]byte, error) {
	buf := make([]byte, rec.ReadLength)
	readPos := int32(0) // 0-based cursor into buf
	refPos := rec.AlignmentStart

	fill := func(until int32) error {
		for readPos < until {
			b, err := ref.base(refPos)
			if err != nil {
				return err
			}
			buf[readPos] = b
			readPos++
			refPos++
		}

		return nil
	}

	for i, f := range rec.Features {
		// Non-consuming features (hard clips, padding) may sit one past
		// the last base.
		if f.Position < 1 || f.Position > rec.ReadLength+1 {
			return nil, format.Corruptionf("feature %d at read position %d outside read of length %d",
				i, f.Position, rec.ReadLength)
		}
		if f.Position-1 < readPos {
			return nil, format.Corruptionf("feature %d at read position %d behind cursor %d",
				i, f.Position, readPos+1)
		}
		if err := fill(f.Position - 1); err != nil {
			return nil, err
		}

		consume1 := func() error {
			if readPos >= rec.ReadLength {
				return format.Corruptionf("feature %d writes past read of length %d", i, rec.ReadLength)
			}
			return nil
		}

		switch f.Code {
		case format.FeatureReadBase:
			if err := consume1(); err != nil {
				return nil, err
			}
			buf[readPos] = f.Base
			readPos++
			refPos++
		case format.FeatureSubstitution:
			if err := consume1(); err != nil {
				return nil, err
			}
			rb, err := ref.base(refPos)
			if err != nil {
				return nil, err
			}
			buf[readPos] = sm.Substitute(rb, f.SubstCode)
			readPos++
			refPos++
		case format.FeatureInsertion, format.FeatureSoftClip, format.FeatureBases:
			if readPos+int32(len(f.Bases)) > rec.ReadLength {
				return nil, format.Corruptionf("feature %d of %d bases overruns read of length %d",
					i, len(f.Bases), rec.ReadLength)
			}
			copy(buf[readPos:], f.Bases)
			readPos += int32(len(f.Bases))
			if f.Code == format.FeatureBases {
				refPos += int32(len(f.Bases))
			}
		case format.FeatureInsertBase:
			if err := consume1(); err != nil {
				return nil, err
			}
			buf[readPos] = f.Base
			readPos++
		case format.FeatureDeletion, format.FeatureReferenceSkip:
			if f.Length < 0 {
				return nil, format.Corruptionf("feature %d has negative length %d", i, f.Length)
			}
			refPos += f.Length
		case format.FeatureQuality, format.FeatureScores, format.FeaturePadding, format.FeatureHardClip:
			// No effect on bases.
		default:
			return nil, format.Corruptionf("unknown feature code 0x%02x", byte(f.Code))
		}
	}

	if err := fill(rec.ReadLength); err != nil {
		return nil, err
	}

	return buf, nil
}

// ResolveCigar derives a record's CIGAR from its features. Gaps between
// features are reference matches; adjacent operations of the same kind are
// merged.
func ResolveCigar(rec *Record) []CigarOp {
	var ops []CigarOp
	push := func(op byte, n int32) {
		if n <= 0 {
			return
		}
		if len(ops) > 0 && ops[len(ops)-1].Op == op {
			ops[len(ops)-1].Len += n
			return
		}
		ops = append(ops, CigarOp{Op: op, Len: n})
	}

	readPos := int32(0)
	for _, f := range rec.Features {
		push('M', f.Position-1-readPos)
		if f.Position-1 > readPos {
			readPos = f.Position - 1
		}

		switch f.Code {
		case format.FeatureReadBase, format.FeatureSubstitution:
			push('M', 1)
			readPos++
		case format.FeatureBases:
			push('M', int32(len(f.Bases)))
			readPos += int32(len(f.Bases))
		case format.FeatureInsertion:
			push('I', int32(len(f.Bases)))
			readPos += int32(len(f.Bases))
		case format.FeatureInsertBase:
			push('I', 1)
			readPos++
		case format.FeatureSoftClip:
			push('S', int32(len(f.Bases)))
			readPos += int32(len(f.Bases))
		case format.FeatureDeletion:
			push('D', f.Length)
		case format.FeatureReferenceSkip:
			push('N', f.Length)
		case format.FeaturePadding:
			push('P', f.Length)
		case format.FeatureHardClip:
			push('H', f.Length)
		}
	}
	push('M', rec.ReadLength-readPos)

	return ops
}

// missingQuality fills positions no feature assigns a score to.
const missingQuality = 0xFF

// ResolveQualities returns a mapped record's quality scores: the stored
// run when present, otherwise the scores carried by individual features
// over a missing-quality background.
func ResolveQualities(rec *Record) []byte {
	if rec.Flags.QualityScoresStored() {
		return rec.QualityScores
	}

	buf := make([]byte, rec.ReadLength)
	for i := range buf {
		buf[i] = missingQuality
	}
	for _, f := range rec.Features {
		if f.Position < 1 || f.Position > rec.ReadLength {
			continue
		}
		switch f.Code {
		case format.FeatureReadBase, format.FeatureQuality:
			buf[f.Position-1] = f.Quality
		case format.FeatureScores:
			copy(buf[f.Position-1:], f.Scores)
		}
	}

	return buf
}

// DecomposeFeatures converts an aligned sequence into the feature list
// that reproduces it: CIGAR operations become positional events, and
// mismatches within match operations become substitution codes, or
// read-base events when the pair has no code.
func DecomposeFeatures(bases, quals []byte, cigar []CigarOp, ref *RefWindow, start int32, sm container.SubstitutionMatrix) ([]Feature, error) {
	var features []Feature
	readPos := int32(0) // 0-based
	refPos := start

	for _, op := range cigar {
		switch op.Op {
		case 'M', '=', 'X':
			for k := int32(0); k < op.Len; k++ {
				if int(readPos) >= len(bases) {
					return nil, format.Schemaf("alignment consumes %d read bases, sequence has %d",
						readPos+1, len(bases))
				}
				rb, err := ref.base(refPos)
				if err != nil {
					return nil, err
				}
				if bases[readPos] != rb {
					if code, ok := sm.Code(rb, bases[readPos]); ok {
						features = append(features, Feature{
							Code:      format.FeatureSubstitution,
							Position:  readPos + 1,
							SubstCode: code,
						})
					} else {
						f := Feature{Code: format.FeatureReadBase, Position: readPos + 1, Base: bases[readPos]}
						if int(readPos) < len(quals) {
							f.Quality = quals[readPos]
						}
						features = append(features, f)
					}
				}
				readPos++
				refPos++
			}
		case 'I', 'S':
			if int(readPos+op.Len) > len(bases) {
				return nil, format.Schemaf("alignment consumes %d read bases, sequence has %d",
					readPos+op.Len, len(bases))
			}
			code := format.FeatureInsertion
			if op.Op == 'S' {
				code = format.FeatureSoftClip
			}
			f := Feature{Code: code, Position: readPos + 1}
			f.Bases = append(f.Bases, bases[readPos:readPos+op.Len]...)
			features = append(features, f)
			readPos += op.Len
		case 'D':
			features = append(features, Feature{Code: format.FeatureDeletion, Position: readPos + 1, Length: op.Len})
			refPos += op.Len
		case 'N':
			features = append(features, Feature{Code: format.FeatureReferenceSkip, Position: readPos + 1, Length: op.Len})
			refPos += op.Len
		case 'P':
			features = append(features, Feature{Code: format.FeaturePadding, Position: readPos + 1, Length: op.Len})
		case 'H':
			features = append(features, Feature{Code: format.FeatureHardClip, Position: readPos + 1, Length: op.Len})
		default:
			return nil, format.Schemaf("unknown alignment operation %q", op.Op)
		}
	}
	if int(readPos) != len(bases) {
		return nil, format.Schemaf("alignment consumes %d read bases, sequence has %d", readPos, len(bases))
	}

	return features, nil
}
