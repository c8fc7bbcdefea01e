package record

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cramio/cram/container"
	"github.com/cramio/cram/format"
)

func refWindow(start int32, seq string) *RefWindow {
	return &RefWindow{Start: start, Seq: []byte(seq)}
}

func TestResolveBases_MatchOnly(t *testing.T) {
	ref := refWindow(1, "AACCGGTTAACC")
	rec := &Record{ReadLength: 6, AlignmentStart: 3}

	bases, err := ResolveBases(rec, ref, container.DefaultSubstitutionMatrix())
	require.NoError(t, err)
	require.Equal(t, []byte("CCGGTT"), bases)

	require.Equal(t, "6M", CigarString(ResolveCigar(rec)))
	require.Equal(t, int32(6), rec.AlignmentSpan())
}

func TestResolveBases_Substitution(t *testing.T) {
	ref := refWindow(1, "AAAAAAAA")
	sm := container.DefaultSubstitutionMatrix()

	code, ok := sm.Code('A', 'G')
	require.True(t, ok)

	rec := &Record{
		ReadLength:     4,
		AlignmentStart: 2,
		Features: []Feature{
			{Code: format.FeatureSubstitution, Position: 3, SubstCode: code},
		},
	}

	bases, err := ResolveBases(rec, ref, sm)
	require.NoError(t, err)
	require.Equal(t, []byte("AAGA"), bases)
	require.Equal(t, "4M", CigarString(ResolveCigar(rec)))
}

func TestResolveBases_IndelsAndClips(t *testing.T) {
	//            pos: 123456789...
	ref := refWindow(1, "ACGTACGTACGT")
	rec := &Record{
		ReadLength:     10,
		AlignmentStart: 1,
		Features: []Feature{
			{Code: format.FeatureSoftClip, Position: 1, Bases: []byte("NN")},
			{Code: format.FeatureInsertion, Position: 5, Bases: []byte("GG")},
			{Code: format.FeatureDeletion, Position: 7, Length: 3},
		},
	}

	bases, err := ResolveBases(rec, ref, container.DefaultSubstitutionMatrix())
	require.NoError(t, err)
	// 2 soft-clipped, AC from ref, GG inserted, deletion skips GTA, then
	// CGTA resumes.
	require.Equal(t, []byte("NNACGGCGTA"), bases)
	require.Equal(t, "2S2M2I3D4M", CigarString(ResolveCigar(rec)))

	// Span: 10 read bases - 2 clipped - 2 inserted + 3 deleted.
	require.Equal(t, int32(9), rec.AlignmentSpan())
	require.Equal(t, int32(9), rec.AlignmentEnd())
}

func TestResolveBases_ReferenceSkipAndHardClip(t *testing.T) {
	ref := refWindow(1, "ACGTACGTACGTACGT")
	rec := &Record{
		ReadLength:     6,
		AlignmentStart: 1,
		Features: []Feature{
			{Code: format.FeatureReferenceSkip, Position: 4, Length: 4},
			{Code: format.FeatureHardClip, Position: 7, Length: 5},
		},
	}

	bases, err := ResolveBases(rec, ref, container.DefaultSubstitutionMatrix())
	require.NoError(t, err)
	// Three matched bases, a 4-base skip, then matches resume at
	// reference position 8.
	require.Equal(t, []byte("ACGTAC"), bases)
	require.Equal(t, "3M4N3M5H", CigarString(ResolveCigar(rec)))
}

func TestResolveBases_ReadBaseAndInsertBase(t *testing.T) {
	ref := refWindow(1, "TTTTTTTT")
	rec := &Record{
		ReadLength:     5,
		AlignmentStart: 1,
		Features: []Feature{
			{Code: format.FeatureReadBase, Position: 2, Base: 'W', Quality: 11},
			{Code: format.FeatureInsertBase, Position: 4, Base: 'C'},
		},
	}

	bases, err := ResolveBases(rec, ref, container.DefaultSubstitutionMatrix())
	require.NoError(t, err)
	require.Equal(t, []byte("TWTCT"), bases)
	require.Equal(t, "3M1I1M", CigarString(ResolveCigar(rec)))

	quals := ResolveQualities(rec)
	require.Equal(t, []byte{0xFF, 11, 0xFF, 0xFF, 0xFF}, quals)
}

func TestResolveBases_NilReference(t *testing.T) {
	rec := &Record{ReadLength: 4, AlignmentStart: 100}

	bases, err := ResolveBases(rec, nil, container.DefaultSubstitutionMatrix())
	require.NoError(t, err)
	require.Equal(t, []byte("NNNN"), bases)
}

func TestResolveBases_WindowOverrun(t *testing.T) {
	ref := refWindow(1, "ACGT")
	rec := &Record{ReadLength: 6, AlignmentStart: 3}

	_, err := ResolveBases(rec, ref, container.DefaultSubstitutionMatrix())
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))
	require.Contains(t, err.Error(), "outside window")
}

func TestResolveBases_MalformedFeatures(t *testing.T) {
	ref := refWindow(1, "ACGTACGT")

	// Position beyond the read.
	rec := &Record{ReadLength: 4, AlignmentStart: 1, Features: []Feature{
		{Code: format.FeatureSubstitution, Position: 9},
	}}
	_, err := ResolveBases(rec, ref, container.DefaultSubstitutionMatrix())
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))

	// Positions running backwards.
	rec = &Record{ReadLength: 4, AlignmentStart: 1, Features: []Feature{
		{Code: format.FeatureInsertion, Position: 2, Bases: []byte("AA")},
		{Code: format.FeatureInsertBase, Position: 2, Base: 'C'},
	}}
	_, err = ResolveBases(rec, ref, container.DefaultSubstitutionMatrix())
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))

	// Insertion overrunning the read.
	rec = &Record{ReadLength: 4, AlignmentStart: 1, Features: []Feature{
		{Code: format.FeatureInsertion, Position: 3, Bases: []byte("AAAAA")},
	}}
	_, err = ResolveBases(rec, ref, container.DefaultSubstitutionMatrix())
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindCorruption))
}

func TestResolveQualities_Stored(t *testing.T) {
	rec := &Record{
		Flags:         FlagQualityScoresStored,
		ReadLength:    3,
		QualityScores: []byte{40, 41, 42},
	}
	require.Equal(t, []byte{40, 41, 42}, ResolveQualities(rec))
}

func TestResolveQualities_ScoreRun(t *testing.T) {
	rec := &Record{ReadLength: 5, Features: []Feature{
		{Code: format.FeatureScores, Position: 2, Scores: []byte{7, 8, 9}},
	}}
	require.Equal(t, []byte{0xFF, 7, 8, 9, 0xFF}, ResolveQualities(rec))
}

func TestDecomposeFeatures_RoundTrip(t *testing.T) {
	ref := refWindow(1, "ACGTACGTACGTACGTACGT")
	sm := container.DefaultSubstitutionMatrix()

	cases := []struct {
		name  string
		start int32
		bases string
		quals []byte
		cigar []CigarOp
	}{
		{"perfect_match", 3, "GTACGT", nil, []CigarOp{{'M', 6}}},
		{"mismatch", 1, "ACTTAC", nil, []CigarOp{{'M', 6}}},
		{"insertion", 1, "ACGGGTAC", nil, []CigarOp{{'M', 3}, {'I', 2}, {'M', 3}}},
		{"deletion", 1, "ACGACG", nil, []CigarOp{{'M', 3}, {'D', 4}, {'M', 3}}},
		{"clips", 2, "NNCGTACGNN", nil, []CigarOp{{'S', 2}, {'M', 6}, {'S', 2}}},
		{"skip", 1, "ACGGTA", nil, []CigarOp{{'M', 3}, {'N', 5}, {'M', 3}}},
		{"hard_clip", 1, "ACG", nil, []CigarOp{{'H', 2}, {'M', 3}, {'H', 1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			features, err := DecomposeFeatures([]byte(tc.bases), tc.quals, tc.cigar, ref, tc.start, sm)
			require.NoError(t, err)

			rec := &Record{
				ReadLength:     int32(len(tc.bases)),
				AlignmentStart: tc.start,
				Features:       features,
			}

			bases, err := ResolveBases(rec, ref, sm)
			require.NoError(t, err)
			require.Equal(t, tc.bases, string(bases))
			require.Equal(t, tc.cigar, ResolveCigar(rec))
		})
	}
}

func TestDecomposeFeatures_NonSubstitutableBase(t *testing.T) {
	ref := refWindow(1, "ACGT")
	sm := container.DefaultSubstitutionMatrix()

	// 'W' has no matrix code against 'C', so it becomes a read-base
	// feature carrying its quality.
	features, err := DecomposeFeatures([]byte("AWGT"), []byte{30, 31, 32, 33}, []CigarOp{{'M', 4}}, ref, 1, sm)
	require.NoError(t, err)
	require.Len(t, features, 1)
	require.Equal(t, format.FeatureReadBase, features[0].Code)
	require.Equal(t, byte('W'), features[0].Base)
	require.Equal(t, byte(31), features[0].Quality)

	rec := &Record{ReadLength: 4, AlignmentStart: 1, Features: features}
	bases, err := ResolveBases(rec, ref, sm)
	require.NoError(t, err)
	require.Equal(t, "AWGT", string(bases))
}

func TestDecomposeFeatures_LengthMismatch(t *testing.T) {
	ref := refWindow(1, "ACGTACGT")
	sm := container.DefaultSubstitutionMatrix()

	_, err := DecomposeFeatures([]byte("ACG"), nil, []CigarOp{{'M', 5}}, ref, 1, sm)
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindSchema))

	_, err = DecomposeFeatures([]byte("ACGTA"), nil, []CigarOp{{'M', 3}}, ref, 1, sm)
	require.Error(t, err)
	require.True(t, format.IsKind(err, format.KindSchema))
}

func TestCigarString(t *testing.T) {
	require.Equal(t, "*", CigarString(nil))
	require.Equal(t, "3M2I10D", CigarString([]CigarOp{{'M', 3}, {'I', 2}, {'D', 10}}))
}
