package format

// Magic is the four-byte signature at the start of every file.
var Magic = [4]byte{'C', 'R', 'A', 'M'}

// Version of the container format produced by this module. Readers accept
// any 3.x minor version.
const (
	MajorVersion = 3
	MinorVersion = 0
)

// FileIDLength is the fixed length of the NUL-padded file identifier that
// follows the version bytes in the file definition.
const FileIDLength = 20

type (
	ContentType       uint8
	CompressionMethod uint8
	Codec             int32
)

const (
	ContentFileHeader        ContentType = 0 // ContentFileHeader holds the SAM header text.
	ContentCompressionHeader ContentType = 1 // ContentCompressionHeader holds the per-container compression header.
	ContentSliceHeader       ContentType = 2 // ContentSliceHeader holds a mapped slice header.
	ContentReserved          ContentType = 3 // ContentReserved is unused by the current format revision.
	ContentExternal          ContentType = 4 // ContentExternal holds one data series or tag stream.
	ContentCore              ContentType = 5 // ContentCore holds the shared bit-packed core data stream.
)

const (
	MethodRaw   CompressionMethod = 0 // MethodRaw stores the payload without compression.
	MethodGzip  CompressionMethod = 1 // MethodGzip is RFC 1952 gzip.
	MethodBzip2 CompressionMethod = 2 // MethodBzip2 is bzip2.
	MethodLzma  CompressionMethod = 3 // MethodLzma is the legacy LZMA-alone stream format.
	MethodRans  CompressionMethod = 4 // MethodRans is the 4x8 static rANS coder.

	// Extension methods live outside the standard range and are honored only
	// when explicitly registered with a compress.Registry.
	MethodLZ4  CompressionMethod = 0xF0
	MethodZstd CompressionMethod = 0xF1
)

const (
	CodecNull          Codec = 0
	CodecExternal      Codec = 1
	CodecGolomb        Codec = 2
	CodecHuffman       Codec = 3
	CodecByteArrayLen  Codec = 4
	CodecByteArrayStop Codec = 5
	CodecBeta          Codec = 6
	CodecSubexp        Codec = 7
	CodecGolombRice    Codec = 8
	CodecGamma         Codec = 9
)

// DataSeries is a two-character key naming one logical stream of record
// fields inside a container.
type DataSeries [2]byte

// The data series consumed by record encoding and reconstruction.
var (
	SeriesBamFlags        = DataSeries{'B', 'F'}
	SeriesCramFlags       = DataSeries{'C', 'F'}
	SeriesRefID           = DataSeries{'R', 'I'}
	SeriesReadLength      = DataSeries{'R', 'L'}
	SeriesAlignmentStart  = DataSeries{'A', 'P'}
	SeriesReadGroup       = DataSeries{'R', 'G'}
	SeriesReadName        = DataSeries{'R', 'N'}
	SeriesMateFlags       = DataSeries{'M', 'F'}
	SeriesMateRefID       = DataSeries{'N', 'S'}
	SeriesMateStart       = DataSeries{'N', 'P'}
	SeriesTemplateSize    = DataSeries{'T', 'S'}
	SeriesMateDistance    = DataSeries{'N', 'F'}
	SeriesTagLine         = DataSeries{'T', 'L'}
	SeriesFeatureCount    = DataSeries{'F', 'N'}
	SeriesFeatureCode     = DataSeries{'F', 'C'}
	SeriesFeaturePosition = DataSeries{'F', 'P'}
	SeriesDeletionLength  = DataSeries{'D', 'L'}
	SeriesStretchBases    = DataSeries{'B', 'B'}
	SeriesStretchQuals    = DataSeries{'Q', 'Q'}
	SeriesBaseSubstCode   = DataSeries{'B', 'S'}
	SeriesInsertion       = DataSeries{'I', 'N'}
	SeriesReferenceSkip   = DataSeries{'R', 'S'}
	SeriesSoftClip        = DataSeries{'S', 'C'}
	SeriesPadding         = DataSeries{'P', 'D'}
	SeriesHardClip        = DataSeries{'H', 'C'}
	SeriesBases           = DataSeries{'B', 'A'}
	SeriesQualityScores   = DataSeries{'Q', 'S'}
	SeriesMappingQuality  = DataSeries{'M', 'Q'}
)

func (s DataSeries) String() string { return string(s[:]) }

// FeatureCode tags one alignment-difference event in a record's feature list.
type FeatureCode byte

const (
	FeatureReadBase      FeatureCode = 'B' // base + quality pair
	FeatureSubstitution  FeatureCode = 'X' // substitution matrix code
	FeatureInsertion     FeatureCode = 'I' // run of inserted bases
	FeatureDeletion      FeatureCode = 'D' // deletion length
	FeatureInsertBase    FeatureCode = 'i' // single inserted base
	FeatureQuality       FeatureCode = 'Q' // single quality score
	FeatureReferenceSkip FeatureCode = 'N'
	FeatureSoftClip      FeatureCode = 'S'
	FeaturePadding       FeatureCode = 'P'
	FeatureHardClip      FeatureCode = 'H'
	FeatureBases         FeatureCode = 'b' // verbatim base run
	FeatureScores        FeatureCode = 'q' // verbatim quality run
)

func (c ContentType) String() string {
	switch c {
	case ContentFileHeader:
		return "FileHeader"
	case ContentCompressionHeader:
		return "CompressionHeader"
	case ContentSliceHeader:
		return "SliceHeader"
	case ContentExternal:
		return "External"
	case ContentCore:
		return "Core"
	default:
		return "Unknown"
	}
}

func (m CompressionMethod) String() string {
	switch m {
	case MethodRaw:
		return "Raw"
	case MethodGzip:
		return "Gzip"
	case MethodBzip2:
		return "Bzip2"
	case MethodLzma:
		return "Lzma"
	case MethodRans:
		return "Rans4x8"
	case MethodLZ4:
		return "LZ4"
	case MethodZstd:
		return "Zstd"
	default:
		return "Unknown"
	}
}

func (c Codec) String() string {
	switch c {
	case CodecNull:
		return "Null"
	case CodecExternal:
		return "External"
	case CodecGolomb:
		return "Golomb"
	case CodecHuffman:
		return "Huffman"
	case CodecByteArrayLen:
		return "ByteArrayLen"
	case CodecByteArrayStop:
		return "ByteArrayStop"
	case CodecBeta:
		return "Beta"
	case CodecSubexp:
		return "Subexponential"
	case CodecGolombRice:
		return "GolombRice"
	case CodecGamma:
		return "Gamma"
	default:
		return "Unknown"
	}
}
