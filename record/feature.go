package record

import (
	"strconv"

	"github.com/cramio/cram/format"
)

// Feature is one alignment-difference event within a mapped record. Which
// payload fields are meaningful depends on Code:
//
//	B  Base, Quality
//	X  SubstCode
//	I  Bases (run of inserted bases)
//	D  Length
//	i  Base
//	Q  Quality
//	N  Length
//	S  Bases
//	P  Length
//	H  Length
//	b  Bases (verbatim run)
//	q  Scores (verbatim run)
type Feature struct {
	Code format.FeatureCode

	// Position is the 1-based offset of the event within the read.
	Position int32

	Base      byte
	Quality   byte
	SubstCode byte
	Length    int32
	Bases     []byte
	Scores    []byte
}

// CigarOp is one alignment operation, using the standard single-letter
// operator alphabet M, I, D, N, S, H, P.
type CigarOp struct {
	Op  byte
	Len int32
}

// CigarString renders ops in their text form, "*" when empty.
func CigarString(ops []CigarOp) string {
	if len(ops) == 0 {
		return "*"
	}

	var b []byte
	for _, op := range ops {
		b = strconv.AppendInt(b, int64(op.Len), 10)
		b = append(b, op.Op)
	}

	return string(b)
}
