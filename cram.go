// Package cram reads and writes reference-aligned sequence archives: a
// container format that stores sequencing reads as differences against a
// reference genome, with per-stream compression.
//
// A file is a definition header followed by containers. Each container
// carries a compression header binding data series to encodings, and one
// or more slices of records. Reader and Writer operate at the record
// level; the container, record and encoding sub-packages expose the
// lower layers.
package cram

import (
	"github.com/cramio/cram/format"
)

// FileDefinition is the fixed 26-byte preamble of a file: magic, format
// version and a free-form file id.
type FileDefinition struct {
	Major  byte
	Minor  byte
	FileID [format.FileIDLength]byte
}

// supported reports whether this reader handles the definition's version.
// Any 3.x minor revision is accepted.
func (d FileDefinition) supported() bool {
	return d.Major == format.MajorVersion
}
