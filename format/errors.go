package format

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a fatal decode or encode failure.
//
// The distinction matters to callers: corruption means the byte stream is
// damaged and the current position is unrecoverable; a schema violation means
// the stream is self-inconsistent but independently seekable slices may still
// be readable; unsupported means the stream is valid but uses a method or
// codec this module does not implement.
type ErrorKind int

const (
	KindCorruption  ErrorKind = iota + 1 // magic/version mismatch, malformed varint, checksum or size mismatch
	KindSchema                           // unknown content id, missing encoding, unknown tag group
	KindUnsupported                      // recognized but unimplemented compression method or codec
)

func (k ErrorKind) String() string {
	switch k {
	case KindCorruption:
		return "corruption"
	case KindSchema:
		return "schema violation"
	case KindUnsupported:
		return "unsupported feature"
	default:
		return "unknown"
	}
}

// Error is the typed failure crossing the library boundary. Every fatal path
// carries as much positional context as the failure site knows: container
// ordinal, slice ordinal, block content id and record index, each -1 when not
// applicable.
type Error struct {
	Kind      ErrorKind
	Container int
	Slice     int
	ContentID int32
	Record    int
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Container >= 0 {
		fmt.Fprintf(&sb, " container=%d", e.Container)
	}
	if e.Slice >= 0 {
		fmt.Fprintf(&sb, " slice=%d", e.Slice)
	}
	if e.ContentID >= 0 {
		fmt.Fprintf(&sb, " content-id=%d", e.ContentID)
	}
	if e.Record >= 0 {
		fmt.Fprintf(&sb, " record=%d", e.Record)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality, so callers can match errors.Is(err, &Error{Kind: KindCorruption}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && t.Msg == ""
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Container: -1, Slice: -1, ContentID: -1, Record: -1, Msg: msg}
}

// Corruptionf builds a KindCorruption error.
func Corruptionf(msg string, args ...any) *Error {
	return newError(KindCorruption, fmt.Sprintf(msg, args...))
}

// Schemaf builds a KindSchema error.
func Schemaf(msg string, args ...any) *Error {
	return newError(KindSchema, fmt.Sprintf(msg, args...))
}

// Unsupportedf builds a KindUnsupported error.
func Unsupportedf(msg string, args ...any) *Error {
	return newError(KindUnsupported, fmt.Sprintf(msg, args...))
}

// Wrap attaches an underlying cause, typically a transport error.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// WithContainer records the container ordinal on the error if it is a typed
// Error and the ordinal is not already set; other errors pass through so
// transport failures keep their identity.
func WithContainer(err error, container int) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Container < 0 {
		fe.Container = container
	}

	return err
}

// WithSlice records the slice ordinal, like WithContainer.
func WithSlice(err error, slice int) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Slice < 0 {
		fe.Slice = slice
	}

	return err
}

// WithContentID records the block content id, like WithContainer.
func WithContentID(err error, id int32) error {
	var fe *Error
	if errors.As(err, &fe) && fe.ContentID < 0 {
		fe.ContentID = id
	}

	return err
}

// WithRecord records the failing record index, like WithContainer.
func WithRecord(err error, record int) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Record < 0 {
		fe.Record = record
	}

	return err
}

// IsKind reports whether err is (or wraps) a typed Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
