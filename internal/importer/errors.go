package importer

import (
	"errors"
	"fmt"
)

// ErrUnknownStudent is returned when the student id taken from a source name
// is not on the course roster.
var ErrUnknownStudent = errors.New("unknown student")

// Reason tells apart the ways an archive can be malformed.
type Reason int

const (
	NotArchive Reason = iota + 1
	NotSingleEntry
	NotDirectory
	NameMismatch
)

func (r Reason) String() string {
	switch r {
	case NotArchive:
		return "not an archive"
	case NotSingleEntry:
		return "not exactly one entry"
	case NotDirectory:
		return "entry is not a directory"
	case NameMismatch:
		return "name mismatch"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// MalformedArchiveError reports a submission archive with an unexpected
// structure.
type MalformedArchiveError struct {
	Path   string
	Reason Reason
	Msg    string
}

func (e *MalformedArchiveError) Error() string {
	return e.Msg
}
