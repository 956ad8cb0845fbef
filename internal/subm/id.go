// Package subm holds submission identifiers and the handle for a stored
// submission archive.
package subm

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrMalformedID = errors.New("malformed submission id")
	ErrNoIDMatch   = errors.New("student id pattern does not match")
)

// Separator joins the student id and the uuid of a full submission id.
const Separator = "--"

// DefaultPattern takes the whole basename as the student id.
const DefaultPattern = `(?P<id>.*)`

const uuidV4Pattern = `[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}`

var (
	fullIDRe    = regexp.MustCompile(`^(?P<student>\w+)` + Separator + `(?P<uuid>` + uuidV4Pattern + `)$`)
	studentIDRe = regexp.MustCompile(`^\w+$`)
)

// ID identifies one imported submission of one student.
type ID struct {
	StudentID string
	UUID      string
}

// String returns the canonical "{student_id}--{uuid}" form.
func (id ID) String() string {
	return id.StudentID + Separator + id.UUID
}

// Parse splits a full id into the student id and the uuid.
func Parse(fullID string) (ID, error) {
	m := fullIDRe.FindStringSubmatch(fullID)
	if m == nil {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformedID, fullID)
	}
	return ID{
		StudentID: m[fullIDRe.SubexpIndex("student")],
		UUID:      m[fullIDRe.SubexpIndex("uuid")],
	}, nil
}

// Mint creates a fresh id for the student.
func Mint(studentID string) (ID, error) {
	if !ValidStudentID(studentID) {
		return ID{}, fmt.Errorf("%w: bad student id %q", ErrMalformedID, studentID)
	}

	minted := ID{StudentID: studentID, UUID: uuid.NewString()}
	parsed, err := Parse(minted.String())
	if err != nil || parsed != minted {
		panic(fmt.Sprintf("minted submission id %q does not parse back: %v", minted, err))
	}
	return minted, nil
}

// ValidStudentID reports whether s may be used as the student part of an id.
func ValidStudentID(s string) bool {
	return studentIDRe.MatchString(s) && !strings.Contains(s, Separator)
}

// TrimArchiveExt strips a trailing archive extension from a basename.
func TrimArchiveExt(basename string) string {
	for _, ext := range []string{".tar.gz", ".tgz", ".zip"} {
		if strings.HasSuffix(basename, ext) {
			return strings.TrimSuffix(basename, ext)
		}
	}
	return basename
}

// ExtractStudentID applies pattern to the basename of a submission source
// with its archive extension removed. The pattern must contain a named
// capture group "id". An empty pattern means DefaultPattern.
func ExtractStudentID(basename string, pattern string) (string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return "", fmt.Errorf("%w: invalid pattern %q: %v", ErrNoIDMatch, pattern, err)
	}
	idx := re.SubexpIndex("id")
	if idx < 0 {
		return "", fmt.Errorf("%w: pattern %q is missing the \"id\" group", ErrNoIDMatch, pattern)
	}

	name := TrimArchiveExt(filepath.Base(basename))
	m := re.FindStringSubmatch(name)
	if m == nil || m[idx] == "" {
		return "", fmt.Errorf("%w: pattern %q does not match file name %q", ErrNoIDMatch, pattern, name)
	}
	return m[idx], nil
}
