package subm

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/programme-lv/grader/internal/tarball"
)

// ArchiveExt is the extension of every stored submission archive.
const ArchiveExt = ".tar.gz"

// Container label keys. The uuid label is the sole lookup key for a
// submission's grading container.
const (
	LabelSubmissionUUID = "submission_uuid"
	LabelUserID         = "user_id"
)

// Submission is an imported, immutable archive of one student's work.
type Submission struct {
	ID
	// Assignment is the name of the owning assignment.
	Assignment string
	Path       string
}

// FileName returns the archive file name for id.
func FileName(id ID) string {
	return id.String() + ArchiveExt
}

// Open loads the submission stored at path. The file name must be a full id
// followed by ArchiveExt and the file must be a gzip tar.
func Open(assignment string, path string) (*Submission, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ArchiveExt) {
		return nil, fmt.Errorf("%w: %s is not a %s file", ErrMalformedID, base, ArchiveExt)
	}
	id, err := Parse(strings.TrimSuffix(base, ArchiveExt))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat submission %s: %w", path, err)
	}
	if !info.Mode().IsRegular() || !tarball.IsTarGz(path) {
		return nil, fmt.Errorf("submission %s is not a gzip tarball", path)
	}

	return &Submission{ID: id, Assignment: assignment, Path: path}, nil
}

func (s *Submission) String() string {
	return fmt.Sprintf("Submission %s (%s)", s.StudentID, s.UUID)
}

// ImportTime is the modification time of the stored archive.
func (s *Submission) ImportTime() (time.Time, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat submission %s: %w", s.Path, err)
	}
	return info.ModTime(), nil
}

// LatestMtime is the newest modification time among the archived entries.
func (s *Submission) LatestMtime() (time.Time, error) {
	mtimes, err := tarball.Mtimes(s.Path)
	if err != nil {
		return time.Time{}, err
	}
	var latest time.Time
	for _, t := range mtimes {
		if t.After(latest) {
			latest = t
		}
	}
	return latest, nil
}

// Sha1Sum is the hex SHA-1 digest of the archive.
func (s *Submission) Sha1Sum() (string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open submission %s: %w", s.Path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash submission %s: %w", s.Path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Labels are attached to the submission's grading container.
func (s *Submission) Labels() map[string]string {
	return map[string]string{
		LabelUserID:         s.StudentID,
		LabelSubmissionUUID: s.UUID,
	}
}

// LabelFilter selects the submission's grading containers.
func (s *Submission) LabelFilter() string {
	return LabelSubmissionUUID + "=" + s.UUID
}
