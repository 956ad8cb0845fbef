// Package importer validates incoming student work and stores it as
// submissions of an assignment.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/programme-lv/grader/internal/assignment"
	"github.com/programme-lv/grader/internal/subm"
	"github.com/programme-lv/grader/internal/tarball"
)

// Roster is the membership check the importer needs.
type Roster interface {
	Contains(studentID string) bool
}

type Importer struct {
	roster Roster
	gitBin string
	logger *slog.Logger
}

func New(roster Roster, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{roster: roster, gitBin: "git", logger: logger}
}

// Import runs the strategy of the given kind.
func (im *Importer) Import(ctx context.Context, kind Kind, a *assignment.Assignment, source string, pattern string) ([]*subm.Submission, error) {
	s, err := im.Strategy(kind)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, a, source, pattern)
}

// Single imports one directory or .tar.gz as a new submission. Importing
// the same student again always creates a new submission.
func (im *Importer) Single(a *assignment.Assignment, source string, pattern string) (*subm.Submission, error) {
	source = filepath.Clean(source)
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", source, err)
	}

	studentID, err := subm.ExtractStudentID(filepath.Base(source), pattern)
	if err != nil {
		return nil, err
	}
	if !im.roster.Contains(studentID) {
		return nil, fmt.Errorf("%w: expected %q to match a student id", ErrUnknownStudent, studentID)
	}

	if !info.IsDir() {
		if err := checkTarball(source, studentID); err != nil {
			return nil, err
		}
	}

	id, err := subm.Mint(studentID)
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(a.SubmissionsDir(), subm.FileName(id))

	archive := source
	if info.IsDir() {
		im.logger.Debug("importing a single directory", "source", source)
		tmpDir, err := os.MkdirTemp("", "grader-import-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		defer func() {
			im.logger.Debug("removing temporary archive", "dir", tmpDir)
			os.RemoveAll(tmpDir)
		}()
		archive = filepath.Join(tmpDir, subm.FileName(id))
		if err := tarball.Create(source, studentID, archive); err != nil {
			return nil, err
		}
	} else {
		im.logger.Debug("importing a single tarball", "source", source)
	}

	if err := copyFile(archive, dest); err != nil {
		return nil, err
	}

	s, err := subm.Open(a.Name, dest)
	if err != nil {
		return nil, err
	}
	im.logger.Info("imported submission", "student", s.StudentID, "submission", s.UUID, "source", source)
	return s, nil
}

// Multiple imports every directory and .tar.gz inside dir. Items that fail
// are logged and skipped, so callers compare counts to detect skips.
func (im *Importer) Multiple(a *assignment.Assignment, dir string, pattern string) ([]*subm.Submission, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory, cannot import", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var imported []*subm.Submission
	for _, e := range entries {
		item := filepath.Join(dir, e.Name())
		if !e.IsDir() && !tarball.IsTarGz(item) {
			im.logger.Error("could not import item", "item", item, "error", "neither a directory nor a tarball")
			continue
		}
		s, err := im.Single(a, item, pattern)
		if err != nil {
			im.logger.Error("could not import item", "item", item, "error", err)
			continue
		}
		imported = append(imported, s)
	}
	if len(imported) < len(entries) {
		im.logger.Warn("some items were not imported", "imported", len(imported), "items", len(entries))
	}
	return imported, nil
}

func checkTarball(path string, studentID string) error {
	if !tarball.IsTarGz(path) {
		return &MalformedArchiveError{
			Path:   path,
			Reason: NotArchive,
			Msg:    fmt.Sprintf("%s is neither a directory nor a tarball", path),
		}
	}

	entries, err := tarball.TopLevel(path)
	if err != nil {
		return err
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		return &MalformedArchiveError{
			Path:   path,
			Reason: NotSingleEntry,
			Msg:    fmt.Sprintf("expected exactly one item at the root, found [%s]", strings.Join(names, ", ")),
		}
	}

	entry := entries[0]
	if !entry.IsDir {
		return &MalformedArchiveError{
			Path:   path,
			Reason: NotDirectory,
			Msg:    fmt.Sprintf("%q in %s should be a directory, not a file", entry.Name, path),
		}
	}
	if entry.Name != studentID {
		return &MalformedArchiveError{
			Path:   path,
			Reason: NameMismatch,
			Msg:    fmt.Sprintf("inner folder name (%s) does not match tarball name (%s)", entry.Name, studentID),
		}
	}
	return nil
}

func copyFile(src string, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dst, cErr)
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}
