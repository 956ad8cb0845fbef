package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/programme-lv/grader/internal/assignment"
	"github.com/programme-lv/grader/internal/subm"
)

// Kind selects an import strategy.
type Kind int

const (
	KindSingle Kind = iota
	KindMultiple
	KindRepo
	KindBlackboard
)

var kindNames = map[Kind]string{
	KindSingle:     "single",
	KindMultiple:   "multiple",
	KindRepo:       "repo",
	KindBlackboard: "blackboard",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a command line name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("no importer for type %q", s)
}

// Strategy imports submissions from a source into an assignment.
type Strategy interface {
	Import(ctx context.Context, a *assignment.Assignment, source string, pattern string) ([]*subm.Submission, error)
}

// Strategy returns the import strategy for kind.
func (im *Importer) Strategy(kind Kind) (Strategy, error) {
	switch kind {
	case KindSingle:
		return singleStrategy{im}, nil
	case KindMultiple:
		return multipleStrategy{im}, nil
	case KindRepo:
		return repoStrategy{im}, nil
	case KindBlackboard:
		return blackboardStrategy{im}, nil
	}
	return nil, fmt.Errorf("no importer for type %s", kind)
}

type singleStrategy struct{ im *Importer }

func (s singleStrategy) Import(ctx context.Context, a *assignment.Assignment, source string, pattern string) ([]*subm.Submission, error) {
	sub, err := s.im.Single(a, source, pattern)
	if err != nil {
		return nil, err
	}
	return []*subm.Submission{sub}, nil
}

type multipleStrategy struct{ im *Importer }

func (s multipleStrategy) Import(ctx context.Context, a *assignment.Assignment, source string, pattern string) ([]*subm.Submission, error) {
	return s.im.Multiple(a, source, pattern)
}

// repoStrategy clones a git repository and imports the working tree. The
// student id is taken from the repository name without ".git".
type repoStrategy struct{ im *Importer }

func (s repoStrategy) Import(ctx context.Context, a *assignment.Assignment, source string, pattern string) ([]*subm.Submission, error) {
	name := strings.TrimSuffix(filepath.Base(strings.TrimRight(source, "/")), ".git")
	studentID, err := subm.ExtractStudentID(name, pattern)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "grader-repo-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dest := filepath.Join(tmpDir, studentID)
	cmd := exec.CommandContext(ctx, s.im.gitBin, cloneArgs(source, dest)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w: %s", source, err, strings.TrimSpace(string(out)))
	}
	s.im.logger.Debug("cloned repository", "source", source, "dest", dest)

	sub, err := s.im.Single(a, dest, subm.DefaultPattern)
	if err != nil {
		return nil, err
	}
	return []*subm.Submission{sub}, nil
}

// cloneArgs ends option parsing before the source so that a source
// starting with "-" is never taken for a git option.
func cloneArgs(source string, dest string) []string {
	return []string{"clone", "--quiet", "--", source, dest}
}

// blackboardStrategy unpacks a ZIP download holding one directory or
// tarball per student and imports its items like multipleStrategy.
type blackboardStrategy struct{ im *Importer }

func (s blackboardStrategy) Import(ctx context.Context, a *assignment.Assignment, source string, pattern string) ([]*subm.Submission, error) {
	tmpDir, err := os.MkdirTemp("", "grader-blackboard-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := unzip(source, tmpDir); err != nil {
		return nil, err
	}
	return s.im.Multiple(a, tmpDir, pattern)
}

func unzip(src string, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open zip %s: %w", src, err)
	}
	defer zr.Close()

	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, f := range zr.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("zip entry %q escapes the destination", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
