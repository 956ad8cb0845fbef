package importer_test

import (
	"archive/tar"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/programme-lv/grader/internal/assignment"
	"github.com/programme-lv/grader/internal/config"
	"github.com/programme-lv/grader/internal/importer"
	"github.com/programme-lv/grader/internal/roster"
	"github.com/programme-lv/grader/internal/runtime/runtimetest"
	"github.com/programme-lv/grader/internal/tarball"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*importer.Importer, *assignment.Assignment) {
	t.Helper()
	course := &config.Course{
		CourseID:   "cpl",
		CourseName: "cpl",
		Roster: []roster.Student{
			{ID: "fmm000", Name: "Finn Mertens"},
			{ID: "jtd111", Name: "Jake the Dog"},
		},
	}
	r, err := course.StudentRoster()
	require.NoError(t, err)
	a, err := assignment.Create(t.TempDir(), "a1", course, runtimetest.New(), nil)
	require.NoError(t, err)
	return importer.New(r, nil), a
}

func makeStudentFolder(t *testing.T, dest string, studentID string, filenames ...string) string {
	t.Helper()
	if len(filenames) == 0 {
		filenames = []string{"main.py"}
	}
	dir := filepath.Join(dest, studentID)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, f := range filenames {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0644))
	}
	return dir
}

func makeStudentTarball(t *testing.T, dest string, studentID string, innerName string) string {
	t.Helper()
	dir := makeStudentFolder(t, t.TempDir(), studentID)
	p := filepath.Join(dest, studentID+".tar.gz")
	require.NoError(t, tarball.Create(dir, innerName, p))
	return p
}

// makeFileTarball builds an archive whose only entry is a regular file.
func makeFileTarball(t *testing.T, dest string, studentID string) string {
	t.Helper()
	p := filepath.Join(dest, studentID+".tar.gz")
	f, err := os.Create(p)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: studentID, Typeflag: tar.TypeReg, Mode: 0644, Size: 2}))
	_, err = tw.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())
	return p
}

func submissionFiles(t *testing.T, a *assignment.Assignment) []string {
	t.Helper()
	entries, err := os.ReadDir(a.SubmissionsDir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func checkStoredTarball(t *testing.T, a *assignment.Assignment, studentID string) {
	t.Helper()
	names := submissionFiles(t, a)
	require.Len(t, names, 1)
	name := names[0]
	require.True(t, strings.HasPrefix(name, studentID+"--"), name)
	require.True(t, strings.HasSuffix(name, ".tar.gz"), name)
	require.Len(t, name, 45+len(studentID))

	p := filepath.Join(a.SubmissionsDir(), name)
	top, err := tarball.TopLevel(p)
	require.NoError(t, err)
	require.Equal(t, []tarball.Entry{{Name: studentID, IsDir: true}}, top)

	mtimes, err := tarball.Mtimes(p)
	require.NoError(t, err)
	require.Contains(t, mtimes, studentID+"/main.py")
}

func TestImportSingleFolder(t *testing.T) {
	im, a := setup(t)
	dir := makeStudentFolder(t, t.TempDir(), "jtd111")

	s, err := im.Single(a, dir+"/", "")
	require.NoError(t, err)
	require.Equal(t, "jtd111", s.StudentID)
	require.Equal(t, "a1", s.Assignment)
	checkStoredTarball(t, a, "jtd111")
}

func TestImportSingleTarball(t *testing.T) {
	im, a := setup(t)
	p := makeStudentTarball(t, t.TempDir(), "jtd111", "jtd111")

	subs, err := im.Import(context.Background(), importer.KindSingle, a, p, "")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	checkStoredTarball(t, a, "jtd111")
}

func TestImportTwiceCreatesNewSubmission(t *testing.T) {
	im, a := setup(t)
	dir := makeStudentFolder(t, t.TempDir(), "jtd111")

	first, err := im.Single(a, dir, "")
	require.NoError(t, err)
	second, err := im.Single(a, dir, "")
	require.NoError(t, err)

	require.NotEqual(t, first.UUID, second.UUID)
	require.Len(t, submissionFiles(t, a), 2)
}

func TestImportUnknownStudent(t *testing.T) {
	im, a := setup(t)
	dir := makeStudentFolder(t, t.TempDir(), "pb999")

	_, err := im.Single(a, dir, "")
	require.ErrorIs(t, err, importer.ErrUnknownStudent)
	require.Empty(t, submissionFiles(t, a))
}

func TestImportTarballWithFile(t *testing.T) {
	im, a := setup(t)
	p := makeFileTarball(t, t.TempDir(), "jtd111")

	_, err := im.Single(a, p, "")
	var malformed *importer.MalformedArchiveError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, importer.NotDirectory, malformed.Reason)
	require.ErrorContains(t, err, "should be a directory")
	require.Empty(t, submissionFiles(t, a))
}

func TestImportTarballNameMismatch(t *testing.T) {
	im, a := setup(t)
	p := makeStudentTarball(t, t.TempDir(), "jtd111", "fmm000")

	_, err := im.Single(a, p, "")
	var malformed *importer.MalformedArchiveError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, importer.NameMismatch, malformed.Reason)
	require.ErrorContains(t, err, "does not match")
}

func TestImportTarballManyEntries(t *testing.T) {
	im, a := setup(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.py"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.py"), nil, 0644))

	// archive the directory contents without a wrapping folder
	p := filepath.Join(t.TempDir(), "jtd111.tar.gz")
	f, err := os.Create(p)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for _, name := range []string{"a.py", "b.py"} {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0644}))
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())

	_, err = im.Single(a, p, "")
	var malformed *importer.MalformedArchiveError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, importer.NotSingleEntry, malformed.Reason)
	require.ErrorContains(t, err, "exactly one item")
}

func TestImportWithPattern(t *testing.T) {
	im, a := setup(t)
	dir := makeStudentFolder(t, t.TempDir(), "hw1-jtd111")

	s, err := im.Single(a, dir, `hw1-(?P<id>\w+)`)
	require.NoError(t, err)
	require.Equal(t, "jtd111", s.StudentID)

	top, err := tarball.TopLevel(s.Path)
	require.NoError(t, err)
	require.Equal(t, []tarball.Entry{{Name: "jtd111", IsDir: true}}, top)
}

func TestImportMultiplePartialFailure(t *testing.T) {
	im, a := setup(t)
	src := t.TempDir()
	makeStudentFolder(t, src, "jtd111")
	makeFileTarball(t, src, "fmm000")
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0644))

	subs, err := im.Import(context.Background(), importer.KindMultiple, a, src, "")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "jtd111", subs[0].StudentID)
	require.Len(t, submissionFiles(t, a), 1)
}

func TestImportMultipleNotADirectory(t *testing.T) {
	im, a := setup(t)
	p := makeStudentTarball(t, t.TempDir(), "jtd111", "jtd111")

	_, err := im.Multiple(a, p, "")
	require.Error(t, err)
}

func TestImportBlackboard(t *testing.T) {
	im, a := setup(t)

	zipPath := filepath.Join(t.TempDir(), "download.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("jtd111/main.py")
	require.NoError(t, err)
	_, err = w.Write([]byte("print(1)\n"))
	require.NoError(t, err)
	tgz, err := os.ReadFile(makeStudentTarball(t, t.TempDir(), "fmm000", "fmm000"))
	require.NoError(t, err)
	w, err = zw.Create("fmm000.tar.gz")
	require.NoError(t, err)
	_, err = w.Write(tgz)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	subs, err := im.Import(context.Background(), importer.KindBlackboard, a, zipPath, "")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Len(t, submissionFiles(t, a), 2)
}

func TestImportRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}
	im, a := setup(t)

	repo := filepath.Join(t.TempDir(), "jtd111")
	require.NoError(t, os.MkdirAll(repo, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "main.py"), []byte("print(1)\n"), 0644))
	for _, args := range [][]string{
		{"init", "--quiet"},
		{"add", "main.py"},
		{"-c", "user.name=ta", "-c", "user.email=ta@example.com", "commit", "--quiet", "-m", "init"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	subs, err := im.Import(context.Background(), importer.KindRepo, a, repo, "")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "jtd111", subs[0].StudentID)

	mtimes, err := tarball.Mtimes(subs[0].Path)
	require.NoError(t, err)
	require.Contains(t, mtimes, "jtd111/main.py")
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"single", "multiple", "repo", "blackboard"} {
		k, err := importer.ParseKind(name)
		require.NoError(t, err)
		require.Equal(t, name, k.String())
	}
	_, err := importer.ParseKind("canvas")
	require.Error(t, err)
}
