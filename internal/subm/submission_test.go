package subm_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/programme-lv/grader/internal/subm"
	"github.com/programme-lv/grader/internal/tarball"
	"github.com/stretchr/testify/require"
)

func writeSubmission(t *testing.T, dir string, studentID string) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), studentID)
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.py"), []byte("print(1)\n"), 0644))
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "main.py"), mtime, mtime))

	id, err := subm.Mint(studentID)
	require.NoError(t, err)
	dst := filepath.Join(dir, subm.FileName(id))
	require.NoError(t, tarball.Create(src, studentID, dst))
	return dst
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	p := writeSubmission(t, dir, "jtd111")

	s, err := subm.Open("a1", p)
	require.NoError(t, err)
	require.Equal(t, "jtd111", s.StudentID)
	require.Equal(t, "a1", s.Assignment)
	require.Equal(t, "submission_uuid="+s.UUID, s.LabelFilter())
	require.Equal(t, map[string]string{"user_id": "jtd111", "submission_uuid": s.UUID}, s.Labels())

	latest, err := s.LatestMtime()
	require.NoError(t, err)
	require.True(t, latest.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) || latest.After(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))

	sum, err := s.Sha1Sum()
	require.NoError(t, err)
	require.Len(t, sum, 40)

	_, err = s.ImportTime()
	require.NoError(t, err)
}

func TestOpenRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	notTar := filepath.Join(dir, "jtd111--0b7d7c1e-2d1c-4a4e-9a39-0d1f3c2b5e6a.tar.gz")
	require.NoError(t, os.WriteFile(notTar, []byte("plain text"), 0644))
	_, err := subm.Open("a1", notTar)
	require.Error(t, err)

	badName := filepath.Join(dir, "jtd111.tar.gz")
	require.NoError(t, os.WriteFile(badName, []byte("plain text"), 0644))
	_, err = subm.Open("a1", badName)
	require.ErrorIs(t, err, subm.ErrMalformedID)
}
