package tarball_test

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/programme-lv/grader/internal/tarball"
	"github.com/stretchr/testify/require"
)

// writeRaw builds a tar.gz with the given headers-only entries.
func writeRaw(t *testing.T, dst string, files map[string]string, dirs ...string) {
	t.Helper()
	f, err := os.Create(dst)
	require.NoError(t, err)
	defer f.Close()
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for _, d := range dirs {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: d + "/", Typeflag: tar.TypeDir, Mode: 0755}))
	}
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
}

func TestCreateAndTopLevel(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "pkg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.py"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pkg", "util.py"), []byte("y"), 0644))

	dst := filepath.Join(t.TempDir(), "out.tar.gz")
	require.NoError(t, tarball.Create(src, "jtd111", dst))
	require.True(t, tarball.IsTarGz(dst))

	top, err := tarball.TopLevel(dst)
	require.NoError(t, err)
	require.Equal(t, []tarball.Entry{{Name: "jtd111", IsDir: true}}, top)

	mtimes, err := tarball.Mtimes(dst)
	require.NoError(t, err)
	require.Contains(t, mtimes, "jtd111/main.py")
	require.Contains(t, mtimes, "jtd111/pkg/util.py")
}

func TestTopLevel(t *testing.T) {
	dir := t.TempDir()

	single := filepath.Join(dir, "file.tar.gz")
	writeRaw(t, single, map[string]string{"jtd111": "not a dir"})
	top, err := tarball.TopLevel(single)
	require.NoError(t, err)
	require.Equal(t, []tarball.Entry{{Name: "jtd111", IsDir: false}}, top)

	implicit := filepath.Join(dir, "implicit.tar.gz")
	writeRaw(t, implicit, map[string]string{"./jtd111/a.txt": "a", "jtd111/b.txt": "b"})
	top, err = tarball.TopLevel(implicit)
	require.NoError(t, err)
	require.Equal(t, []tarball.Entry{{Name: "jtd111", IsDir: true}}, top)

	many := filepath.Join(dir, "many.tar.gz")
	writeRaw(t, many, map[string]string{"a.txt": "a", "b/c.txt": "c"}, "d")
	top, err = tarball.TopLevel(many)
	require.NoError(t, err)
	require.Equal(t, []tarball.Entry{
		{Name: "a.txt", IsDir: false},
		{Name: "b", IsDir: true},
		{Name: "d", IsDir: true},
	}, top)
}

func TestIsTarGz(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.tar.gz")
	require.NoError(t, os.WriteFile(plain, []byte("hello"), 0644))
	require.False(t, tarball.IsTarGz(plain))
	require.False(t, tarball.IsTarGz(filepath.Join(dir, "missing.tar.gz")))

	empty := filepath.Join(dir, "empty.tar.gz")
	writeRaw(t, empty, nil)
	require.True(t, tarball.IsTarGz(empty))
}
