package results_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/programme-lv/grader/internal/results"
	"github.com/stretchr/testify/require"
)

func TestRecordIncrementsCounter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	rec := results.NewRecorder(dir, nil)

	first, err := rec.Record("jtd111", "score: 10\n")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "jtd111.01.yml"), first)

	second, err := rec.Record("jtd111", "foo: bar: baz")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "jtd111.02.log"), second)

	other, err := rec.Record("fmm000", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "fmm000.01.yml"), other)

	body, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Equal(t, "score: 10\n", string(body))

	body, err = os.ReadFile(second)
	require.NoError(t, err)
	require.Equal(t, "foo: bar: baz", string(body))

	latest, ok, err := rec.Latest("jtd111")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, latest.Counter)
	require.Equal(t, results.ExtLog, latest.Ext)
}

func TestRecordNeverReusesCounter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jtd111.07.log"), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jtd1110.01.log"), []byte("other"), 0644))

	rec := results.NewRecorder(dir, nil)
	p, err := rec.Record("jtd111", "ok")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "jtd111.08.yml"), p)

	all, err := rec.For("jtd111")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 7, all[0].Counter)
	require.Equal(t, 8, all[1].Counter)
}

func TestRecordConcurrent(t *testing.T) {
	dir := t.TempDir()
	rec := results.NewRecorder(dir, nil)

	const n = 25
	var wg sync.WaitGroup
	paths := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := rec.Record("jtd111", "- item\n")
			require.NoError(t, err)
			paths <- p
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for p := range paths {
		require.False(t, seen[p], p)
		seen[p] = true
	}
	all, err := rec.For("jtd111")
	require.NoError(t, err)
	require.Len(t, all, n)
	for i, r := range all {
		require.Equal(t, i+1, r.Counter)
	}
}

func TestLatestWithoutResults(t *testing.T) {
	rec := results.NewRecorder(filepath.Join(t.TempDir(), "missing"), nil)
	_, ok, err := rec.Latest("jtd111")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileName(t *testing.T) {
	require.Equal(t, "jtd111.03.log", results.FileName("jtd111", 3, results.ExtLog))
	require.Equal(t, "jtd111.123.yml", results.FileName("jtd111", 123, results.ExtYAML))
}
