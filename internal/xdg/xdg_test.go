package xdg_test

import (
	"path/filepath"
	"testing"

	"github.com/programme-lv/grader/internal/xdg"
	"github.com/stretchr/testify/require"
)

func TestDirsFromEnv(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_CONFIG_HOME", "/conf")

	d := xdg.New()
	require.Equal(t, filepath.Join("/data", "grader"), d.AppDataDir("grader"))
	require.Equal(t, filepath.Join("/conf", "grader"), d.AppConfigDir("grader"))
}

func TestDirsDefaults(t *testing.T) {
	t.Setenv("HOME", "/home/ta")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "")

	d := xdg.New()
	require.Equal(t, "/home/ta/.local/share", d.DataHome())
	require.Equal(t, "/home/ta/.config", d.ConfigHome())
}
