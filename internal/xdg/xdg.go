package xdg

import (
	"os"
	"path/filepath"
)

// Dirs holds the XDG base directories the grader reads its defaults from.
type Dirs struct {
	dataHome   string
	configHome string
}

// New resolves the base directories from the environment, falling back to
// the defaults of the XDG Base Directory Specification.
func New() *Dirs {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
		if homeDir == "" {
			homeDir = "/tmp"
		}
	}

	d := &Dirs{}

	d.dataHome = os.Getenv("XDG_DATA_HOME")
	if d.dataHome == "" {
		d.dataHome = filepath.Join(homeDir, ".local", "share")
	}

	d.configHome = os.Getenv("XDG_CONFIG_HOME")
	if d.configHome == "" {
		d.configHome = filepath.Join(homeDir, ".config")
	}

	return d
}

func (d *Dirs) DataHome() string {
	return d.dataHome
}

func (d *Dirs) ConfigHome() string {
	return d.configHome
}

// AppDataDir returns the application-specific data directory
func (d *Dirs) AppDataDir(appName string) string {
	return filepath.Join(d.dataHome, appName)
}

// AppConfigDir returns the application-specific config directory
func (d *Dirs) AppConfigDir(appName string) string {
	return filepath.Join(d.configHome, appName)
}
