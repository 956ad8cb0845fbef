// Package tarball reads and writes the gzip-compressed tar archives that
// submissions are stored as.
package tarball

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Entry is a top-level item of an archive.
type Entry struct {
	Name  string
	IsDir bool
}

// Create archives every file below srcDir into dst, placing them under a
// single top-level directory called rootName.
func Create(srcDir string, rootName string, dst string) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", dst, err)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("failed to close archive %s: %w", dst, cErr)
		}
	}()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	err = filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		name := rootName
		if rel != "." {
			name = path.Join(rootName, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			link, err = os.Readlink(p)
			if err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = name
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", srcDir, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

// IsTarGz reports whether the file at p is a readable gzip-compressed tar.
func IsTarGz(p string) bool {
	err := walk(p, func(*tar.Header) error {
		return errStop
	})
	return err == nil
}

// TopLevel lists the distinct top-level entries of the archive, sorted by
// name. An entry counts as a directory if the archive holds a directory
// header for it or anything nested below it.
func TopLevel(p string) ([]Entry, error) {
	entries := make(map[string]bool)
	err := walk(p, func(hdr *tar.Header) error {
		name := strings.TrimPrefix(path.Clean(hdr.Name), "./")
		if name == "." || name == "" {
			return nil
		}
		first, rest, nested := strings.Cut(name, "/")
		isDir := nested && rest != ""
		if !nested && hdr.Typeflag == tar.TypeDir {
			isDir = true
		}
		entries[first] = entries[first] || isDir
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := make([]Entry, 0, len(entries))
	for name, isDir := range entries {
		res = append(res, Entry{Name: name, IsDir: isDir})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// Mtimes maps every archived entry name to its modification time.
func Mtimes(p string) (map[string]time.Time, error) {
	res := make(map[string]time.Time)
	err := walk(p, func(hdr *tar.Header) error {
		res[hdr.Name] = hdr.ModTime
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

var errStop = errors.New("stop")

func walk(p string, fn func(hdr *tar.Header) error) error {
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", p, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read gzip header of %s: %w", p, err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry of %s: %w", p, err)
		}
		if err := fn(hdr); err != nil {
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		}
	}
}
