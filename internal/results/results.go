// Package results stores the output of grading runs in an assignment's
// results directory as "{student_id}.{NN}.{yml|log}".
package results

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"gopkg.in/yaml.v3"
)

const (
	ExtYAML = "yml"
	ExtLog  = "log"
)

var nameRe = regexp.MustCompile(`^(\w+)\.(\d{2,})\.(yml|log)$`)

// Result is one stored grading run.
type Result struct {
	Path      string
	StudentID string
	Counter   int
	Ext       string
}

type Recorder struct {
	dir    string
	locks  *xsync.MapOf[string, *sync.Mutex]
	logger *slog.Logger
}

func NewRecorder(dir string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		dir:    dir,
		locks:  xsync.NewMapOf[string, *sync.Mutex](),
		logger: logger,
	}
}

func (r *Recorder) Dir() string {
	return r.dir
}

// Record writes output as the student's next result and returns its path.
// Earlier results are never overwritten.
func (r *Recorder) Record(studentID string, output string) (string, error) {
	ext := ExtLog
	if isYAML(output) {
		ext = ExtYAML
	}

	mu, _ := r.locks.LoadOrStore(studentID, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	existing, err := r.For(studentID)
	if err != nil {
		return "", err
	}
	next := 1
	if len(existing) > 0 {
		next = existing[len(existing)-1].Counter + 1
	}

	for {
		path := filepath.Join(r.dir, FileName(studentID, next, ext))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			// written by another process in the meantime
			next++
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create result file: %w", err)
		}
		_, wErr := f.WriteString(output)
		cErr := f.Close()
		if err := errors.Join(wErr, cErr); err != nil {
			return "", fmt.Errorf("failed to write result %s: %w", path, err)
		}
		r.logger.Info("recorded result", "student", studentID, "path", path, "format", ext)
		return path, nil
	}
}

// For lists the student's results ordered by counter.
func (r *Recorder) For(studentID string) ([]Result, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var res []Result
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := nameRe.FindStringSubmatch(e.Name())
		if m == nil || m[1] != studentID {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		res = append(res, Result{
			Path:      filepath.Join(r.dir, e.Name()),
			StudentID: studentID,
			Counter:   n,
			Ext:       m[3],
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Counter < res[j].Counter })
	return res, nil
}

// Latest returns the student's newest result.
func (r *Recorder) Latest(studentID string) (Result, bool, error) {
	res, err := r.For(studentID)
	if err != nil || len(res) == 0 {
		return Result{}, false, err
	}
	return res[len(res)-1], true, nil
}

// FileName formats a result file name. The counter is zero padded to at
// least two digits.
func FileName(studentID string, counter int, ext string) string {
	return fmt.Sprintf("%s.%02d.%s", studentID, counter, ext)
}

// isYAML reports whether every document in s parses as YAML.
func isYAML(s string) bool {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(s)))
	for {
		var v any
		err := dec.Decode(&v)
		if err == io.EOF {
			return true
		}
		if err != nil {
			return false
		}
	}
}
