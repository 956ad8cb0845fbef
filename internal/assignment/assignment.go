// Package assignment gives access to an assignment's directories, its
// submissions and its grading image.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/programme-lv/grader/internal/config"
	"github.com/programme-lv/grader/internal/container"
	"github.com/programme-lv/grader/internal/runtime"
	"github.com/programme-lv/grader/internal/subm"
)

const (
	submissionsSubdir = "submissions"
	resultsSubdir     = "results"
)

type Assignment struct {
	Name   string
	Path   string
	course *config.Course
	rt     runtime.Runtime
	logger *slog.Logger
}

// Create makes the directory layout for a new assignment below home.
func Create(home string, name string, course *config.Course, rt runtime.Runtime, logger *slog.Logger) (*Assignment, error) {
	if err := config.ValidName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(config.AssignmentsDir(home), name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("assignment %s already exists at %s", name, path)
	}
	for _, sub := range []string{submissionsSubdir, resultsSubdir} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create assignment %s: %w", name, err)
		}
	}
	return Open(home, name, course, rt, logger)
}

// Open loads an existing assignment.
func Open(home string, name string, course *config.Course, rt runtime.Runtime, logger *slog.Logger) (*Assignment, error) {
	if err := config.ValidName(name); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assignment{
		Name:   name,
		Path:   filepath.Join(config.AssignmentsDir(home), name),
		course: course,
		rt:     rt,
		logger: logger.With("assignment", name),
	}
	for _, dir := range []string{a.Path, a.SubmissionsDir(), a.ResultsDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("assignment %s is missing %s: %w", name, dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("assignment %s: %s is not a directory", name, dir)
		}
	}
	return a, nil
}

func (a *Assignment) SubmissionsDir() string {
	return filepath.Join(a.Path, submissionsSubdir)
}

func (a *Assignment) ResultsDir() string {
	return filepath.Join(a.Path, resultsSubdir)
}

func (a *Assignment) Settings() config.Assignment {
	return a.course.AssignmentSettings(a.Name)
}

// Tag is the image reference of the assignment's grading image. Docker
// references must be lower case.
func (a *Assignment) Tag() string {
	return strings.ToLower(fmt.Sprintf("%s-%s-%s", a.course.CourseID, a.course.CourseName, a.Name))
}

// CurrentImageID resolves Tag to the id of the image built last.
func (a *Assignment) CurrentImageID(ctx context.Context) (string, error) {
	id, err := a.rt.InspectImage(ctx, a.Tag())
	if errors.Is(err, runtime.ErrNoSuchImage) {
		return "", fmt.Errorf("%w: %s", container.ErrImageNotBuilt, a.Tag())
	}
	if err != nil {
		return "", fmt.Errorf("failed to inspect image %s: %w", a.Tag(), err)
	}
	return id, nil
}

// Submissions loads every stored submission. Files that are not
// submissions are logged and skipped.
func (a *Assignment) Submissions() ([]*subm.Submission, error) {
	entries, err := os.ReadDir(a.SubmissionsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions of %s: %w", a.Name, err)
	}
	var res []*subm.Submission
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		s, err := subm.Open(a.Name, filepath.Join(a.SubmissionsDir(), e.Name()))
		if err != nil {
			a.logger.Warn("skipping file in submissions directory", "file", e.Name(), "error", err)
			continue
		}
		res = append(res, s)
	}
	return res, nil
}

// SubmissionsByStudent groups submissions by student id, each group
// ordered by import time.
func (a *Assignment) SubmissionsByStudent() (map[string][]*subm.Submission, error) {
	all, err := a.Submissions()
	if err != nil {
		return nil, err
	}

	imported := make(map[*subm.Submission]time.Time, len(all))
	for _, s := range all {
		t, err := s.ImportTime()
		if err != nil {
			return nil, err
		}
		imported[s] = t
	}

	res := make(map[string][]*subm.Submission)
	for _, s := range all {
		res[s.StudentID] = append(res[s.StudentID], s)
	}
	for _, group := range res {
		sort.SliceStable(group, func(i, j int) bool {
			ti, tj := imported[group[i]], imported[group[j]]
			if ti.Equal(tj) {
				return group[i].UUID < group[j].UUID
			}
			return ti.Before(tj)
		})
	}
	return res, nil
}
