// Package config loads the course-wide grader configuration and the
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/grader/internal/roster"
)

// FileName is the name of the course configuration file in the grader home.
const FileName = "grader.toml"

// DefaultGradeCommand is run inside the grading container when an
// assignment does not configure its own.
const DefaultGradeCommand = "grade-it"

var courseNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// assignmentNameRe keeps assignment names usable both as a directory name
// and as the last component of a Docker image reference.
var assignmentNameRe = regexp.MustCompile(`^[A-Za-z0-9]+(?:[_.-][A-Za-z0-9]+)*$`)

// ValidName checks an assignment name.
func ValidName(name string) error {
	if !assignmentNameRe.MatchString(name) {
		return fmt.Errorf("bad assignment name %q, must match %s", name, assignmentNameRe)
	}
	return nil
}

type Course struct {
	CourseID    string                `toml:"course_id"`
	CourseName  string                `toml:"course_name"`
	Roster      []roster.Student      `toml:"roster"`
	Assignments map[string]Assignment `toml:"assignments"`
}

// Assignment holds per-assignment grading settings.
type Assignment struct {
	GradeCommand string `toml:"grade_command,omitempty"`
	ExecUser     string `toml:"exec_user,omitempty"`
	ExecTimeout  string `toml:"exec_timeout,omitempty"`
}

// Timeout parses ExecTimeout. An empty value means no timeout.
func (a Assignment) Timeout() (time.Duration, error) {
	if strings.TrimSpace(a.ExecTimeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.ExecTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid exec_timeout %q: %w", a.ExecTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative exec_timeout %q", a.ExecTimeout)
	}
	return d, nil
}

// LoadCourse reads and validates grader.toml from the grader home.
func LoadCourse(home string) (*Course, error) {
	path := filepath.Join(home, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read course config: %w", err)
	}
	var c Course
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s is invalid: %w", path, err)
	}
	return &c, nil
}

// WriteCourse validates c and stores it as grader.toml in home.
func WriteCourse(home string, c *Course) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode course config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(home, FileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write course config: %w", err)
	}
	return nil
}

func (c *Course) Validate() error {
	if !courseNameRe.MatchString(c.CourseID) {
		return fmt.Errorf("bad course_id %q, must match %s", c.CourseID, courseNameRe)
	}
	if !courseNameRe.MatchString(c.CourseName) {
		return fmt.Errorf("bad course_name %q, must match %s", c.CourseName, courseNameRe)
	}
	if _, err := roster.New(c.Roster); err != nil {
		return err
	}
	for name, a := range c.Assignments {
		if err := ValidName(name); err != nil {
			return err
		}
		if _, err := a.Timeout(); err != nil {
			return fmt.Errorf("assignment %s: %w", name, err)
		}
	}
	return nil
}

// StudentRoster builds the roster collaborator from the configured students.
func (c *Course) StudentRoster() (*roster.Roster, error) {
	return roster.New(c.Roster)
}

// AssignmentSettings returns the settings for the named assignment with
// defaults filled in.
func (c *Course) AssignmentSettings(name string) Assignment {
	a := c.Assignments[name]
	if strings.TrimSpace(a.GradeCommand) == "" {
		a.GradeCommand = DefaultGradeCommand
	}
	return a
}
