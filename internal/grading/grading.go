// Package grading runs the grade cycle of a submission inside its grading
// container and fans it out over a bounded worker pool.
package grading

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/programme-lv/grader/internal/assignment"
	"github.com/programme-lv/grader/internal/console"
	"github.com/programme-lv/grader/internal/container"
	"github.com/programme-lv/grader/internal/gatherer"
	"github.com/programme-lv/grader/internal/results"
	"github.com/programme-lv/grader/internal/runtime"
	"github.com/programme-lv/grader/internal/subm"
)

// benignSuffix marks an empty error line some grading images print on
// success. Such lines are dropped from the output.
const benignSuffix = `Error: ""`

// Options of a grading run.
type Options struct {
	// Rebuild recreates the grading container before grading.
	Rebuild bool
	// SuppressOutput keeps the grading output off the console. It is still
	// recorded.
	SuppressOutput bool
	// Timeout bounds the grading command. Zero falls back to the
	// assignment's exec_timeout.
	Timeout time.Duration
}

// Outcome of grading one submission.
type Outcome struct {
	Submission *subm.Submission
	ResultPath string
	Output     string
	Container  container.Resolution
}

type Config struct {
	Runtime runtime.Runtime
	// Gatherer receives progress events. Nil discards them.
	Gatherer gatherer.Gatherer
	// Console prints grading output. Nil prints to stdout.
	Console *console.Console
	Logger  *slog.Logger
}

type Orchestrator struct {
	assignment *assignment.Assignment
	rt         runtime.Runtime
	containers *container.Manager
	recorder   *results.Recorder
	gatherer   gatherer.Gatherer
	con        *console.Console
	logger     *slog.Logger

	gradeCmd []string
	execUser string
	timeout  time.Duration
}

func New(a *assignment.Assignment, cfg Config) (*Orchestrator, error) {
	if cfg.Runtime == nil {
		return nil, errors.New("grading needs a container runtime")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("assignment", a.Name)
	g := cfg.Gatherer
	if g == nil {
		g = gatherer.Nop{}
	}
	con := cfg.Console
	if con == nil {
		con = console.New(nil)
	}

	settings := a.Settings()
	cmd, err := shlex.Split(settings.GradeCommand)
	if err != nil {
		return nil, fmt.Errorf("failed to parse grade command %q: %w", settings.GradeCommand, err)
	}
	if len(cmd) == 0 {
		return nil, fmt.Errorf("assignment %s has an empty grade command", a.Name)
	}
	timeout, err := settings.Timeout()
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		assignment: a,
		rt:         cfg.Runtime,
		containers: container.NewManager(cfg.Runtime, logger),
		recorder:   results.NewRecorder(a.ResultsDir(), logger),
		gatherer:   g,
		con:        con,
		logger:     logger,
		gradeCmd:   cmd,
		execUser:   settings.ExecUser,
		timeout:    timeout,
	}, nil
}

// Recorder gives access to the assignment's stored results.
func (o *Orchestrator) Recorder() *results.Recorder {
	return o.recorder
}

// Containers gives access to the lifecycle manager used for grading.
func (o *Orchestrator) Containers() *container.Manager {
	return o.containers
}

// Grade runs the full grade cycle for s. Nothing is recorded unless every
// step up to recording succeeds. The container is stopped whatever the
// outcome.
func (o *Orchestrator) Grade(ctx context.Context, s *subm.Submission, opts Options) (Outcome, error) {
	o.gatherer.StartGrade(s)
	out, err := o.grade(ctx, s, opts)
	if err != nil {
		o.gatherer.FailGrade(s, err)
		return Outcome{}, err
	}
	o.gatherer.FinishGrade(s, out.ResultPath, out.Output, out.Container.Stale)
	return out, nil
}

func (o *Orchestrator) grade(ctx context.Context, s *subm.Submission, opts Options) (Outcome, error) {
	logger := o.logger.With("student", s.StudentID, "submission", s.UUID)
	logger.Info("grading submission")

	res, err := o.containers.Resolve(ctx, s, o.assignment, opts.Rebuild)
	if err != nil {
		return Outcome{}, err
	}
	id := res.ContainerID

	if err := o.rt.StartContainer(ctx, id); err != nil {
		return Outcome{}, fmt.Errorf("failed to start container for %s: %w", s.ID, err)
	}
	defer func() {
		// stop even when ctx is already done
		if err := o.rt.StopContainer(context.WithoutCancel(ctx), id); err != nil {
			logger.Error("failed to stop container", "container", id, "error", err)
		}
	}()

	dir, err := o.upload(ctx, id, s, logger)
	if err != nil {
		return Outcome{}, err
	}

	output, err := o.run(ctx, id, dir, opts, logger)
	if err != nil {
		return Outcome{}, err
	}

	path, err := o.recorder.Record(s.StudentID, output)
	if err != nil {
		return Outcome{}, err
	}

	if !opts.SuppressOutput {
		o.con.Block(s.ID.String(), output)
	}
	return Outcome{Submission: s, ResultPath: path, Output: output, Container: res}, nil
}

// upload extracts the submission archive into a fresh temporary directory
// of the container and makes it readable for the grading user.
func (o *Orchestrator) upload(ctx context.Context, containerID string, s *subm.Submission, logger *slog.Logger) (string, error) {
	out, err := o.execOutput(ctx, containerID, runtime.ExecSpec{Cmd: []string{"mktemp", "-d"}, User: o.execUser})
	if err != nil {
		return "", fmt.Errorf("failed to create temporary directory in container: %w", err)
	}
	dir := strings.TrimSpace(out)
	if dir == "" {
		return "", errors.New("mktemp printed no directory")
	}
	logger.Debug("adding submission files", "dir", dir, "archive", s.Path)

	f, err := os.Open(s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open submission archive: %w", err)
	}
	defer f.Close()
	if err := o.rt.PutArchive(ctx, containerID, dir, f); err != nil {
		return "", fmt.Errorf("failed to upload submission %s: %w", s.ID, err)
	}

	out, err = o.execOutput(ctx, containerID, runtime.ExecSpec{
		Cmd:  []string{"chmod", "--recursive", "+rX", dir},
		User: "root",
	})
	if err != nil {
		return "", fmt.Errorf("failed to grant access to submission files: %w", err)
	}
	if out != "" {
		logger.Debug("chmod says", "output", out)
	}
	return dir, nil
}

// run executes the grade command against dir. A non-zero exit status of
// the command is part of the grading outcome, not a failure.
func (o *Orchestrator) run(ctx context.Context, containerID string, dir string, opts Options, logger *slog.Logger) (string, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = o.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := make([]string, 0, len(o.gradeCmd)+1)
	cmd = append(cmd, o.gradeCmd...)
	cmd = append(cmd, dir)

	rc, err := o.rt.Exec(ctx, containerID, runtime.ExecSpec{Cmd: cmd, User: o.execUser})
	if err != nil {
		return "", fmt.Errorf("failed to run grade command: %w", err)
	}
	output, readErr := FilterOutput(rc)
	err = rc.Close()

	var exitErr *runtime.ExitError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "", fmt.Errorf("grade command timed out after %s", timeout)
	case errors.As(err, &exitErr):
		logger.Warn("grade command exited with non-zero status", "code", exitErr.Code)
	case err != nil:
		return "", fmt.Errorf("grade command failed: %w", err)
	}
	if readErr != nil {
		return "", fmt.Errorf("failed to read grading output: %w", readErr)
	}
	return output, nil
}

func (o *Orchestrator) execOutput(ctx context.Context, containerID string, spec runtime.ExecSpec) (string, error) {
	rc, err := o.rt.Exec(ctx, containerID, spec)
	if err != nil {
		return "", err
	}
	b, readErr := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		return "", err
	}
	if readErr != nil {
		return "", readErr
	}
	return string(b), nil
}

// FilterOutput reads r to the end and drops every line ending in the
// benign empty-error marker. Kept lines end with a newline.
func FilterOutput(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	var sb strings.Builder
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\n")
			if !strings.HasSuffix(line, benignSuffix) {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
	}
}
