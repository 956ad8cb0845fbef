package grading

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/programme-lv/grader/internal/subm"
	"golang.org/x/sync/errgroup"
)

// SubmissionFailure is a submission the batch could not grade.
type SubmissionFailure struct {
	Submission *subm.Submission
	Err        error
}

// BatchReport lists graded and failed submissions ordered by student id,
// then by submission order within the student.
type BatchReport struct {
	Graded []Outcome
	Failed []SubmissionFailure
}

// GradeBatch grades every submission in byStudent on at most workers
// concurrent tasks. Task failures are logged and reported; they never
// cancel sibling tasks. Completion order between tasks is unspecified.
func (o *Orchestrator) GradeBatch(ctx context.Context, byStudent map[string][]*subm.Submission, workers int, opts Options) BatchReport {
	if workers < 1 {
		workers = 1
	}
	tasks := o.schedule(byStudent)
	o.gatherer.StartBatch(o.assignment.Name, len(tasks), workers)

	var (
		mu     sync.Mutex
		graded = make(map[*subm.Submission]Outcome)
		failed = make(map[*subm.Submission]error)
		g      errgroup.Group
	)
	g.SetLimit(workers)
	for _, s := range tasks {
		g.Go(func() error {
			out, err := o.gradeTask(ctx, s, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.Error("failed to grade submission",
					"student", s.StudentID, "submission", s.UUID, "error", err)
				failed[s] = err
				return nil
			}
			graded[s] = out
			return nil
		})
	}
	_ = g.Wait()

	var report BatchReport
	for _, s := range tasks {
		if out, ok := graded[s]; ok {
			report.Graded = append(report.Graded, out)
		} else if err, ok := failed[s]; ok {
			report.Failed = append(report.Failed, SubmissionFailure{Submission: s, Err: err})
		}
	}
	o.gatherer.FinishBatch(len(report.Graded), len(report.Failed))
	if len(report.Failed) > 0 {
		o.logger.Warn("some submissions were not graded", "graded", len(report.Graded), "failed", len(report.Failed))
	}
	return report
}

// gradeTask is the task boundary: a panic in one task becomes its error.
func (o *Orchestrator) gradeTask(ctx context.Context, s *subm.Submission, opts Options) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("grading %s panicked: %v", s.ID, r)
			o.gatherer.FailGrade(s, err)
		}
	}()
	return o.Grade(ctx, s, opts)
}

// schedule flattens byStudent ordered by student id. A submission listed
// twice is graded once, so no two tasks ever share a container.
func (o *Orchestrator) schedule(byStudent map[string][]*subm.Submission) []*subm.Submission {
	students := make([]string, 0, len(byStudent))
	for sid := range byStudent {
		students = append(students, sid)
	}
	sort.Strings(students)

	seen := make(map[string]bool)
	var tasks []*subm.Submission
	for _, sid := range students {
		for _, s := range byStudent[sid] {
			if s == nil {
				continue
			}
			if seen[s.UUID] {
				o.logger.Warn("submission listed twice, grading it once", "student", s.StudentID, "submission", s.UUID)
				continue
			}
			seen[s.UUID] = true
			tasks = append(tasks, s)
		}
	}
	return tasks
}
