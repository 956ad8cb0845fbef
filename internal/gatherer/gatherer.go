// Package gatherer defines the sink for grading progress events.
package gatherer

import (
	"github.com/programme-lv/grader/api"
	"github.com/programme-lv/grader/internal/subm"
)

//go:generate mockgen -destination=mocks/gatherer.go -package=mocks . Gatherer

// Gatherer receives grading events. Grade events of a batch arrive from
// concurrent tasks, so implementations must be safe for concurrent use.
type Gatherer interface {
	StartBatch(assignment string, submissions int, workers int)

	StartGrade(s *subm.Submission)
	FinishGrade(s *subm.Submission, resultPath string, output string, stale bool)
	FailGrade(s *subm.Submission, err error)

	FinishBatch(graded int, failed int)
}

// Submission maps s to its wire form.
func Submission(s *subm.Submission) api.Submission {
	return api.Submission{
		Assignment: s.Assignment,
		StudentID:  s.StudentID,
		Uuid:       s.UUID,
	}
}

type multi []Gatherer

// Multi forwards every event to each of gs in order.
func Multi(gs ...Gatherer) Gatherer {
	var m multi
	for _, g := range gs {
		if g != nil {
			m = append(m, g)
		}
	}
	return m
}

func (m multi) StartBatch(assignment string, submissions int, workers int) {
	for _, g := range m {
		g.StartBatch(assignment, submissions, workers)
	}
}

func (m multi) StartGrade(s *subm.Submission) {
	for _, g := range m {
		g.StartGrade(s)
	}
}

func (m multi) FinishGrade(s *subm.Submission, resultPath string, output string, stale bool) {
	for _, g := range m {
		g.FinishGrade(s, resultPath, output, stale)
	}
}

func (m multi) FailGrade(s *subm.Submission, err error) {
	for _, g := range m {
		g.FailGrade(s, err)
	}
}

func (m multi) FinishBatch(graded int, failed int) {
	for _, g := range m {
		g.FinishBatch(graded, failed)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) StartBatch(string, int, int)                        {}
func (Nop) StartGrade(*subm.Submission)                        {}
func (Nop) FinishGrade(*subm.Submission, string, string, bool) {}
func (Nop) FailGrade(*subm.Submission, error)                  {}
func (Nop) FinishBatch(int, int)                               {}
