package respbuilder

import (
	"sort"
	"sync"
	"time"

	"github.com/programme-lv/grader/api"
	"github.com/programme-lv/grader/internal/gatherer"
	"github.com/programme-lv/grader/internal/subm"
)

// Builder gathers grading events and builds a complete api.BatchResult.
type Builder struct {
	mu sync.Mutex

	batchUuid  string
	assignment string
	workers    int

	started  time.Time
	finished *time.Time

	grades []api.GradeResult
}

var _ gatherer.Gatherer = (*Builder)(nil)

func New(batchUuid string) *Builder {
	return &Builder{
		batchUuid: batchUuid,
		started:   time.Now(),
	}
}

// StartBatch implements gatherer.Gatherer.
func (b *Builder) StartBatch(assignment string, submissions int, workers int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assignment = assignment
	b.workers = workers
	b.started = time.Now()
	b.grades = make([]api.GradeResult, 0, submissions)
}

// StartGrade implements gatherer.Gatherer.
func (b *Builder) StartGrade(s *subm.Submission) {}

// FinishGrade implements gatherer.Gatherer.
func (b *Builder) FinishGrade(s *subm.Submission, resultPath string, output string, stale bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.grades = append(b.grades, api.GradeResult{
		Submission: gatherer.Submission(s),
		ResultPath: resultPath,
		Stale:      stale,
	})
}

// FailGrade implements gatherer.Gatherer.
func (b *Builder) FailGrade(s *subm.Submission, err error) {
	msg := err.Error()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.grades = append(b.grades, api.GradeResult{
		Submission:   gatherer.Submission(s),
		ErrorMessage: &msg,
	})
}

// FinishBatch implements gatherer.Gatherer.
func (b *Builder) FinishBatch(graded int, failed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.finished = &now
}

// Response builds the api.BatchResult from gathered data. Grades are
// ordered by student id and submission uuid, not by completion.
func (b *Builder) Response() api.BatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	grades := make([]api.GradeResult, len(b.grades))
	copy(grades, b.grades)
	sort.Slice(grades, func(i, j int) bool {
		if grades[i].StudentID != grades[j].StudentID {
			return grades[i].StudentID < grades[j].StudentID
		}
		return grades[i].Uuid < grades[j].Uuid
	})

	res := api.BatchResult{
		BatchUuid:   b.batchUuid,
		Assignment:  b.assignment,
		Workers:     b.workers,
		StartedTime: b.started.Format(time.RFC3339),
		Grades:      grades,
	}
	if b.finished != nil {
		v := b.finished.Format(time.RFC3339)
		res.FinishedTime = &v
	}
	for _, g := range grades {
		if g.ErrorMessage != nil {
			res.Failed++
		} else {
			res.Graded++
		}
	}
	return res
}
