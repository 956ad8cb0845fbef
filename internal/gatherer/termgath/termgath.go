package termgath

import (
	"time"

	"github.com/programme-lv/grader/internal/console"
	"github.com/programme-lv/grader/internal/subm"
)

// TerminalGatherer prints one status line per event. It shares the
// console with the grading output so lines never split an output block.
type TerminalGatherer struct {
	StartedAt time.Time
	con       *console.Console
}

func New(con *console.Console) *TerminalGatherer {
	return &TerminalGatherer{StartedAt: time.Now(), con: con}
}

func (t *TerminalGatherer) StartBatch(assignment string, submissions int, workers int) {
	t.StartedAt = time.Now()
	t.con.Line("== Grading %d submission(s) of %s with %d worker(s) ==", submissions, assignment, workers)
}

func (t *TerminalGatherer) StartGrade(s *subm.Submission) {
	t.con.Line("-> %s", s.ID)
}

func (t *TerminalGatherer) FinishGrade(s *subm.Submission, resultPath string, output string, stale bool) {
	if stale {
		t.con.Okf("<- %s: %s (stale container)", s.ID, resultPath)
		return
	}
	t.con.Okf("<- %s: %s", s.ID, resultPath)
}

func (t *TerminalGatherer) FailGrade(s *subm.Submission, err error) {
	t.con.Failf("<- %s: %v", s.ID, err)
}

func (t *TerminalGatherer) FinishBatch(graded int, failed int) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	if failed > 0 {
		t.con.Failf("== Graded %d, failed %d in %s ==", graded, failed, dur)
		return
	}
	t.con.Line("== Graded %d in %s ==", graded, dur)
}
