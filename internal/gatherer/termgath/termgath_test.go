package termgath

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/programme-lv/grader/internal/console"
	"github.com/programme-lv/grader/internal/subm"
	"github.com/stretchr/testify/require"
)

func TestPrintsStatusLines(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	g := New(console.New(&buf))
	s := &subm.Submission{ID: subm.ID{StudentID: "jtd111", UUID: "u1"}, Assignment: "a1"}

	g.StartBatch("a1", 2, 1)
	g.StartGrade(s)
	g.FinishGrade(s, "/r/jtd111.01.yml", "", true)
	g.FailGrade(s, errors.New("boom"))
	g.FinishBatch(1, 1)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "== Grading 2 submission(s) of a1 with 1 worker(s) ==", lines[0])
	require.Equal(t, "-> jtd111--u1", lines[1])
	require.Equal(t, "<- jtd111--u1: /r/jtd111.01.yml (stale container)", lines[2])
	require.Equal(t, "<- jtd111--u1: boom", lines[3])
	require.True(t, strings.HasPrefix(lines[4], "== Graded 1, failed 1 in "))
}
