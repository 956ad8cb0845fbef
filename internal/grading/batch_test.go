package grading_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/programme-lv/grader/internal/config"
	"github.com/programme-lv/grader/internal/gatherer/mocks"
	"github.com/programme-lv/grader/internal/grading"
	"github.com/programme-lv/grader/internal/runtime"
	"github.com/programme-lv/grader/internal/runtime/runtimetest"
	"github.com/programme-lv/grader/internal/subm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestGradeBatchBoundedAndSerialized(t *testing.T) {
	f := newFixture(t, config.Assignment{})
	var running, peak atomic.Int32
	f.rt.OnExec = func(c *runtimetest.Container, spec runtime.ExecSpec) (string, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return strings.Repeat(c.Labels[subm.LabelSubmissionUUID]+"\n", 40), nil
	}
	o := f.orchestrator(t, grading.Config{})

	byStudent := map[string][]*subm.Submission{}
	for _, sid := range []string{"jtd111", "fmm000", "pb999"} {
		for i := 0; i < 2; i++ {
			byStudent[sid] = append(byStudent[sid], f.submission(t, sid))
		}
	}

	report := o.GradeBatch(context.Background(), byStudent, 2, grading.Options{})
	require.Len(t, report.Graded, 6)
	require.Empty(t, report.Failed)
	require.LessOrEqual(t, peak.Load(), int32(2))
	require.Len(t, f.results(t), 6)
	for _, sid := range []string{"jtd111", "fmm000", "pb999"} {
		require.Contains(t, f.results(t), sid+".01.yml")
		require.Contains(t, f.results(t), sid+".02.yml")
	}

	// every printed block is contiguous
	blocks := strings.Split(strings.TrimPrefix(f.out.String(), "==> "), "==> ")
	require.Len(t, blocks, 6)
	for _, b := range blocks {
		lines := strings.Split(strings.TrimSuffix(b, "\n"), "\n")
		id, err := subm.Parse(strings.TrimSuffix(lines[0], " <=="))
		require.NoError(t, err)
		require.Len(t, lines, 41)
		for _, l := range lines[1:] {
			require.Equal(t, id.UUID, l)
		}
	}
}

func TestGradeBatchIsolatesFailures(t *testing.T) {
	f := newFixture(t, config.Assignment{})
	f.rt.OnExec = func(c *runtimetest.Container, spec runtime.ExecSpec) (string, error) {
		if c.Labels[subm.LabelUserID] == "fmm000" {
			return "", &runtime.Error{Op: "exec", Msg: "OCI runtime exec failed"}
		}
		if c.Labels[subm.LabelUserID] == "pb999" {
			panic("broken runtime")
		}
		return "ok: true\n", nil
	}

	ctrl := gomock.NewController(t)
	gath := mocks.NewMockGatherer(ctrl)
	gath.EXPECT().StartBatch("hw1", 3, 2).Times(1)
	gath.EXPECT().StartGrade(gomock.Any()).Times(3)
	gath.EXPECT().FinishGrade(gomock.Any(), gomock.Any(), "ok: true\n", false).Times(1)
	gath.EXPECT().FailGrade(gomock.Any(), gomock.Any()).Times(2)
	gath.EXPECT().FinishBatch(1, 2).Times(1)

	o := f.orchestrator(t, grading.Config{Gatherer: gath})
	byStudent := map[string][]*subm.Submission{
		"jtd111": {f.submission(t, "jtd111")},
		"fmm000": {f.submission(t, "fmm000")},
		"pb999":  {f.submission(t, "pb999")},
	}

	report := o.GradeBatch(context.Background(), byStudent, 2, grading.Options{SuppressOutput: true})
	require.Len(t, report.Graded, 1)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, "fmm000", report.Failed[0].Submission.StudentID)
	assert.ErrorContains(t, report.Failed[0].Err, "OCI runtime exec failed")
	assert.Equal(t, "pb999", report.Failed[1].Submission.StudentID)
	assert.ErrorContains(t, report.Failed[1].Err, "panicked")
	assert.Equal(t, []string{"jtd111.01.yml"}, f.results(t))
}

func TestGradeBatchDefaultsToOneWorker(t *testing.T) {
	f := newFixture(t, config.Assignment{})
	var running, peak atomic.Int32
	f.rt.OnExec = func(c *runtimetest.Container, spec runtime.ExecSpec) (string, error) {
		n := running.Add(1)
		defer running.Add(-1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		return "", nil
	}
	o := f.orchestrator(t, grading.Config{})
	s := f.submission(t, "jtd111")
	byStudent := map[string][]*subm.Submission{
		"jtd111": {s, s},
		"fmm000": {f.submission(t, "fmm000")},
	}

	report := o.GradeBatch(context.Background(), byStudent, 0, grading.Options{SuppressOutput: true})
	require.Len(t, report.Graded, 2, "a submission listed twice is graded once")
	require.Equal(t, int32(1), peak.Load())
	require.Equal(t, "fmm000", report.Graded[0].Submission.StudentID)
}

func TestGradeBatchEmpty(t *testing.T) {
	f := newFixture(t, config.Assignment{})
	o := f.orchestrator(t, grading.Config{})
	report := o.GradeBatch(context.Background(), nil, 4, grading.Options{})
	require.Empty(t, report.Graded)
	require.Empty(t, report.Failed)
	require.Empty(t, f.results(t))
}
