package respbuilder

import (
	"errors"
	"testing"

	"github.com/programme-lv/grader/internal/subm"
	"github.com/stretchr/testify/require"
)

func TestBuildsBatchResult(t *testing.T) {
	b := New("batch-1")
	jake := &subm.Submission{ID: subm.ID{StudentID: "jtd111", UUID: "u1"}, Assignment: "a1"}
	finn := &subm.Submission{ID: subm.ID{StudentID: "fmm000", UUID: "u2"}, Assignment: "a1"}

	b.StartBatch("a1", 2, 2)
	b.StartGrade(jake)
	b.StartGrade(finn)
	b.FinishGrade(jake, "/r/jtd111.01.log", "ok", false)
	b.FailGrade(finn, errors.New("duplicate containers"))

	res := b.Response()
	require.Nil(t, res.FinishedTime)
	b.FinishBatch(1, 1)
	res = b.Response()

	require.NotNil(t, res.FinishedTime)
	require.Equal(t, "batch-1", res.BatchUuid)
	require.Equal(t, "a1", res.Assignment)
	require.Equal(t, 1, res.Graded)
	require.Equal(t, 1, res.Failed)
	require.Len(t, res.Grades, 2)
	require.Equal(t, "fmm000", res.Grades[0].StudentID)
	require.Equal(t, "duplicate containers", *res.Grades[0].ErrorMessage)
	require.Equal(t, "/r/jtd111.01.log", res.Grades[1].ResultPath)
}
