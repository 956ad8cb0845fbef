package gatherer_test

import (
	"errors"
	"testing"

	"github.com/programme-lv/grader/internal/gatherer"
	"github.com/programme-lv/grader/internal/gatherer/mocks"
	"github.com/programme-lv/grader/internal/subm"
	"go.uber.org/mock/gomock"
)

func TestMultiForwardsInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockGatherer(ctrl)
	second := mocks.NewMockGatherer(ctrl)
	s := &subm.Submission{ID: subm.ID{StudentID: "jtd111", UUID: "u1"}, Assignment: "a1"}
	boom := errors.New("boom")

	gomock.InOrder(
		first.EXPECT().StartBatch("a1", 1, 1),
		second.EXPECT().StartBatch("a1", 1, 1),
		first.EXPECT().FailGrade(s, boom),
		second.EXPECT().FailGrade(s, boom),
	)
	first.EXPECT().StartGrade(s)
	second.EXPECT().StartGrade(s)
	first.EXPECT().FinishGrade(s, "p", "out", false)
	second.EXPECT().FinishGrade(s, "p", "out", false)
	first.EXPECT().FinishBatch(1, 1)
	second.EXPECT().FinishBatch(1, 1)

	g := gatherer.Multi(first, nil, second)
	g.StartBatch("a1", 1, 1)
	g.StartGrade(s)
	g.FinishGrade(s, "p", "out", false)
	g.FailGrade(s, boom)
	g.FinishBatch(1, 1)
}
