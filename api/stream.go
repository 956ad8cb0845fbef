package api

import "time"

// MsgType is a message type for streamed grading events
type MsgType string

const (
	StartBatchMsg  MsgType = "batch_start"
	StartGradeMsg  MsgType = "grade_start"
	FinishGradeMsg MsgType = "grade_finish"
	FailGradeMsg   MsgType = "grade_fail"
	FinishBatchMsg MsgType = "batch_finish"
)

// Output size constraints for streaming
const (
	MaxOutputHeight = 40
	MaxOutputWidth  = 80
)

// Header is the common header for all streamed messages
type Header struct {
	BatchUuid string  `json:"batch_uuid"`
	MsgType   MsgType `json:"msg_type"`
}

// Submission identifies the graded submission in an event
type Submission struct {
	Assignment string `json:"assignment"`
	StudentID  string `json:"student_id"`
	Uuid       string `json:"submission_uuid"`
}

// StartBatch message sent before any submission of a batch is graded
type StartBatch struct {
	Header
	Assignment  string `json:"assignment"`
	Submissions int    `json:"submissions"`
	Workers     int    `json:"workers"`
	StartedTime string `json:"started_time"`
}

type StartGrade struct {
	Header
	Submission
}

// FinishGrade message sent after the result has been recorded
type FinishGrade struct {
	Header
	Submission
	ResultPath string `json:"result_path"`
	Output     string `json:"output"`
	Stale      bool   `json:"stale"`
}

type FailGrade struct {
	Header
	Submission
	ErrorMessage string `json:"error_message"`
}

// FinishBatch message sent once every task of the batch has completed
type FinishBatch struct {
	Header
	Graded int   `json:"graded"`
	Failed int   `json:"failed"`
	WallMs int64 `json:"wall_ms"`
}

func NewHeader(batchUuid string, msgType MsgType) Header {
	return Header{
		BatchUuid: batchUuid,
		MsgType:   msgType,
	}
}

func NewStartBatch(batchUuid, assignment string, submissions, workers int) StartBatch {
	return StartBatch{
		Header:      NewHeader(batchUuid, StartBatchMsg),
		Assignment:  assignment,
		Submissions: submissions,
		Workers:     workers,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewStartGrade(batchUuid string, subm Submission) StartGrade {
	return StartGrade{
		Header:     NewHeader(batchUuid, StartGradeMsg),
		Submission: subm,
	}
}

// NewFinishGrade trims output to MaxOutputHeight lines of MaxOutputWidth.
func NewFinishGrade(batchUuid string, subm Submission, resultPath, output string, stale bool) FinishGrade {
	return FinishGrade{
		Header:     NewHeader(batchUuid, FinishGradeMsg),
		Submission: subm,
		ResultPath: resultPath,
		Output:     TrimToRect(output, MaxOutputHeight, MaxOutputWidth),
		Stale:      stale,
	}
}

func NewFailGrade(batchUuid string, subm Submission, errorMessage string) FailGrade {
	return FailGrade{
		Header:       NewHeader(batchUuid, FailGradeMsg),
		Submission:   subm,
		ErrorMessage: errorMessage,
	}
}

func NewFinishBatch(batchUuid string, graded, failed int, wall time.Duration) FinishBatch {
	return FinishBatch{
		Header: NewHeader(batchUuid, FinishBatchMsg),
		Graded: graded,
		Failed: failed,
		WallMs: wall.Milliseconds(),
	}
}
