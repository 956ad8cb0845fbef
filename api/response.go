package api

// Non-streaming summary of a grading batch

// GradeResult is the outcome of grading one submission
type GradeResult struct {
	Submission

	ResultPath string `json:"result_path,omitempty"`
	Stale      bool   `json:"stale,omitempty"`

	// Error message if grading failed
	ErrorMessage *string `json:"error_message,omitempty"`
}

// BatchResult is the complete response to a GradeReq
type BatchResult struct {
	BatchUuid  string `json:"batch_uuid"`
	Assignment string `json:"assignment"`
	Workers    int    `json:"workers"`

	StartedTime  string  `json:"started_time"`
	FinishedTime *string `json:"finished_time,omitempty"`

	// Error message if the request could not be served at all
	ErrorMessage *string `json:"error_message,omitempty"`

	Grades []GradeResult `json:"grades"`
	Graded int           `json:"graded"`
	Failed int           `json:"failed"`
}
