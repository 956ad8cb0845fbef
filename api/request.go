package api

// GradeReq asks a serving grader to grade submissions of an assignment.
// An empty StudentID grades every student's submissions.
type GradeReq struct {
	Assignment string `json:"assignment"`
	StudentID  string `json:"student_id"`
	Rebuild    bool   `json:"rebuild"`
	Workers    int    `json:"workers"`
}
