package model

import "time"

// EvaluationJob is the payload pushed onto the execution queue when a
// submission is created. Test cases are frozen into the job at enqueue time
// so that later edits to the problem cannot affect an in-flight evaluation.
type EvaluationJob struct {
	SubmissionID  string     `json:"submission_id"`
	UserID        string     `json:"user_id"`
	ProblemID     string     `json:"problem_id"`
	Language      Language   `json:"language"`
	Code          string     `json:"code"`
	TimeLimitMs   int        `json:"time_limit_ms"`
	MemoryLimitKb int        `json:"memory_limit_kb"`
	TestCases     []TestCase `json:"test_cases"`
	SubmittedAt   time.Time  `json:"submitted_at"`
}
