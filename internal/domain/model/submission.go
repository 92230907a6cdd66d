package model

import "time"

// Status is the closed set of states a submission moves through.
// Transitions are forward-only: Pending -> Processing -> one terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"

	StatusAccepted          Status = "accepted"
	StatusWrongAnswer       Status = "wrong_answer"
	StatusTimeLimitExceeded Status = "time_limit_exceeded"
	StatusRuntimeError      Status = "runtime_error"
	StatusCompilationError  Status = "compilation_error"
)

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusWrongAnswer, StatusTimeLimitExceeded,
		StatusRuntimeError, StatusCompilationError:
		return true
	case StatusPending, StatusProcessing:
		return false
	}
	return false
}

// Valid reports whether s is one of the defined states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusAccepted, StatusWrongAnswer,
		StatusTimeLimitExceeded, StatusRuntimeError, StatusCompilationError:
		return true
	}
	return false
}

// CanTransitionTo enforces the forward-only state machine.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next.IsTerminal()
	}
	return false
}

type Submission struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProblemID   string    `json:"problem_id"`
	Language    Language  `json:"language"`
	Code        string    `json:"code,omitempty"`
	Status      Status    `json:"status"`
	RuntimeMs   *int      `json:"runtime_ms,omitempty"`
	MemoryKb    *int      `json:"memory_kb,omitempty"`
	Diagnostic  *string   `json:"diagnostic,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TerminalEvent is emitted by the pipeline once a submission reaches a
// terminal state. Consumed by the leaderboard projector and any notifier.
type TerminalEvent struct {
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	ProblemID    string    `json:"problem_id"`
	Status       Status    `json:"status"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
