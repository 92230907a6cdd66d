package engine

// OutcomeKind is the closed classification of a single engine invocation.
// Every status code the engine can return maps to exactly one kind; codes we
// do not recognize are treated as the engine being unavailable rather than
// silently completed.
type OutcomeKind int

const (
	// OutcomeCompleted means the program compiled and ran to completion.
	// Whether its output is correct is decided by the caller, never by the
	// engine's own judgment.
	OutcomeCompleted OutcomeKind = iota
	OutcomeCompileError
	OutcomeRuntimeError
	OutcomeTimedOut
	OutcomeUnavailable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCompileError:
		return "compile_error"
	case OutcomeRuntimeError:
		return "runtime_error"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Outcome is the result of one engine invocation for one test case.
type Outcome struct {
	Kind    OutcomeKind
	Stdout  string
	Message string // compile output or runtime stderr, when present
	TimeMs  *int
	MemKb   *int
}

// Limits carries the per-case resource limits handed to the engine.
type Limits struct {
	TimeLimitMs   int
	MemoryLimitKb int
}

// engine status ids, per its published status table
const (
	statusInQueue           = 1
	statusProcessing        = 2
	statusAcceptedByEngine  = 3
	statusWrongByEngine     = 4
	statusTimeLimitExceeded = 5
	statusCompilationError  = 6
	statusRuntimeSIGSEGV    = 7
	statusRuntimeSIGXFSZ    = 8
	statusRuntimeSIGFPE     = 9
	statusRuntimeSIGABRT    = 10
	statusRuntimeNZEC       = 11
	statusRuntimeOther      = 12
	statusInternalError     = 13
	statusExecFormatError   = 14
)

// classifyStatus maps the engine's numeric status vocabulary onto the closed
// OutcomeKind set. Codes 3 and 4 both classify as completed: the pipeline
// re-diffs stdout against the expected output itself so it can apply its own
// normalization rules. Unmapped codes classify as unavailable, fail-safe.
func classifyStatus(id int) (OutcomeKind, bool) {
	switch id {
	case statusInQueue, statusProcessing:
		return 0, false // still in flight, keep polling
	case statusAcceptedByEngine, statusWrongByEngine:
		return OutcomeCompleted, true
	case statusTimeLimitExceeded:
		return OutcomeTimedOut, true
	case statusCompilationError:
		return OutcomeCompileError, true
	case statusRuntimeSIGSEGV, statusRuntimeSIGXFSZ, statusRuntimeSIGFPE,
		statusRuntimeSIGABRT, statusRuntimeNZEC, statusRuntimeOther:
		return OutcomeRuntimeError, true
	case statusInternalError, statusExecFormatError:
		return OutcomeUnavailable, true
	}
	return OutcomeUnavailable, true
}
