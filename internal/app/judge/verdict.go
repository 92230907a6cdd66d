package judge

import (
	"errors"

	"codecourt/internal/domain/model"
)

// ErrNoResults guards Resolve against an empty result set. A problem always
// has at least one test case; zero-case problems are rejected at creation.
var ErrNoResults = errors.New("cannot resolve a verdict from zero results")

// Verdict is the single terminal classification of a submission, plus the
// worst-case resource metrics and one representative failing case for
// user-facing diagnostics.
type Verdict struct {
	Status    model.Status
	RuntimeMs *int
	MemoryKb  *int
	// FailingCase is the lowest-index result in the winning failure
	// category, nil when accepted.
	FailingCase *TestCaseResult
}

// verdictPrecedence orders failure categories: a compile failure dominates
// because it invalidates every case; runtime and timeout errors are reported
// before mere output mismatches because they usually indicate a more
// fundamental defect.
var verdictPrecedence = []model.Status{
	model.StatusCompilationError,
	model.StatusRuntimeError,
	model.StatusTimeLimitExceeded,
	model.StatusWrongAnswer,
}

// Resolve reduces an ordered set of per-case results into one final status.
// The first precedence rule matching any result wins; accepted requires
// every case (visible and hidden) to have passed.
func Resolve(results []TestCaseResult) (Verdict, error) {
	if len(results) == 0 {
		return Verdict{}, ErrNoResults
	}

	v := Verdict{Status: model.StatusAccepted}
	v.RuntimeMs, v.MemoryKb = maxMetrics(results)

	for _, status := range verdictPrecedence {
		for i := range results {
			if results[i].Status == status {
				v.Status = status
				v.FailingCase = &results[i]
				return v, nil
			}
		}
	}
	return v, nil
}

// maxMetrics takes the worst-case cost over completed cases: the submission
// is charged the max runtime and max memory of any case that ran to
// completion, or nil when none did.
func maxMetrics(results []TestCaseResult) (*int, *int) {
	var runtime, memory *int
	for _, res := range results {
		if res.Status != model.StatusAccepted && res.Status != model.StatusWrongAnswer {
			continue
		}
		if res.TimeMs != nil && (runtime == nil || *res.TimeMs > *runtime) {
			t := *res.TimeMs
			runtime = &t
		}
		if res.MemKb != nil && (memory == nil || *res.MemKb > *memory) {
			m := *res.MemKb
			memory = &m
		}
	}
	return runtime, memory
}
