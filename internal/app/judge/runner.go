package judge

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"codecourt/internal/domain/model"
	"codecourt/internal/engine"
)

// Executor is the engine-side contract the runner drives, one call per test
// case. Satisfied by engine.Client; tests substitute stubs.
type Executor interface {
	Execute(ctx context.Context, lang model.Language, source, stdin string, limits engine.Limits) engine.Outcome
}

// TestCaseResult is the ephemeral per-case record handed to the verdict
// resolver. It is not persisted standalone; at most one representative
// failing case survives as a submission diagnostic.
type TestCaseResult struct {
	Index         int
	TestCaseID    string
	Hidden        bool
	Status        model.Status
	Stdout        string
	Stderr        string
	CompileOutput string
	TimeMs        *int
	MemKb         *int
}

var errEngineUnavailable = errors.New("execution engine unavailable")

// Runner evaluates all of a submission's test cases sequentially, in stored
// order. It never parallelizes within a submission: the engine's per-account
// rate limits make per-case fan-out counterproductive.
type Runner struct {
	exec          Executor
	maxRetries    int
	retryInterval time.Duration
	callTimeout   time.Duration
	log           *zap.Logger
}

func NewRunner(exec Executor, maxRetries int, retryInterval, callTimeout time.Duration, log *zap.Logger) *Runner {
	return &Runner{
		exec:          exec,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		callTimeout:   callTimeout,
		log:           log,
	}
}

// Run produces one result per test case, in stored order. Evaluation is not
// short-circuited on failure, so callers can report "3 of 10 passed". The
// one exception: a compile error from the first engine call is terminal for
// the whole submission, since no later case could meaningfully run.
// Compilation happens at most once, implicitly via the first case's call, so
// on compile failure a single synthetic compile-failure result stands in for
// the whole set and the engine is not invoked again.
func (r *Runner) Run(ctx context.Context, job model.EvaluationJob) []TestCaseResult {
	limits := engine.Limits{
		TimeLimitMs:   job.TimeLimitMs,
		MemoryLimitKb: job.MemoryLimitKb,
	}

	results := make([]TestCaseResult, 0, len(job.TestCases))
	for i, tc := range job.TestCases {
		out := r.executeWithRetry(ctx, job, tc.Input, limits)

		if i == 0 && out.Kind == engine.OutcomeCompileError {
			return []TestCaseResult{{
				Index:         0,
				TestCaseID:    tc.ID,
				Hidden:        tc.IsHidden,
				Status:        model.StatusCompilationError,
				CompileOutput: out.Message,
			}}
		}

		results = append(results, classify(i, tc, out))
	}
	return results
}

// executeWithRetry calls the engine once per attempt, retrying only
// unavailable outcomes with exponential backoff. On retry exhaustion the
// case degrades to a terminal runtime-error outcome; a submission must never
// hang indefinitely on executor flakiness.
func (r *Runner) executeWithRetry(ctx context.Context, job model.EvaluationJob, stdin string, limits engine.Limits) engine.Outcome {
	var out engine.Outcome
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
		out = r.exec.Execute(callCtx, job.Language, job.Code, stdin, limits)
		if out.Kind == engine.OutcomeUnavailable {
			return errEngineUnavailable
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.retryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(r.maxRetries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		r.log.Warn("engine unavailable, retries exhausted",
			zap.String("submission_id", job.SubmissionID),
			zap.Int("max_retries", r.maxRetries))
		return engine.Outcome{
			Kind:    engine.OutcomeRuntimeError,
			Message: "execution engine unavailable",
		}
	}
	return out
}

func classify(index int, tc model.TestCase, out engine.Outcome) TestCaseResult {
	res := TestCaseResult{
		Index:      index,
		TestCaseID: tc.ID,
		Hidden:     tc.IsHidden,
		Stdout:     out.Stdout,
		TimeMs:     out.TimeMs,
		MemKb:      out.MemKb,
	}

	switch out.Kind {
	case engine.OutcomeCompleted:
		if OutputsMatch(out.Stdout, tc.ExpectedOutput) {
			res.Status = model.StatusAccepted
		} else {
			res.Status = model.StatusWrongAnswer
		}
	case engine.OutcomeTimedOut:
		res.Status = model.StatusTimeLimitExceeded
	case engine.OutcomeRuntimeError:
		res.Status = model.StatusRuntimeError
		res.Stderr = out.Message
	case engine.OutcomeCompileError:
		// Reachable only past the first case, which should not happen with a
		// compile-once engine; classified the same way for safety.
		res.Status = model.StatusCompilationError
		res.CompileOutput = out.Message
	case engine.OutcomeUnavailable:
		res.Status = model.StatusRuntimeError
		res.Stderr = "execution engine unavailable"
	}
	return res
}
