package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"codecourt/internal/app/judge"
	"codecourt/internal/common"
	"codecourt/internal/domain/model"
	"codecourt/internal/domain/repository"
)

// TerminalConsumer receives the event emitted when a submission reaches a
// terminal state. The leaderboard projector is one; notification mechanisms
// register the same way.
type TerminalConsumer interface {
	OnSubmissionTerminal(ctx context.Context, ev model.TerminalEvent) error
}

type Config struct {
	QueueName string
	Workers   int
	// Attempts is the whole-pipeline retry budget, distinct from the
	// runner's per-case engine retries.
	Attempts                int
	RevealHiddenDiagnostics bool
}

// Pipeline drains the FIFO evaluation queue with a fixed worker pool. One
// submission occupies exactly one worker for its full lifetime; test cases
// inside it run sequentially.
type Pipeline struct {
	rdb       *redis.Client
	subRepo   repository.SubmissionRepository
	runner    *judge.Runner
	consumers []TerminalConsumer
	cfg       Config
	log       *zap.Logger
}

func NewPipeline(rdb *redis.Client, subRepo repository.SubmissionRepository, runner *judge.Runner, cfg Config, log *zap.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &Pipeline{
		rdb:     rdb,
		subRepo: subRepo,
		runner:  runner,
		cfg:     cfg,
		log:     log,
	}
}

// Subscribe registers a terminal-event consumer. Not safe to call after
// Start.
func (p *Pipeline) Subscribe(c TerminalConsumer) {
	p.consumers = append(p.consumers, c)
}

// Start runs the worker pool until ctx is cancelled and all in-flight
// submissions finish.
func (p *Pipeline) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workerLoop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pipeline) workerLoop(ctx context.Context, id int) {
	log := p.log.With(zap.Int("worker", id))
	log.Info("pipeline worker started", zap.String("queue", p.cfg.QueueName))
	for {
		vals, err := p.rdb.BRPop(ctx, 0, p.cfg.QueueName).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("pipeline worker stopping")
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			log.Error("failed to pop from evaluation queue", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if len(vals) < 2 || vals[1] == "" {
			continue
		}

		var job model.EvaluationJob
		if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
			// A malformed payload cannot be tied to a submission; all we
			// can do is drop it loudly.
			log.Error("malformed evaluation job payload", zap.Error(err))
			continue
		}
		p.Process(ctx, job)
	}
}

// Process drives one submission from pending to a terminal state. Within the
// retry budget every failure is retried; past it the submission is forced to
// runtime_error with a system-level diagnostic. A submission observable in
// processing forever is a correctness bug, not an acceptable end state.
func (p *Pipeline) Process(ctx context.Context, job model.EvaluationJob) {
	log := p.log.With(zap.String("submission_id", job.SubmissionID))

	// The queue pop can race the transaction that inserted the submission:
	// the job is visible in Redis before the row commits. Wait for the row
	// rather than drop the job, which would strand the submission in
	// pending once the commit lands.
	if _, err := p.awaitSubmission(ctx, job.SubmissionID); err != nil {
		log.Error("submission never appeared for queued job", zap.Error(err))
		return
	}

	moved, err := p.subRepo.TransitionStatus(ctx, job.SubmissionID, model.StatusPending, model.StatusProcessing)
	if err != nil {
		log.Error("failed to move submission to processing", zap.Error(err))
		return
	}
	if !moved {
		sub, err := p.subRepo.GetByID(ctx, job.SubmissionID)
		if err != nil {
			log.Error("submission missing for queued job", zap.Error(err))
			return
		}
		if sub.Status != model.StatusProcessing {
			// Already terminal: duplicate delivery, drop silently.
			log.Warn("dropping job for submission not in pending",
				zap.String("status", string(sub.Status)))
			return
		}
		// Stale processing state from a crashed attempt; pick it back up.
	}

	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		if p.attempt(ctx, job) {
			return
		}
		log.Warn("evaluation attempt failed", zap.Int("attempt", attempt))
	}

	// Retry budget exhausted: force a terminal state rather than leave the
	// submission stuck in processing.
	msg := "evaluation failed due to a system error"
	done, err := p.subRepo.Finalize(ctx, job.SubmissionID, model.StatusProcessing,
		model.StatusRuntimeError, nil, nil, &msg)
	if err != nil {
		log.Error("failed to force-finalize stuck submission", zap.Error(err))
		return
	}
	if done {
		log.Error("submission force-finalized after exhausting pipeline retries")
		p.emit(ctx, job, model.StatusRuntimeError)
	}
}

const (
	submissionWaitAttempts = 10
	submissionWaitInterval = 50 * time.Millisecond

	consumerMaxRetries    = 2
	consumerRetryInterval = 100 * time.Millisecond
)

// awaitSubmission polls for the submission row, tolerating a not-yet-
// committed insert. Gives up after a bounded wait so an orphaned job from a
// rolled-back transaction cannot occupy a worker forever.
func (p *Pipeline) awaitSubmission(ctx context.Context, id string) (*model.Submission, error) {
	var lastErr error
	for i := 0; i < submissionWaitAttempts; i++ {
		sub, err := p.subRepo.GetByID(ctx, id)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(submissionWaitInterval):
		}
	}
	return nil, lastErr
}

func (p *Pipeline) attempt(ctx context.Context, job model.EvaluationJob) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic during evaluation",
				zap.String("submission_id", job.SubmissionID),
				zap.Any("panic", r))
			ok = false
		}
	}()

	results := p.runner.Run(ctx, job)
	verdict, err := judge.Resolve(results)
	if err != nil {
		p.log.Error("verdict resolution failed",
			zap.String("submission_id", job.SubmissionID), zap.Error(err))
		return false
	}

	done, err := p.subRepo.Finalize(ctx, job.SubmissionID, model.StatusProcessing,
		verdict.Status, verdict.RuntimeMs, verdict.MemoryKb, p.diagnostic(verdict))
	if err != nil {
		p.log.Error("failed to finalize submission",
			zap.String("submission_id", job.SubmissionID), zap.Error(err))
		return false
	}
	if !done {
		// Lost the conditional update: the submission is already terminal.
		// Whoever finalized it emitted the event.
		return true
	}

	p.log.Info("submission finalized",
		zap.String("submission_id", job.SubmissionID),
		zap.String("status", string(verdict.Status)))
	p.emit(ctx, job, verdict.Status)
	return true
}

// diagnostic derives the user-facing detail from the representative failing
// case. Hidden cases reveal nothing beyond their ordinal unless the
// deployment opts in; engine output is attached on non-hidden cases only.
func (p *Pipeline) diagnostic(v judge.Verdict) *string {
	fc := v.FailingCase
	if fc == nil {
		return nil
	}
	if fc.Hidden && !p.cfg.RevealHiddenDiagnostics {
		msg := fmt.Sprintf("failed on hidden test case %d", fc.Index+1)
		return &msg
	}

	var msg string
	switch fc.Status {
	case model.StatusCompilationError:
		msg = fc.CompileOutput
		if msg == "" {
			msg = "compilation failed"
		}
	case model.StatusRuntimeError:
		msg = fmt.Sprintf("test case %d: %s", fc.Index+1, fc.Stderr)
	case model.StatusTimeLimitExceeded:
		msg = fmt.Sprintf("test case %d exceeded the time limit", fc.Index+1)
	case model.StatusWrongAnswer:
		msg = fmt.Sprintf("test case %d: output mismatch", fc.Index+1)
	default:
		return nil
	}
	return &msg
}

func (p *Pipeline) emit(ctx context.Context, job model.EvaluationJob, status model.Status) {
	ev := model.TerminalEvent{
		SubmissionID: job.SubmissionID,
		UserID:       job.UserID,
		ProblemID:    job.ProblemID,
		Status:       status,
		SubmittedAt:  job.SubmittedAt,
	}
	// A consumer failure here is the last chance to record the event; the
	// queue entry is already consumed. Retry a few times before giving up,
	// so a transient store error cannot silently lose a solve.
	for _, c := range p.consumers {
		op := func() error { return c.OnSubmissionTerminal(ctx, ev) }
		b := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(consumerRetryInterval), consumerMaxRetries), ctx)
		if err := backoff.Retry(op, b); err != nil {
			p.log.Error("terminal event consumer failed after retries",
				zap.String("submission_id", ev.SubmissionID), zap.Error(err))
		}
	}
}
