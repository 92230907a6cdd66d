package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"codecourt/internal/common"
	"codecourt/internal/domain/model"
	"codecourt/internal/domain/repository"
)

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	rdb            *redis.Client
	queueName      string
	db             *sql.DB // optional; nil with in-memory repositories
	log            *zap.Logger
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	rdb *redis.Client,
	queueName string,
	db *sql.DB,
	log *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		rdb:            rdb,
		queueName:      queueName,
		db:             db,
		log:            log,
	}
}

type CreateSubmissionRequest struct {
	ProblemID string         `json:"problem_id"`
	Language  model.Language `json:"language"`
	Code      string         `json:"code"`
}

// Create validates the request, persists a pending submission, and enqueues
// an evaluation job with the problem's test cases frozen in, so later
// problem edits cannot affect this evaluation. Invalid input is rejected
// before any submission record exists; it never enters the state machine.
func (s *SubmissionService) Create(ctx context.Context, userID string, req CreateSubmissionRequest) (*model.Submission, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, common.Errorf("code must not be empty: %w", common.ErrValidation)
	}
	if !req.Language.Valid() {
		return nil, common.Errorf("unsupported language %q: %w", req.Language, common.ErrValidation)
	}

	problem, err := s.problemRepo.GetByID(ctx, req.ProblemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	submission := &model.Submission{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProblemID:   problem.ID,
		Language:    req.Language,
		Code:        req.Code,
		Status:      model.StatusPending,
		SubmittedAt: time.Now().UTC(),
	}

	job := model.EvaluationJob{
		SubmissionID:  submission.ID,
		UserID:        userID,
		ProblemID:     problem.ID,
		Language:      req.Language,
		Code:          req.Code,
		TimeLimitMs:   problem.TimeLimitMs,
		MemoryLimitKb: problem.MemoryLimitKb,
		TestCases:     problem.TestCases,
		SubmittedAt:   submission.SubmittedAt,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, common.Errorf("failed to marshal evaluation job: %w", err)
	}

	var tx *sql.Tx
	if s.db != nil {
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, common.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()
	}

	if err := s.submissionRepo.Create(ctx, tx, submission); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}
	if err := s.rdb.LPush(ctx, s.queueName, payload).Err(); err != nil {
		return nil, common.Errorf("failed to enqueue evaluation job: %w", common.ErrServiceUnavailable)
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, common.Errorf("failed to commit transaction: %w", err)
		}
	}

	s.log.Info("submission enqueued",
		zap.String("submission_id", submission.ID),
		zap.String("problem_id", problem.ID),
		zap.String("user_id", userID))
	return submission, nil
}

// Get is the cheap, idempotent read the UI polls. Code is withheld from
// readers other than the submitter.
func (s *SubmissionService) Get(ctx context.Context, callerID, id string) (*model.Submission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != callerID {
		sub.Code = ""
		sub.Diagnostic = nil
	}
	return sub, nil
}

func (s *SubmissionService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.submissionRepo.ListByUser(ctx, userID, limit, offset)
}
