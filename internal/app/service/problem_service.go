package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"codecourt/internal/common"
	"codecourt/internal/domain/model"
	"codecourt/internal/domain/repository"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	db          *sql.DB // optional; nil with in-memory repositories

	defaultTimeLimitMs   int
	defaultMemoryLimitKb int

	log *zap.Logger
}

func NewProblemService(problemRepo repository.ProblemRepository, db *sql.DB, defaultTimeLimitMs, defaultMemoryLimitKb int, log *zap.Logger) *ProblemService {
	return &ProblemService{
		problemRepo:          problemRepo,
		db:                   db,
		defaultTimeLimitMs:   defaultTimeLimitMs,
		defaultMemoryLimitKb: defaultMemoryLimitKb,
		log:                  log,
	}
}

type CreateProblemRequest struct {
	Title         string                  `json:"title"`
	Description   string                  `json:"description"`
	TimeLimitMs   int                     `json:"time_limit_ms"`
	MemoryLimitKb int                     `json:"memory_limit_kb"`
	TestCases     []CreateTestCaseRequest `json:"test_cases"`
}

type CreateTestCaseRequest struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
}

// Create seeds a judgeable problem. A problem with zero test cases is
// rejected here, at creation; it must never reach verdict resolution.
func (s *ProblemService) Create(ctx context.Context, userID string, req CreateProblemRequest) (*model.Problem, error) {
	if req.Title == "" || req.Description == "" {
		return nil, common.Errorf("title and description are required: %w", common.ErrValidation)
	}
	if len(req.TestCases) == 0 {
		return nil, common.Errorf("a problem requires at least one test case: %w", common.ErrValidation)
	}

	timeLimit := req.TimeLimitMs
	if timeLimit <= 0 {
		timeLimit = s.defaultTimeLimitMs
	}
	memoryLimit := req.MemoryLimitKb
	if memoryLimit <= 0 {
		memoryLimit = s.defaultMemoryLimitKb
	}

	now := time.Now().UTC()
	problem := &model.Problem{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Slug:          slug.Make(req.Title),
		Description:   req.Description,
		TimeLimitMs:   timeLimit,
		MemoryLimitKb: memoryLimit,
		CreatedByID:   &userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, tc := range req.TestCases {
		problem.TestCases = append(problem.TestCases, model.TestCase{
			ID:             uuid.NewString(),
			ProblemID:      problem.ID,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			IsHidden:       tc.IsHidden,
			SortOrder:      i + 1,
			CreatedAt:      now,
		})
	}

	var tx *sql.Tx
	var err error
	if s.db != nil {
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, common.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()
	}
	if err := s.problemRepo.Create(ctx, tx, problem); err != nil {
		return nil, common.Errorf("failed to create problem: %w", err)
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, common.Errorf("failed to commit transaction: %w", err)
		}
	}

	s.log.Info("problem created",
		zap.String("problem_id", problem.ID),
		zap.String("slug", problem.Slug),
		zap.Int("test_cases", len(problem.TestCases)))
	return problem, nil
}

// GetBySlug returns the submitter-facing view: hidden test cases are
// withheld regardless of outcome.
func (s *ProblemService) GetBySlug(ctx context.Context, slugStr string) (*model.Problem, error) {
	problem, err := s.problemRepo.GetBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	problem.TestCases = problem.VisibleTestCases()
	return problem, nil
}

func (s *ProblemService) List(ctx context.Context, limit, offset int) ([]model.Problem, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.problemRepo.List(ctx, limit, offset)
}
