package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"codecourt/internal/common"
	"codecourt/internal/domain/model"
)

type ProblemRepository interface {
	Create(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	GetByID(ctx context.Context, id string) (*model.Problem, error)
	GetBySlug(ctx context.Context, slug string) (*model.Problem, error)
	List(ctx context.Context, limit, offset int) ([]model.Problem, int, error)
	GetTestCases(ctx context.Context, problemID string) ([]model.TestCase, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) Create(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (id, title, slug, description, time_limit_ms, memory_limit_kb, created_by, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	exec := r.db.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	if _, err := exec(ctx, query, p.ID, p.Title, p.Slug, p.Description, p.TimeLimitMs, p.MemoryLimitKb, p.CreatedByID, p.CreatedAt, p.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.Create: %w", err)
	}

	caseQuery := `INSERT INTO test_cases (id, problem_id, input, expected_output, is_hidden, sort_order, created_at)
	              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, tc := range p.TestCases {
		if _, err := exec(ctx, caseQuery, tc.ID, p.ID, tc.Input, tc.ExpectedOutput, tc.IsHidden, tc.SortOrder, tc.CreatedAt); err != nil {
			return fmt.Errorf("pgProblemRepository.Create test case %s: %w", tc.ID, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetByID(ctx context.Context, id string) (*model.Problem, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *pgProblemRepository) GetBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	return r.getOne(ctx, `WHERE slug = $1`, slug)
}

func (r *pgProblemRepository) getOne(ctx context.Context, where string, arg any) (*model.Problem, error) {
	query := `SELECT id, title, slug, description, time_limit_ms, memory_limit_kb, created_by, created_at, updated_at
	          FROM problems ` + where

	p := &model.Problem{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &p.TimeLimitMs, &p.MemoryLimitKb,
		&p.CreatedByID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.getOne: %w", err)
	}

	p.TestCases, err = r.GetTestCases(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgProblemRepository) List(ctx context.Context, limit, offset int) ([]model.Problem, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.List count: %w", err)
	}

	query := `SELECT id, title, slug, description, time_limit_ms, memory_limit_kb, created_at, updated_at
	          FROM problems ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.List query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Description,
			&p.TimeLimitMs, &p.MemoryLimitKb, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.List scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.List rows.Err: %w", err)
	}
	return problems, total, nil
}

func (r *pgProblemRepository) GetTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, input, expected_output, is_hidden, sort_order, created_at
	          FROM test_cases WHERE problem_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCases query: %w", err)
	}
	defer rows.Close()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput,
			&tc.IsHidden, &tc.SortOrder, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetTestCases scan: %w", err)
		}
		cases = append(cases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCases rows.Err: %w", err)
	}
	return cases, nil
}
