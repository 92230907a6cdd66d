package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codecourt/internal/common"
	"codecourt/internal/domain/model"
)

type SubmissionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, error)

	// TransitionStatus applies a forward-only transition with a conditional
	// update keyed on the submission's own identity and current status.
	// Returns false when the submission was not in the expected state.
	TransitionStatus(ctx context.Context, id string, from, to model.Status) (bool, error)

	// Finalize sets the terminal status, metrics and diagnostic atomically.
	Finalize(ctx context.Context, id string, from, to model.Status, runtimeMs, memoryKb *int, diagnostic *string) (bool, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, language, code, status, submitted_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, sub.ID, sub.UserID, sub.ProblemID, sub.Language, sub.Code, sub.Status, sub.SubmittedAt)
	} else {
		_, err = r.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.ProblemID, sub.Language, sub.Code, sub.Status, sub.SubmittedAt)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT id, user_id, problem_id, language, code, status, runtime_ms, memory_kb, diagnostic, submitted_at, updated_at
	          FROM submissions WHERE id = $1`

	sub := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Language, &sub.Code, &sub.Status,
		&sub.RuntimeMs, &sub.MemoryKb, &sub.Diagnostic, &sub.SubmittedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, error) {
	query := `SELECT id, user_id, problem_id, language, status, runtime_ms, memory_kb, submitted_at, updated_at
	          FROM submissions WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListByUser query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Language, &s.Status,
			&s.RuntimeMs, &s.MemoryKb, &s.SubmittedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListByUser scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListByUser rows.Err: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) TransitionStatus(ctx context.Context, id string, from, to model.Status) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("pgSubmissionRepository.TransitionStatus: illegal transition %s -> %s", from, to)
	}
	query := `UPDATE submissions SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.TransitionStatus: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.TransitionStatus rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *pgSubmissionRepository) Finalize(ctx context.Context, id string, from, to model.Status, runtimeMs, memoryKb *int, diagnostic *string) (bool, error) {
	if !to.IsTerminal() {
		return false, fmt.Errorf("pgSubmissionRepository.Finalize: %s is not a terminal status", to)
	}
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("pgSubmissionRepository.Finalize: illegal transition %s -> %s", from, to)
	}
	query := `UPDATE submissions SET status = $1, runtime_ms = $2, memory_kb = $3, diagnostic = $4, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $5 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, to, runtimeMs, memoryKb, diagnostic, id, from)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.Finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.Finalize rows affected: %w", err)
	}
	return n == 1, nil
}
