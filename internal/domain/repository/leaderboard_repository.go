package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codecourt/internal/domain/model"
)

type LeaderboardRepository interface {
	// MarkSolved records the first accepted submission for (user, problem).
	// Idempotent: returns true only when this call recorded a new solve.
	MarkSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string, solvedAt time.Time) (bool, error)

	// IncrementSolved bumps the user's solved counter by one.
	IncrementSolved(ctx context.Context, tx *sql.Tx, userID string) error

	// TouchLastSubmission upserts the user's entry, advancing
	// last_submission_at to the submission's own timestamp if it is newer.
	TouchLastSubmission(ctx context.Context, tx *sql.Tx, userID string, submittedAt time.Time) error

	// List returns entries ordered by (total_solved desc, last_submission_at
	// asc) with ranks assigned at read time.
	List(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

type pgLeaderboardRepository struct {
	db *sql.DB
}

func NewPgLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &pgLeaderboardRepository{db: db}
}

func (r *pgLeaderboardRepository) execer(tx *sql.Tx) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *pgLeaderboardRepository) MarkSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string, solvedAt time.Time) (bool, error) {
	query := `INSERT INTO user_solved_problems (user_id, problem_id, submission_id, solved_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (user_id, problem_id) DO NOTHING`
	res, err := r.execer(tx).ExecContext(ctx, query, userID, problemID, submissionID, solvedAt)
	if err != nil {
		return false, fmt.Errorf("pgLeaderboardRepository.MarkSolved: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgLeaderboardRepository.MarkSolved rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *pgLeaderboardRepository) IncrementSolved(ctx context.Context, tx *sql.Tx, userID string) error {
	query := `UPDATE leaderboard_entries SET total_solved = total_solved + 1 WHERE user_id = $1`
	if _, err := r.execer(tx).ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("pgLeaderboardRepository.IncrementSolved: %w", err)
	}
	return nil
}

func (r *pgLeaderboardRepository) TouchLastSubmission(ctx context.Context, tx *sql.Tx, userID string, submittedAt time.Time) error {
	query := `INSERT INTO leaderboard_entries (user_id, total_solved, last_submission_at)
	          VALUES ($1, 0, $2)
	          ON CONFLICT (user_id) DO UPDATE SET last_submission_at = EXCLUDED.last_submission_at
	          WHERE leaderboard_entries.last_submission_at < EXCLUDED.last_submission_at`
	if _, err := r.execer(tx).ExecContext(ctx, query, userID, submittedAt); err != nil {
		return fmt.Errorf("pgLeaderboardRepository.TouchLastSubmission: %w", err)
	}
	return nil
}

func (r *pgLeaderboardRepository) List(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := `SELECT user_id, total_solved, last_submission_at
	          FROM leaderboard_entries
	          ORDER BY total_solved DESC, last_submission_at ASC
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.List query: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.TotalSolved, &e.LastSubmissionAt); err != nil {
			return nil, fmt.Errorf("pgLeaderboardRepository.List scan: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.List rows.Err: %w", err)
	}
	return entries, nil
}
