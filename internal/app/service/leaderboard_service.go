package service

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"codecourt/internal/domain/model"
	"codecourt/internal/domain/repository"
)

// LeaderboardService projects terminal submission events onto the solved
// counts and serves the ranked read view. total_solved is the only shared
// mutable aggregate in the system; updates are serialized per user through
// striped locks so concurrent terminal submissions cannot lose an increment.
type LeaderboardService struct {
	repo repository.LeaderboardRepository
	db   *sql.DB // optional; nil with in-memory repositories
	log  *zap.Logger

	userLocks [64]sync.Mutex
}

func NewLeaderboardService(repo repository.LeaderboardRepository, db *sql.DB, log *zap.Logger) *LeaderboardService {
	return &LeaderboardService{repo: repo, db: db, log: log}
}

func (s *LeaderboardService) lockFor(userID string) *sync.Mutex {
	var h uint32
	for i := 0; i < len(userID); i++ {
		h = h*31 + uint32(userID[i])
	}
	return &s.userLocks[h%uint32(len(s.userLocks))]
}

// OnSubmissionTerminal consumes a terminal-state event. An accepted
// submission that is the user's first solve of that problem increments
// total_solved by exactly one; re-solves of the same problem never count
// again. Every terminal event advances last_submission_at, keyed to the
// submission's own timestamp rather than completion order.
func (s *LeaderboardService) OnSubmissionTerminal(ctx context.Context, ev model.TerminalEvent) error {
	mu := s.lockFor(ev.UserID)
	mu.Lock()
	defer mu.Unlock()

	var tx *sql.Tx
	var err error
	if s.db != nil {
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	if err := s.repo.TouchLastSubmission(ctx, tx, ev.UserID, ev.SubmittedAt); err != nil {
		return err
	}

	if ev.Status == model.StatusAccepted {
		firstSolve, err := s.repo.MarkSolved(ctx, tx, ev.UserID, ev.ProblemID, ev.SubmissionID, ev.SubmittedAt)
		if err != nil {
			return err
		}
		if firstSolve {
			if err := s.repo.IncrementSolved(ctx, tx, ev.UserID); err != nil {
				return err
			}
			s.log.Info("first solve recorded",
				zap.String("user_id", ev.UserID),
				zap.String("problem_id", ev.ProblemID))
		}
	}

	if tx != nil {
		return tx.Commit()
	}
	return nil
}

// List returns the standings. Rank is a read-time projection over
// (total_solved desc, last_submission_at asc): fewer, earlier-achieved
// solves outrank later ties.
func (s *LeaderboardService) List(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, limit)
}
