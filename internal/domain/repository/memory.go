package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"codecourt/internal/common"
	"codecourt/internal/domain/model"
)

// In-memory repository implementations, primarily for tests. They honor the
// same transition and idempotency contracts as the Postgres implementations;
// the tx parameter is accepted and ignored.

type MemorySubmissionRepository struct {
	mu   sync.Mutex
	subs map[string]*model.Submission
}

func NewMemorySubmissionRepository() *MemorySubmissionRepository {
	return &MemorySubmissionRepository{subs: make(map[string]*model.Submission)}
}

func (r *MemorySubmissionRepository) Create(_ context.Context, _ *sql.Tx, sub *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subs[sub.ID]; exists {
		return common.ErrConflict
	}
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *MemorySubmissionRepository) GetByID(_ context.Context, id string) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *MemorySubmissionRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var subs []model.Submission
	for _, sub := range r.subs {
		if sub.UserID == userID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	if offset >= len(subs) {
		return []model.Submission{}, nil
	}
	subs = subs[offset:]
	if limit < len(subs) {
		subs = subs[:limit]
	}
	return subs, nil
}

func (r *MemorySubmissionRepository) TransitionStatus(_ context.Context, id string, from, to model.Status) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("memory: illegal transition %s -> %s", from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok || sub.Status != from {
		return false, nil
	}
	sub.Status = to
	sub.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemorySubmissionRepository) Finalize(_ context.Context, id string, from, to model.Status, runtimeMs, memoryKb *int, diagnostic *string) (bool, error) {
	if !to.IsTerminal() {
		return false, fmt.Errorf("memory: %s is not a terminal status", to)
	}
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("memory: illegal transition %s -> %s", from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok || sub.Status != from {
		return false, nil
	}
	sub.Status = to
	sub.RuntimeMs = runtimeMs
	sub.MemoryKb = memoryKb
	sub.Diagnostic = diagnostic
	sub.UpdatedAt = time.Now()
	return true, nil
}

type MemoryProblemRepository struct {
	mu       sync.Mutex
	problems map[string]*model.Problem
}

func NewMemoryProblemRepository() *MemoryProblemRepository {
	return &MemoryProblemRepository{problems: make(map[string]*model.Problem)}
}

func (r *MemoryProblemRepository) Create(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.problems {
		if existing.Slug == p.Slug {
			return common.ErrConflict
		}
	}
	cp := *p
	cp.TestCases = append([]model.TestCase(nil), p.TestCases...)
	r.problems[p.ID] = &cp
	return nil
}

func (r *MemoryProblemRepository) GetByID(_ context.Context, id string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyProblem(p), nil
}

func (r *MemoryProblemRepository) GetBySlug(_ context.Context, slug string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.problems {
		if p.Slug == slug {
			return copyProblem(p), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryProblemRepository) List(_ context.Context, limit, offset int) ([]model.Problem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var problems []model.Problem
	for _, p := range r.problems {
		problems = append(problems, *copyProblem(p))
	}
	sort.Slice(problems, func(i, j int) bool { return problems[i].CreatedAt.After(problems[j].CreatedAt) })
	total := len(problems)
	if offset >= total {
		return []model.Problem{}, total, nil
	}
	problems = problems[offset:]
	if limit < len(problems) {
		problems = problems[:limit]
	}
	return problems, total, nil
}

func (r *MemoryProblemRepository) GetTestCases(_ context.Context, problemID string) ([]model.TestCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[problemID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return append([]model.TestCase(nil), p.TestCases...), nil
}

func copyProblem(p *model.Problem) *model.Problem {
	cp := *p
	cp.TestCases = append([]model.TestCase(nil), p.TestCases...)
	return &cp
}

type memoryLeaderboardEntry struct {
	totalSolved      int
	lastSubmissionAt time.Time
}

type MemoryLeaderboardRepository struct {
	mu      sync.Mutex
	entries map[string]*memoryLeaderboardEntry
	solved  map[string]string // (user, problem) -> submission id
}

func NewMemoryLeaderboardRepository() *MemoryLeaderboardRepository {
	return &MemoryLeaderboardRepository{
		entries: make(map[string]*memoryLeaderboardEntry),
		solved:  make(map[string]string),
	}
}

func (r *MemoryLeaderboardRepository) MarkSolved(_ context.Context, _ *sql.Tx, userID, problemID, submissionID string, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "/" + problemID
	if _, exists := r.solved[key]; exists {
		return false, nil
	}
	r.solved[key] = submissionID
	return true, nil
}

func (r *MemoryLeaderboardRepository) IncrementSolved(_ context.Context, _ *sql.Tx, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		e = &memoryLeaderboardEntry{}
		r.entries[userID] = e
	}
	e.totalSolved++
	return nil
}

func (r *MemoryLeaderboardRepository) TouchLastSubmission(_ context.Context, _ *sql.Tx, userID string, submittedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		e = &memoryLeaderboardEntry{}
		r.entries[userID] = e
	}
	if submittedAt.After(e.lastSubmissionAt) {
		e.lastSubmissionAt = submittedAt
	}
	return nil
}

func (r *MemoryLeaderboardRepository) List(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]model.LeaderboardEntry, 0, len(r.entries))
	for userID, e := range r.entries {
		entries = append(entries, model.LeaderboardEntry{
			UserID:           userID,
			TotalSolved:      e.totalSolved,
			LastSubmissionAt: e.lastSubmissionAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalSolved != entries[j].TotalSolved {
			return entries[i].TotalSolved > entries[j].TotalSolved
		}
		return entries[i].LastSubmissionAt.Before(entries[j].LastSubmissionAt)
	})
	if limit < len(entries) {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
