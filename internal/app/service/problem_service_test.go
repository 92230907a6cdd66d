package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecourt/internal/common"
	"codecourt/internal/domain/repository"
	"codecourt/internal/platform/logger"
)

func newProblemService() *ProblemService {
	return NewProblemService(repository.NewMemoryProblemRepository(), nil, 2000, 262144, logger.NewNop())
}

func TestProblemCreate_SlugAndDefaults(t *testing.T) {
	svc := newProblemService()

	p, err := svc.Create(context.Background(), "admin", CreateProblemRequest{
		Title:       "Sum Two Numbers!",
		Description: "Read two ints, print their sum.",
		TestCases: []CreateTestCaseRequest{
			{Input: "1 2", ExpectedOutput: "3"},
			{Input: "5 5", ExpectedOutput: "10", IsHidden: true},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "sum-two-numbers", p.Slug)
	assert.Equal(t, 2000, p.TimeLimitMs)
	assert.Equal(t, 262144, p.MemoryLimitKb)
	require.Len(t, p.TestCases, 2)
	assert.Equal(t, 1, p.TestCases[0].SortOrder)
	assert.Equal(t, 2, p.TestCases[1].SortOrder)
	assert.True(t, p.TestCases[1].IsHidden)
}

func TestProblemCreate_RejectsZeroTestCases(t *testing.T) {
	svc := newProblemService()

	_, err := svc.Create(context.Background(), "admin", CreateProblemRequest{
		Title:       "No Cases",
		Description: "A problem nobody can be judged on.",
	})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestProblemCreate_RejectsMissingTitle(t *testing.T) {
	svc := newProblemService()

	_, err := svc.Create(context.Background(), "admin", CreateProblemRequest{
		Description: "no title",
		TestCases:   []CreateTestCaseRequest{{Input: "1", ExpectedOutput: "1"}},
	})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestProblemGetBySlug_HidesHiddenCases(t *testing.T) {
	svc := newProblemService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "admin", CreateProblemRequest{
		Title:       "Hidden Cases",
		Description: "desc",
		TestCases: []CreateTestCaseRequest{
			{Input: "1", ExpectedOutput: "1"},
			{Input: "2", ExpectedOutput: "2", IsHidden: true},
		},
	})
	require.NoError(t, err)

	p, err := svc.GetBySlug(ctx, "hidden-cases")
	require.NoError(t, err)
	require.Len(t, p.TestCases, 1)
	assert.Equal(t, "1", p.TestCases[0].Input)
}

func TestProblemGetBySlug_NotFound(t *testing.T) {
	svc := newProblemService()

	_, err := svc.GetBySlug(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
