package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecourt/internal/app/service"
	"codecourt/internal/common/security"
	"codecourt/internal/domain/model"
	"codecourt/internal/domain/repository"
	"codecourt/internal/platform/logger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	security.InitJWT([]byte("test-secret"))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewNop()
	problemRepo := repository.NewMemoryProblemRepository()
	problemService := service.NewProblemService(problemRepo, nil, 2000, 262144, log)
	submissionService := service.NewSubmissionService(
		repository.NewMemorySubmissionRepository(), problemRepo,
		rdb, "evaluation_jobs_queue", nil, log)
	leaderboardService := service.NewLeaderboardService(
		repository.NewMemoryLeaderboardRepository(), nil, log)

	srv := httptest.NewServer(NewRouter(problemService, submissionService, leaderboardService))
	t.Cleanup(srv.Close)
	return srv
}

func authedRequest(t *testing.T, method, url, userID string, body interface{}) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)

	token, err := security.GenerateToken(userID, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func doJSON(t *testing.T, req *http.Request, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createProblem(t *testing.T, srv *httptest.Server) model.Problem {
	t.Helper()
	req := authedRequest(t, http.MethodPost, srv.URL+"/api/v1/problems", "setter-1",
		service.CreateProblemRequest{
			Title:       "Echo Input",
			Description: "Print the input line.",
			TestCases: []service.CreateTestCaseRequest{
				{Input: "hello", ExpectedOutput: "hello"},
				{Input: "world", ExpectedOutput: "world", IsHidden: true},
			},
		})

	var problem model.Problem
	resp := doJSON(t, req, &problem)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return problem
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_SubmissionRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/submissions", "application/json",
		bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_CreateAndPollSubmission(t *testing.T) {
	srv := newTestServer(t)
	problem := createProblem(t, srv)

	req := authedRequest(t, http.MethodPost, srv.URL+"/api/v1/submissions", "alice",
		service.CreateSubmissionRequest{
			ProblemID: problem.ID,
			Language:  model.LangPython,
			Code:      "print(input())",
		})

	var created model.Submission
	resp := doJSON(t, req, &created)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, model.StatusPending, created.Status)

	// The poll endpoint is readable immediately, before any worker runs.
	getReq := authedRequest(t, http.MethodGet, srv.URL+"/api/v1/submissions/"+created.ID, "alice", nil)
	var fetched model.Submission
	resp = doJSON(t, getReq, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "print(input())", fetched.Code)
}

func TestRouter_SubmissionValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	problem := createProblem(t, srv)

	req := authedRequest(t, http.MethodPost, srv.URL+"/api/v1/submissions", "alice",
		service.CreateSubmissionRequest{
			ProblemID: problem.ID,
			Language:  "fortran",
			Code:      "PRINT *, 'hi'",
		})
	resp := doJSON(t, req, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_ProblemViewOmitsHiddenCases(t *testing.T) {
	srv := newTestServer(t)
	problem := createProblem(t, srv)

	resp, err := http.Get(srv.URL + "/api/v1/problems/" + problem.Slug)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched model.Problem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	require.Len(t, fetched.TestCases, 1)
	assert.Equal(t, "hello", fetched.TestCases[0].Input)
}

func TestRouter_LeaderboardIsPublic(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/leaderboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
