package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecourt/internal/domain/model"
	"codecourt/internal/platform/logger"
)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

// fakeEngine serves the submit-then-poll protocol. Each poll pops the next
// scripted result; in-flight statuses keep the client polling.
type fakeEngine struct {
	t       *testing.T
	results []resultResponse
	polls   atomic.Int32
	submits atomic.Int32
}

func (f *fakeEngine) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		f.submits.Add(1)
		var req submitRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotZero(f.t, req.LanguageID)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(submitResponse{Token: "tok-123"})
	})
	mux.HandleFunc("GET /submissions/{token}", func(w http.ResponseWriter, r *http.Request) {
		i := int(f.polls.Add(1)) - 1
		if i >= len(f.results) {
			i = len(f.results) - 1
		}
		json.NewEncoder(w).Encode(f.results[i])
	})
	return mux
}

func terminalResult(statusID int) resultResponse {
	var rr resultResponse
	rr.Status.ID = statusID
	return rr
}

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "", time.Millisecond, logger.NewNop())
}

func TestClient_PollsUntilTerminal(t *testing.T) {
	completed := terminalResult(statusAcceptedByEngine)
	completed.Stdout = strPtr("42\n")
	completed.Time = strPtr("0.004")
	completed.Memory = intPtr(2048)

	fe := &fakeEngine{t: t, results: []resultResponse{
		terminalResult(statusInQueue),
		terminalResult(statusProcessing),
		completed,
	}}
	srv := httptest.NewServer(fe.handler())
	defer srv.Close()

	out := newTestClient(srv.URL).Execute(context.Background(),
		model.LangPython, "print(42)", "", Limits{TimeLimitMs: 2000, MemoryLimitKb: 262144})

	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, "42\n", out.Stdout)
	require.NotNil(t, out.TimeMs)
	assert.Equal(t, 4, *out.TimeMs)
	require.NotNil(t, out.MemKb)
	assert.Equal(t, 2048, *out.MemKb)
	assert.Equal(t, int32(3), fe.polls.Load())
}

func TestClient_EngineWrongAnswerStillCompleted(t *testing.T) {
	// The engine's own judgment is not trusted; a "wrong answer" status is
	// a completed run whose output the caller diffs itself.
	wrong := terminalResult(statusWrongByEngine)
	wrong.Stdout = strPtr("41\n")

	fe := &fakeEngine{t: t, results: []resultResponse{wrong}}
	srv := httptest.NewServer(fe.handler())
	defer srv.Close()

	out := newTestClient(srv.URL).Execute(context.Background(),
		model.LangPython, "print(41)", "", Limits{})

	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, "41\n", out.Stdout)
}

func TestClient_CompileErrorCarriesCompileOutput(t *testing.T) {
	ce := terminalResult(statusCompilationError)
	ce.CompileOutput = strPtr("main.cpp:1: expected ';'")

	fe := &fakeEngine{t: t, results: []resultResponse{ce}}
	srv := httptest.NewServer(fe.handler())
	defer srv.Close()

	out := newTestClient(srv.URL).Execute(context.Background(),
		model.LangCpp, "int main() {", "", Limits{})

	assert.Equal(t, OutcomeCompileError, out.Kind)
	assert.Equal(t, "main.cpp:1: expected ';'", out.Message)
}

func TestClient_RuntimeErrorCarriesStderr(t *testing.T) {
	re := terminalResult(statusRuntimeNZEC)
	re.Stderr = strPtr("Traceback (most recent call last)")

	fe := &fakeEngine{t: t, results: []resultResponse{re}}
	srv := httptest.NewServer(fe.handler())
	defer srv.Close()

	out := newTestClient(srv.URL).Execute(context.Background(),
		model.LangPython, "raise Exception()", "", Limits{})

	assert.Equal(t, OutcomeRuntimeError, out.Kind)
	assert.Equal(t, "Traceback (most recent call last)", out.Message)
}

func TestClient_UnrecognizedStatusIsUnavailable(t *testing.T) {
	fe := &fakeEngine{t: t, results: []resultResponse{terminalResult(99)}}
	srv := httptest.NewServer(fe.handler())
	defer srv.Close()

	out := newTestClient(srv.URL).Execute(context.Background(),
		model.LangPython, "print(1)", "", Limits{})

	assert.Equal(t, OutcomeUnavailable, out.Kind)
}

func TestClient_SubmitRejectionIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	out := newTestClient(srv.URL).Execute(context.Background(),
		model.LangPython, "print(1)", "", Limits{})

	assert.Equal(t, OutcomeUnavailable, out.Kind)
}

func TestClient_UnreachableEngineIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	out := newTestClient(srv.URL).Execute(context.Background(),
		model.LangPython, "print(1)", "", Limits{})

	assert.Equal(t, OutcomeUnavailable, out.Kind)
}

func TestClient_DeadlineAfterTokenIsTimedOut(t *testing.T) {
	// The run is in flight once the token exists; a deadline there is the
	// submission's problem, not the engine's.
	fe := &fakeEngine{t: t, results: []resultResponse{terminalResult(statusInQueue)}}
	srv := httptest.NewServer(fe.handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := newTestClient(srv.URL).Execute(ctx,
		model.LangPython, "while True: pass", "", Limits{})

	assert.Equal(t, OutcomeTimedOut, out.Kind)
}

func TestClassifyStatus_Table(t *testing.T) {
	for _, id := range []int{statusInQueue, statusProcessing} {
		_, terminal := classifyStatus(id)
		assert.False(t, terminal, "status %d is in-flight", id)
	}

	cases := map[int]OutcomeKind{
		statusAcceptedByEngine:  OutcomeCompleted,
		statusWrongByEngine:     OutcomeCompleted,
		statusTimeLimitExceeded: OutcomeTimedOut,
		statusCompilationError:  OutcomeCompileError,
		statusRuntimeSIGSEGV:    OutcomeRuntimeError,
		statusRuntimeNZEC:       OutcomeRuntimeError,
		statusRuntimeOther:      OutcomeRuntimeError,
		statusInternalError:     OutcomeUnavailable,
		statusExecFormatError:   OutcomeUnavailable,
		0:                       OutcomeUnavailable,
		42:                      OutcomeUnavailable,
	}
	for id, want := range cases {
		kind, terminal := classifyStatus(id)
		assert.True(t, terminal, "status %d", id)
		assert.Equal(t, want, kind, "status %d", id)
	}
}
