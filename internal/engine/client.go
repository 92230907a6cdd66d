package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"codecourt/internal/domain/model"
)

// Client adapts one (submission, test case) pair into a call against the
// remote execution engine: submit one unit, receive a token, poll for the
// result. It is stateless between invocations and never retries; retry
// policy lives one layer up, in the test case runner.
type Client struct {
	baseURL      string
	authToken    string
	pollInterval time.Duration
	httpClient   *http.Client
	log          *zap.Logger
}

func NewClient(baseURL, authToken string, pollInterval time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		authToken:    authToken,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		log:          log,
	}
}

type submitRequest struct {
	SourceCode    string  `json:"source_code"`
	LanguageID    int     `json:"language_id"`
	Stdin         string  `json:"stdin"`
	CPUTimeLimit  float64 `json:"cpu_time_limit,omitempty"`  // seconds
	MemoryLimitKb int     `json:"memory_limit,omitempty"`    // KB
	WallTimeLimit float64 `json:"wall_time_limit,omitempty"` // seconds
}

type submitResponse struct {
	Token string `json:"token"`
}

type resultResponse struct {
	Status struct {
		ID int `json:"id"`
	} `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Time          *string `json:"time"`   // seconds, e.g. "0.004"
	Memory        *int    `json:"memory"` // KB
}

// Execute runs the given source against one test case's stdin and waits for
// a terminal engine status, honoring the caller's context deadline. A
// network failure before the token is issued maps to unavailable; after the
// token is issued a compile/run is in flight, so a deadline there maps to
// timed out.
func (c *Client) Execute(ctx context.Context, lang model.Language, source, stdin string, limits Limits) Outcome {
	token, out, submitted := c.submit(ctx, lang, source, stdin, limits)
	if !submitted {
		return out
	}

	for {
		select {
		case <-ctx.Done():
			return Outcome{Kind: OutcomeTimedOut}
		case <-time.After(c.pollInterval):
		}

		res, ok := c.poll(ctx, token)
		if !ok {
			if ctx.Err() != nil {
				return Outcome{Kind: OutcomeTimedOut}
			}
			return Outcome{Kind: OutcomeUnavailable}
		}

		kind, terminal := classifyStatus(res.Status.ID)
		if !terminal {
			continue
		}
		return buildOutcome(kind, res)
	}
}

func (c *Client) submit(ctx context.Context, lang model.Language, source, stdin string, limits Limits) (string, Outcome, bool) {
	body, err := json.Marshal(submitRequest{
		SourceCode:    source,
		LanguageID:    lang.EngineID(),
		Stdin:         stdin,
		CPUTimeLimit:  float64(limits.TimeLimitMs) / 1000.0,
		MemoryLimitKb: limits.MemoryLimitKb,
		WallTimeLimit: float64(limits.TimeLimitMs) / 1000.0 * 2,
	})
	if err != nil {
		return "", Outcome{Kind: OutcomeUnavailable, Message: err.Error()}, false
	}

	url := c.baseURL + "/submissions?base64_encoded=false&wait=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", Outcome{Kind: OutcomeUnavailable, Message: err.Error()}, false
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("X-Auth-Token", c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Outcome{Kind: OutcomeUnavailable, Message: err.Error()}, false
	}
	defer resp.Body.Close()

	// 429 is the engine's rate limit; 5xx is transient engine trouble.
	// Both surface as unavailable so the runner can back off and retry.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		c.log.Warn("engine rejected submission unit",
			zap.Int("http_status", resp.StatusCode))
		return "", Outcome{Kind: OutcomeUnavailable, Message: fmt.Sprintf("engine returned HTTP %d", resp.StatusCode)}, false
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil || sr.Token == "" {
		// Unexpected response shape: transient for retry purposes, but
		// logged distinctly for operability.
		c.log.Error("engine protocol error: unparseable submit response", zap.Error(err))
		return "", Outcome{Kind: OutcomeUnavailable, Message: "engine protocol error"}, false
	}
	return sr.Token, Outcome{}, true
}

func (c *Client) poll(ctx context.Context, token string) (*resultResponse, bool) {
	url := c.baseURL + "/submissions/" + token +
		"?base64_encoded=false&fields=status,stdout,stderr,compile_output,time,memory"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false
	}
	if c.authToken != "" {
		req.Header.Set("X-Auth-Token", c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("engine poll failed",
			zap.String("token", token),
			zap.Int("http_status", resp.StatusCode))
		return nil, false
	}

	var rr resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		c.log.Error("engine protocol error: unparseable result response",
			zap.String("token", token), zap.Error(err))
		return nil, false
	}
	return &rr, true
}

func buildOutcome(kind OutcomeKind, res *resultResponse) Outcome {
	out := Outcome{Kind: kind}
	if res.Stdout != nil {
		out.Stdout = *res.Stdout
	}
	switch kind {
	case OutcomeCompileError:
		if res.CompileOutput != nil {
			out.Message = *res.CompileOutput
		}
	case OutcomeRuntimeError:
		if res.Stderr != nil {
			out.Message = *res.Stderr
		}
	}
	if res.Time != nil {
		if sec, err := strconv.ParseFloat(*res.Time, 64); err == nil {
			ms := int(sec * 1000)
			out.TimeMs = &ms
		}
	}
	if res.Memory != nil {
		mem := *res.Memory
		out.MemKb = &mem
	}
	return out
}
