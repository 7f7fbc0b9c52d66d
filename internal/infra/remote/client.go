// Package remote talks to the mock test HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mocktest-client/internal/app"
	"mocktest-client/internal/domain"
	"mocktest-client/internal/metrics"
)

// RequestIDHeader carries a per-request identifier for server-side tracing.
const RequestIDHeader = "X-Request-ID"

// APIError is a non-2xx response. Detail is the service's error message.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Detail)
}

// Unwrap maps well-known statuses onto domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	}
	return nil
}

// Client implements the test, analysis, auth and history services over HTTP.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens app.TokenSource
	log    zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource attaches a bearer token to every request when one is available.
func WithTokenSource(ts app.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a client for baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", baseURL)
	}
	c := &Client{
		base: base,
		http: &http.Client{},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "remote").Logger()
	return c, nil
}

type createResponse struct {
	TestID string `json:"test_id"`
}

func (c *Client) Create(ctx context.Context, cfg domain.TestConfig) (string, error) {
	var out createResponse
	if err := c.do(ctx, "create_test", http.MethodPost, "/api/tests/create", nil, cfg, &out); err != nil {
		return "", err
	}
	if out.TestID == "" {
		return "", errors.New("create test: response without test_id")
	}
	return out.TestID, nil
}

func (c *Client) FetchQuestions(ctx context.Context, testID, subject string) (domain.QuestionSet, error) {
	var q url.Values
	if subject != "" {
		q = url.Values{"subject": {subject}}
	}
	var out domain.QuestionSet
	path := "/api/tests/" + url.PathEscape(testID) + "/questions"
	if err := c.do(ctx, "fetch_questions", http.MethodGet, path, q, nil, &out); err != nil {
		return domain.QuestionSet{}, err
	}
	if out.TestID == "" {
		out.TestID = testID
	}
	return out, nil
}

type resultsResponse struct {
	Results domain.Results `json:"results"`
}

func (c *Client) Submit(ctx context.Context, testID string, submission domain.Submission) (domain.Results, error) {
	submission.TestID = testID
	if submission.Answers == nil {
		submission.Answers = domain.AnswerMap{}
	}
	var out resultsResponse
	path := "/api/tests/" + url.PathEscape(testID) + "/submit"
	if err := c.do(ctx, "submit_test", http.MethodPost, path, nil, submission, &out); err != nil {
		return domain.Results{}, err
	}
	return out.Results, nil
}

func (c *Client) FetchResults(ctx context.Context, testID string) (domain.Results, error) {
	var out resultsResponse
	path := "/api/tests/" + url.PathEscape(testID) + "/results"
	if err := c.do(ctx, "fetch_results", http.MethodGet, path, nil, nil, &out); err != nil {
		return domain.Results{}, err
	}
	return out.Results, nil
}

func (c *Client) Generate(ctx context.Context, testID string) (domain.Analysis, error) {
	var out domain.Analysis
	q := url.Values{"test_id": {testID}}
	if err := c.do(ctx, "generate_analysis", http.MethodPost, "/api/analysis/generate", q, nil, &out); err != nil {
		return domain.Analysis{}, err
	}
	if out.TestID == "" {
		out.TestID = testID
	}
	return out, nil
}

func (c *Client) FetchBySession(ctx context.Context, sessionID string) (domain.Analysis, error) {
	var out domain.Analysis
	path := "/api/analysis/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "fetch_analysis", http.MethodGet, path, nil, nil, &out); err != nil {
		return domain.Analysis{}, err
	}
	if out.SessionID == "" {
		out.SessionID = sessionID
	}
	return out, nil
}

func (c *Client) FetchByTest(ctx context.Context, testID string) (domain.Analysis, error) {
	var out domain.Analysis
	path := "/api/analysis/test/" + url.PathEscape(testID)
	if err := c.do(ctx, "fetch_analysis_by_test", http.MethodGet, path, nil, nil, &out); err != nil {
		return domain.Analysis{}, err
	}
	if out.TestID == "" {
		out.TestID = testID
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, creds domain.Credentials) (domain.AuthResponse, error) {
	var out domain.AuthResponse
	err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", nil, creds, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.AuthResponse, error) {
	var out domain.AuthResponse
	err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", nil, creds, &out)
	return out, err
}

type historyResponse struct {
	Results []domain.Results `json:"results"`
}

func (c *Client) MyResults(ctx context.Context) ([]domain.Results, error) {
	var out historyResponse
	if err := c.do(ctx, "my_results", http.MethodGet, "/api/users/me/results", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token, ok := c.tokens.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RemoteLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Str("request_id", reqID).Msg("request failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("op", op).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %w", op, decodeError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// decodeError reads the FastAPI style {"detail": ...} body. Validation errors
// carry a list of objects with a msg field.
func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Detail) == 0 {
		apiErr.Detail = strings.TrimSpace(string(data))
		return apiErr
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		apiErr.Detail = text
		return apiErr
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			msgs = append(msgs, it.Msg)
		}
		apiErr.Detail = strings.Join(msgs, "; ")
		return apiErr
	}
	apiErr.Detail = string(payload.Detail)
	return apiErr
}
