package apiclient

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
	"github.com/jinzhu/copier"
	"github.com/lshigami/iqtester/config"
	"github.com/lshigami/iqtester/internal/dto"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/rs/zerolog/log"
)

// TokenSource supplies the bearer credential attached to authenticated requests.
type TokenSource interface {
	AccessToken() string
}

// Client is a thin typed wrapper over the IQ test HTTP API. Each method issues
// exactly one request.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

func New(cfg *config.Config, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.API.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.API.Timeout},
		tokens:  tokens,
	}
}

// Login exchanges credentials for a token pair. No bearer token is sent.
func (c *Client) Login(ctx context.Context, username, password string) (*model.TokenPair, error) {
	var resp dto.TokenPairResponse
	req := dto.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login/", nil, req, &resp, false); err != nil {
		return nil, err
	}
	return &model.TokenPair{Access: resp.Access, Refresh: resp.Refresh}, nil
}

// Register creates an account. Field-level rejections come back as *ValidationError.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	req := dto.RegisterRequest{Username: username, Email: email, Password: password}
	err := c.do(ctx, http.MethodPost, "/auth/register/", nil, req, nil, false)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		if fields, ok := parseFieldErrors(apiErr.Body); ok {
			return &ValidationError{Fields: fields, Err: apiErr}
		}
	}
	return err
}

// ListTests returns the tests in server order.
func (c *Client) ListTests(ctx context.Context) ([]model.Test, error) {
	var resp []dto.TestDTO
	if err := c.do(ctx, http.MethodGet, "/tests/", nil, nil, &resp, true); err != nil {
		return nil, err
	}

	tests := make([]model.Test, 0, len(resp))
	if err := copier.Copy(&tests, &resp); err != nil {
		return nil, fmt.Errorf("map tests: %w", err)
	}
	return tests, nil
}

// ListQuestions returns the questions of a test in presentation order.
func (c *Client) ListQuestions(ctx context.Context, testID model.ID) ([]model.Question, error) {
	var resp []dto.QuestionDTO
	query := url.Values{"test_id": {testID.String()}}
	if err := c.do(ctx, http.MethodGet, "/questions/", query, nil, &resp, true); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(resp))
	if err := copier.Copy(&questions, &resp); err != nil {
		return nil, fmt.Errorf("map questions: %w", err)
	}
	return questions, nil
}

// StartAttempt registers a new play-through of test with the server.
func (c *Client) StartAttempt(ctx context.Context, test model.Test) (*model.Attempt, error) {
	var resp dto.StartAttemptResponse
	req := dto.StartAttemptRequest{TestID: test.ID.String()}
	if err := c.do(ctx, http.MethodPost, "/results/start/", nil, req, &resp, true); err != nil {
		return nil, err
	}
	if resp.AttemptID == "" {
		return nil, errors.New("start attempt: server returned no attempt id")
	}

	return &model.Attempt{
		AttemptID:        string(resp.AttemptID),
		TestID:           test.ID,
		TimeLimitMinutes: test.TimeLimitMinutes,
	}, nil
}

// Submit sends the answers of an attempt. The server accepts one submission
// per attempt.
func (c *Client) Submit(ctx context.Context, attemptID string, answers []model.Answer) (*model.SubmissionResult, error) {
	req := dto.SubmitRequest{
		AttemptID: attemptID,
		Answers:   make([]dto.AnswerDTO, 0, len(answers)),
	}
	for _, a := range answers {
		req.Answers = append(req.Answers, dto.AnswerDTO{
			QuestionID: a.QuestionID.String(),
			Answer:     string(a.Answer),
		})
	}

	var resp dto.SubmissionResponse
	if err := c.do(ctx, http.MethodPost, "/results/submit/", nil, req, &resp, true); err != nil {
		return nil, err
	}
	return &model.SubmissionResult{IQScore: resp.IQScore}, nil
}

// History returns the completed attempts of the current user.
func (c *Client) History(ctx context.Context) ([]model.HistoryEntry, error) {
	var resp []dto.HistoryEntryDTO
	if err := c.do(ctx, http.MethodGet, "/results/history/", nil, nil, &resp, true); err != nil {
		return nil, err
	}

	entries := make([]model.HistoryEntry, 0, len(resp))
	for _, r := range resp {
		entry := model.HistoryEntry{ID: model.ID(r.ID)}
		if r.Score != nil {
			entry.Score = *r.Score
		}
		switch {
		case r.CreatedAt != nil:
			entry.CreatedAt = *r.CreatedAt
		case r.SubmittedAt != nil:
			entry.CreatedAt = *r.SubmittedAt
		}
		if err := copier.Copy(&entry.Test, &r.Test); err != nil {
			return nil, fmt.Errorf("map history test: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authenticated bool) error {
	op := method + " " + path
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if authenticated && c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Str("op", op).Msg("api_request_failed")
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status_code", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api_request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: data}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
