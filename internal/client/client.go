// Package client is the player's typed client for the quizmaster HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/errors"
	"github.com/victornm/quizmaster/internal/quizapi"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	// URL is the server base URL, e.g. http://localhost:8080.
	URL     string
	Timeout time.Duration
}

type Client struct {
	url  string
	http *http.Client
}

func New(c Config) *Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:  strings.TrimRight(c.URL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

type SubmitScoreRequest struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Category  string `json:"category"`
	TimeTaken int    `json:"timeTaken"`
}

// SubmitScore stores a result and returns the record as saved by the server.
func (c *Client) SubmitScore(ctx context.Context, req SubmitScoreRequest) (*domain.LeaderboardEntry, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var e domain.LeaderboardEntry
	if err := c.do(ctx, http.MethodPost, "/leaderboard", nil, bytes.NewReader(b), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Top returns the best entries of a category.
func (c *Client) Top(ctx context.Context, category string) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	q := url.Values{"category": {category}}
	if err := c.do(ctx, http.MethodGet, "/leaderboard", q, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// FetchQuestions fetches a batch of questions through the server's quiz proxy.
func (c *Client) FetchQuestions(ctx context.Context, query domain.QuestionQuery) ([]domain.Question, error) {
	q := url.Values{}
	if query.Category != "" {
		q.Set("category", query.Category)
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Difficulty != "" {
		q.Set("difficulty", query.Difficulty)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/quiz", q, nil, &raw); err != nil {
		return nil, err
	}
	return quizapi.DecodeQuestions(raw)
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, out any) error {
	u := c.url + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("%s %s: server unreachable", method, path),
			errors.WithCause(err),
		)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if err := json.Unmarshal(b, &eb); err != nil || eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
		return errors.New(errors.FromHTTPStatus(resp.StatusCode), errors.WithMessagef("%s", eb.Error))
	}

	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
