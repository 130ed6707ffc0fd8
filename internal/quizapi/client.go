// Package quizapi talks to the quizapi.io question provider.
package quizapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/errors"
	"github.com/victornm/quizmaster/internal/telemetry"
)

const (
	DefaultURL        = "https://quizapi.io/api/v1"
	DefaultCategory   = "linux"
	DefaultLimit      = 10
	DefaultDifficulty = "easy"

	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

type Config struct {
	URL     string
	Key     string
	Timeout time.Duration
	// HTTPClient overrides the default client, Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client fetches questions with a server-held API key. Every call is a fresh
// request: nothing is retried or cached.
type Client struct {
	url  string
	key  string
	http *http.Client
}

func NewClient(c Config) *Client {
	cl := &Client{
		url:  c.URL,
		key:  c.Key,
		http: c.HTTPClient,
	}
	if cl.url == "" {
		cl.url = DefaultURL
	}
	if cl.http == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		cl.http = &http.Client{Timeout: timeout}
	}
	return cl
}

// WithDefaults fills the unset fields of a query.
func WithDefaults(q domain.QuestionQuery) domain.QuestionQuery {
	if q.Category == "" {
		q.Category = DefaultCategory
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Difficulty == "" {
		q.Difficulty = DefaultDifficulty
	}
	return q
}

// Fetch returns the provider's question array as is.
// Any failure is reported as the same generic Unavailable error; the cause is only logged.
func (c *Client) Fetch(ctx context.Context, q domain.QuestionQuery) (json.RawMessage, error) {
	q = WithDefaults(q)

	body, err := c.fetch(ctx, q)
	if err != nil {
		telemetry.QuizUpstreamRequests.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "quizapi: fetch questions failed",
			"category", q.Category,
			"error", err,
		)
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("Failed to fetch quiz data"),
			errors.WithCause(err),
		)
	}

	telemetry.QuizUpstreamRequests.WithLabelValues("ok").Inc()
	return body, nil
}

// FetchQuestions fetches and decodes a batch of questions.
func (c *Client) FetchQuestions(ctx context.Context, q domain.QuestionQuery) ([]domain.Question, error) {
	body, err := c.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	qs, err := DecodeQuestions(body)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("Failed to fetch quiz data"),
			errors.WithCause(err),
		)
	}
	return qs, nil
}

func (c *Client) fetch(ctx context.Context, q domain.QuestionQuery) (json.RawMessage, error) {
	u, err := url.Parse(c.url + "/questions")
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	u.RawQuery = url.Values{
		"category":   {q.Category},
		"limit":      {strconv.Itoa(q.Limit)},
		"difficulty": {q.Difficulty},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, truncate(b, 256))
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err != nil {
		return nil, fmt.Errorf("upstream body is not a question array: %w", err)
	}

	return b, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
