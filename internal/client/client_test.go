package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizmaster/internal/client"
	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/errors"
)

func TestClient_SubmitScore(t *testing.T) {
	date := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/leaderboard", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req client.SubmitScoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, client.SubmitScoreRequest{Name: "Ann", Score: 8, Category: "Linux", TimeTaken: 61}, req)

		_ = json.NewEncoder(w).Encode(domain.LeaderboardEntry{
			ID: "id-1", Name: req.Name, Score: req.Score, Category: req.Category, TimeTaken: req.TimeTaken, Date: date,
		})
	}))
	t.Cleanup(srv.Close)

	c := client.New(client.Config{URL: srv.URL + "/"})
	e, err := c.SubmitScore(context.Background(), client.SubmitScoreRequest{Name: "Ann", Score: 8, Category: "Linux", TimeTaken: 61})
	require.NoError(t, err)
	assert.Equal(t, "id-1", e.ID)
	assert.True(t, date.Equal(e.Date))
}

func TestClient_Errors(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
		code   errors.Code
		msg    string
	}{
		"bad request":  {http.StatusBadRequest, `{"error":"Category is required"}`, errors.CodeInvalidArgument, "Category is required"},
		"server error": {http.StatusInternalServerError, `{"error":"Error fetching leaderboard"}`, errors.CodeInternal, "Error fetching leaderboard"},
		"no envelope":  {http.StatusBadGateway, `<html>`, errors.CodeInternal, "Bad Gateway"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			_, err := client.New(client.Config{URL: srv.URL}).Top(context.Background(), "Linux")
			require.Error(t, err)

			e := errors.Convert(err)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := client.New(client.Config{URL: srv.URL}).Top(context.Background(), "Linux")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeUnavailable))
}

func TestClient_FetchQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quiz", r.URL.Path)
		assert.Equal(t, "docker", r.URL.Query().Get("category"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("difficulty"))

		_, _ = w.Write([]byte(`[{"id":7,"question":"q","answers":{"answer_a":"x","answer_b":"y"},
			"correct_answers":{"answer_a_correct":"false","answer_b_correct":"true"},
			"multiple_correct_answers":"false"}]`))
	}))
	t.Cleanup(srv.Close)

	qs, err := client.New(client.Config{URL: srv.URL}).FetchQuestions(context.Background(), domain.QuestionQuery{Category: "docker", Limit: 5})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, 7, qs[0].ID)
	assert.Equal(t, domain.FlagTrue, qs[0].Correct[domain.SlotB])
}
