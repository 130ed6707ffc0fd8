// Package api exposes the leaderboard and quiz proxy over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/event"
	"github.com/victornm/quizmaster/internal/leaderboard"
)

type Config struct {
	Router      gin.IRouter
	EventBus    *event.Bus
	Leaderboard Leaderboard
	Quiz        QuizSource
	// Health is pinged by /healthz, optional.
	Health Pinger
	// Redis receives leaderboard notifications when set.
	Redis        Redis
	PubsubPrefix string
	AllowOrigins []string
}

type Leaderboard interface {
	Submit(ctx context.Context, req leaderboard.SubmitRequest) (*domain.LeaderboardEntry, error)
	Top(ctx context.Context, req leaderboard.TopRequest) ([]domain.LeaderboardEntry, error)
	Subscribe(ctx context.Context, category string) (<-chan []domain.LeaderboardEntry, func(), error)
}

type QuizSource interface {
	Fetch(ctx context.Context, q domain.QuestionQuery) (json.RawMessage, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ls     Leaderboard
	quiz   QuizSource
	health Pinger

	redis  Redis
	prefix string

	upgrader websocket.Upgrader
}

func New(c Config) *API {
	a := &API{
		ls:     c.Leaderboard,
		quiz:   c.Quiz,
		health: c.Health,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(c.AllowOrigins),
		},
	}

	r := c.Router
	r.GET("/healthz", a.Healthz)
	r.POST("/leaderboard", a.SubmitScore)
	r.GET("/leaderboard", a.GetLeaderboard)
	r.GET("/leaderboard/stream", a.StreamLeaderboard)
	r.GET("/quiz", a.GetQuiz)

	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

func (a *API) Healthz(c *gin.Context) {
	if a.health != nil {
		if err := a.health.Ping(c.Request.Context()); err != nil {
			writeErrorStatus(c, http.StatusServiceUnavailable, "Service unavailable", err)
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

// checkOrigin allows every origin when none are configured or "*" is listed.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}
