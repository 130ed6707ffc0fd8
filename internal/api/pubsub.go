package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizmaster/internal/domain"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	LeaderboardNotification struct {
		Category string                    `json:"category"`
		Entries  []domain.LeaderboardEntry `json:"entries"`
	}
)

// PublishLeaderboardUpdated notifies the category channel and the channel
// shared by all categories.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := LeaderboardNotification{
		Category: l.Category,
		Entries:  l.Entries,
	}
	if data.Entries == nil {
		data.Entries = []domain.LeaderboardEntry{}
	}

	var eg errgroup.Group
	for _, ch := range []string{a.categoryChannel(l.Category), a.allChannel()} {
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) categoryChannel(category string) string {
	return fmt.Sprintf("%s:leaderboard:%s", a.prefix, category)
}

func (a *API) allChannel() string {
	return fmt.Sprintf("%s:leaderboard", a.prefix)
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
