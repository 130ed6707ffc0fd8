package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/errors"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type streamMessage struct {
	Type    string                    `json:"type"`
	Payload []domain.LeaderboardEntry `json:"payload"`
}

// StreamLeaderboard pushes the top list of a category over a websocket,
// first the current list and then every update.
func (a *API) StreamLeaderboard(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		writeError(c, errors.InvalidArgument("Category is required"))
		return
	}

	ctx := c.Request.Context()
	updates, cancel, err := a.ls.Subscribe(ctx, category)
	if err != nil {
		writeError(c, err)
		return
	}
	defer cancel()

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.ErrorContext(ctx, "api: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The reader only handles control frames and notices the client leaving.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return

		case entries, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(streamMessage{Type: "leaderboard", Payload: entries}); err != nil {
				slog.InfoContext(ctx, "api: websocket write failed", "category", category, "error", err)
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
