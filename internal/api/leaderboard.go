package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizmaster/internal/errors"
	"github.com/victornm/quizmaster/internal/leaderboard"
)

type submitScoreRequest struct {
	Name      string `json:"name"`
	Score     *int   `json:"score"`
	Category  string `json:"category"`
	TimeTaken int    `json:"timeTaken"`
}

func (a *API) SubmitScore(c *gin.Context) {
	var req submitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("Invalid request body"),
			errors.WithCause(err),
		))
		return
	}

	e, err := a.ls.Submit(c.Request.Context(), leaderboard.SubmitRequest{
		Name:      req.Name,
		Score:     req.Score,
		Category:  req.Category,
		TimeTaken: req.TimeTaken,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, e)
}

func (a *API) GetLeaderboard(c *gin.Context) {
	entries, err := a.ls.Top(c.Request.Context(), leaderboard.TopRequest{
		Category: c.Query("category"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
