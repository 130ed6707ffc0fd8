package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/errors"
)

// GetQuiz proxies a question batch from the quiz provider. The body is
// passed through untouched so clients see the provider's own format.
func (a *API) GetQuiz(c *gin.Context) {
	q := domain.QuestionQuery{
		Category:   c.Query("category"),
		Difficulty: c.Query("difficulty"),
	}

	if s, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(c, errors.InvalidArgument("Limit must be a positive integer"))
			return
		}
		q.Limit = n
	}

	body, err := a.quiz.Fetch(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
