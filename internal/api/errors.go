package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizmaster/internal/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError renders err as the {"error": message} envelope. The cause of a
// server error is logged, never returned.
func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	status := e.HTTPStatusCode()
	writeErrorStatus(c, status, e.Message, err)
}

func writeErrorStatus(c *gin.Context, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
