package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beetlebot/skitrip-cli/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeEngineError maps errors returned while waiting on an engine.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "search timed out")
	case errors.Is(err, context.Canceled):
		c.Status(499)
	case errors.Is(err, core.ErrStopped):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// writeSubmitError answers 400 for a rejected query and defers to
// writeEngineError when the engine itself could not take it.
func writeSubmitError(c *gin.Context, err error) {
	if errors.Is(err, core.ErrStopped) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		writeEngineError(c, err)
		return
	}
	writeError(c, http.StatusBadRequest, err.Error())
}
