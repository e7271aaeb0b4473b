package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/conversation"
	"conversation-service/internal/notify"
)

func statusFromError(err error) int {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, conversation.ErrInvalidArgument), errors.Is(err, notify.ErrUnknownKind):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors are logged and
// answered with fallback so storage details never reach the client.
func respondError(c *gin.Context, err error, fallback string) {
	c.JSON(errorBody(c, err, fallback))
}

func errorBody(c *gin.Context, err error, fallback string) (int, gin.H) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), fallback, "error", err, "request_id", requestIDFromContext(c))
		return status, gin.H{"error": fallback}
	}
	return status, gin.H{"error": err.Error()}
}
