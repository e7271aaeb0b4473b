package handlers

import (
	"github.com/gin-gonic/gin"

	"conversation-service/internal/logger"
)

// Keys written by the middleware package.
const (
	requestIDKey = "request_id"
	userIDKey    = "userID"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	return logger.GetLogFields(c.Request.Context()).RequestID
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(userIDKey)
}
