package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conversation-service/internal/logger"
	"conversation-service/internal/observability"
	"conversation-service/internal/telemetry"
)

const RequestIDHeader = "X-Request-Id"

// RequestID reuses the caller's request id or mints one, echoes it back and
// attaches it, with the client address, to the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := observability.ClientInfoFromRequest(c.Request)
		requestID := client.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{RequestID: requestID})
		ctx = telemetry.WithClientIP(ctx, client.IP)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
