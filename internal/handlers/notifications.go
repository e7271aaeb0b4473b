package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
	"conversation-service/internal/notify"
)

// NotificationDispatcher queues notifications raised outside the message flow.
type NotificationDispatcher interface {
	Enqueue(userID string, kind models.NotificationKind, data notify.Data) bool
}

// NotificationHandler lets other services raise preference-gated notifications,
// such as endorsements and profile views.
type NotificationHandler struct {
	dispatcher NotificationDispatcher
}

func NewNotificationHandler(dispatcher NotificationDispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher}
}

func (h *NotificationHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/notifications", h.Notify)
}

// Notify queues a valid request and answers 202; delivery happens later and its
// outcome is not reported back. A full queue answers 503 so the producer can retry.
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req struct {
		UserID      string `json:"user_id" binding:"required"`
		Kind        string `json:"kind" binding:"required"`
		SenderName  string `json:"sender_name"`
		CompanyName string `json:"company_name"`
		Link        string `json:"link"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := models.NotificationKind(strings.TrimSpace(req.Kind))
	if !models.IsKnownKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown notification kind"})
		return
	}

	queued := h.dispatcher.Enqueue(req.UserID, kind, notify.Data{
		SenderName:  req.SenderName,
		CompanyName: req.CompanyName,
		Link:        req.Link,
	})
	if !queued {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notification queue full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
