package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/conversation"
	"conversation-service/internal/models"
)

// ThreadService is the gateway the thread endpoints drive.
type ThreadService interface {
	CreateOrGetThread(ctx context.Context, initiatorID, recipientID string) (models.Thread, bool, error)
	ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error)
	GetThreadForUser(ctx context.Context, threadID int64, userID string) (models.Thread, error)
	AcceptThread(ctx context.Context, threadID int64, userID string) (models.Thread, error)
	ArchiveThread(ctx context.Context, threadID int64, userID string) (models.Thread, error)
	MuteThread(ctx context.Context, threadID int64, userID string) (models.Thread, error)
	DeleteThread(ctx context.Context, threadID int64, userID string) error
	AppendMessage(ctx context.Context, threadID int64, senderID, content string, jobContext *models.JobContext) (models.Message, error)
	ListMessages(ctx context.Context, threadID int64, limit int) ([]models.Message, error)
	SnapshotJob(ctx context.Context, jobID string) (*models.JobContext, error)
}

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
)

// ThreadHandler serves the thread and message endpoints.
type ThreadHandler struct {
	threads ThreadService
}

func NewThreadHandler(threads ThreadService) *ThreadHandler {
	return &ThreadHandler{threads: threads}
}

func (h *ThreadHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/threads", h.ListThreads)
	rg.POST("/threads", h.StartThread)
	rg.GET("/threads/:thread_id", h.GetThread)
	rg.POST("/threads/:thread_id/accept", h.AcceptThread)
	rg.POST("/threads/:thread_id/archive", h.ArchiveThread)
	rg.POST("/threads/:thread_id/mute", h.MuteThread)
	rg.DELETE("/threads/:thread_id", h.DeleteThread)
	rg.GET("/threads/:thread_id/messages", h.ListMessages)
	rg.POST("/threads/:thread_id/messages", h.PostMessage)
}

type threadResponse struct {
	models.Thread
	State models.ThreadState `json:"state"`
	Muted bool               `json:"muted"`
}

func newThreadResponse(t models.Thread, userID string) threadResponse {
	return threadResponse{Thread: t, State: t.StateFor(userID), Muted: t.HasMuted(userID)}
}

// ListThreads returns the caller's threads. view selects all, active, requests or archived.
func (h *ThreadHandler) ListThreads(c *gin.Context) {
	userID := userIDFromContext(c)

	threads, err := h.threads.ListThreadsForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to load threads")
		return
	}

	switch view := c.DefaultQuery("view", "all"); view {
	case "all":
	case "active":
		threads = conversation.ActiveThreads(threads, userID)
	case "requests":
		threads = conversation.RequestThreads(threads, userID)
	case "archived":
		threads = conversation.ArchivedThreads(threads, userID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown view " + strconv.Quote(view)})
		return
	}

	resp := make([]threadResponse, 0, len(threads))
	for _, t := range threads {
		resp = append(resp, newThreadResponse(t, userID))
	}
	c.JSON(http.StatusOK, gin.H{"threads": resp})
}

// StartThread finds or creates the thread with recipient_id and optionally sends a first message.
func (h *ThreadHandler) StartThread(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipient_id" binding:"required"`
		Content     string `json:"content"`
		JobID       string `json:"job_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	ctx := c.Request.Context()

	var job *models.JobContext
	if strings.TrimSpace(req.Content) != "" {
		var err error
		if job, err = h.threads.SnapshotJob(ctx, req.JobID); err != nil {
			respondError(c, err, "failed to load job")
			return
		}
	}

	thread, created, err := h.threads.CreateOrGetThread(ctx, userID, req.RecipientID)
	if err != nil {
		respondError(c, err, "could not create thread")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	body := gin.H{"thread": newThreadResponse(thread, userID)}

	if strings.TrimSpace(req.Content) != "" {
		msg, err := h.threads.AppendMessage(ctx, thread.ID, userID, req.Content, job)
		if err != nil {
			// The thread exists either way; the client retries with POST /threads/:thread_id/messages.
			status, errBody := errorBody(c, err, "failed to store message")
			errBody["thread"] = body["thread"]
			c.JSON(status, errBody)
			return
		}
		body["message"] = msg
	}
	c.JSON(status, body)
}

func (h *ThreadHandler) GetThread(c *gin.Context) {
	threadID, ok := parseThreadID(c)
	if !ok {
		return
	}
	userID := userIDFromContext(c)

	thread, err := h.threads.GetThreadForUser(c.Request.Context(), threadID, userID)
	if err != nil {
		respondError(c, err, "failed to load thread")
		return
	}
	c.JSON(http.StatusOK, newThreadResponse(thread, userID))
}

func (h *ThreadHandler) AcceptThread(c *gin.Context) {
	h.updateThread(c, h.threads.AcceptThread, "could not accept thread")
}

func (h *ThreadHandler) ArchiveThread(c *gin.Context) {
	h.updateThread(c, h.threads.ArchiveThread, "could not archive thread")
}

func (h *ThreadHandler) MuteThread(c *gin.Context) {
	h.updateThread(c, h.threads.MuteThread, "could not mute thread")
}

func (h *ThreadHandler) updateThread(c *gin.Context, update func(context.Context, int64, string) (models.Thread, error), failure string) {
	threadID, ok := parseThreadID(c)
	if !ok {
		return
	}
	userID := userIDFromContext(c)

	thread, err := update(c.Request.Context(), threadID, userID)
	if err != nil {
		respondError(c, err, failure)
		return
	}
	c.JSON(http.StatusOK, newThreadResponse(thread, userID))
}

// DeleteThread permanently removes the thread for both participants.
func (h *ThreadHandler) DeleteThread(c *gin.Context) {
	threadID, ok := parseThreadID(c)
	if !ok {
		return
	}

	if err := h.threads.DeleteThread(c.Request.Context(), threadID, userIDFromContext(c)); err != nil {
		respondError(c, err, "could not delete thread")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMessages returns the latest messages of a thread in send order.
func (h *ThreadHandler) ListMessages(c *gin.Context) {
	threadID, ok := parseThreadID(c)
	if !ok {
		return
	}

	limit := defaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	if limit == 0 || limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	ctx := c.Request.Context()
	if _, err := h.threads.GetThreadForUser(ctx, threadID, userIDFromContext(c)); err != nil {
		respondError(c, err, "failed to load thread")
		return
	}

	msgs, err := h.threads.ListMessages(ctx, threadID, limit)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage appends a message, optionally carrying a snapshot of job_id.
func (h *ThreadHandler) PostMessage(c *gin.Context) {
	threadID, ok := parseThreadID(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
		JobID   string `json:"job_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	job, err := h.threads.SnapshotJob(ctx, req.JobID)
	if err != nil {
		respondError(c, err, "failed to load job")
		return
	}

	msg, err := h.threads.AppendMessage(ctx, threadID, userIDFromContext(c), req.Content, job)
	if err != nil {
		respondError(c, err, "failed to store message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func parseThreadID(c *gin.Context) (int64, bool) {
	threadID, err := strconv.ParseInt(c.Param("thread_id"), 10, 64)
	if err != nil || threadID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return 0, false
	}
	return threadID, true
}
