package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
)

type PreferenceService interface {
	GetPreferences(ctx context.Context, userID string) models.Preferences
	SetPreferences(ctx context.Context, userID string, partial models.Preferences) (models.Preferences, error)
}

// PreferenceHandler exposes the caller's notification preferences.
type PreferenceHandler struct {
	prefs PreferenceService
}

func NewPreferenceHandler(prefs PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs}
}

func (h *PreferenceHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/preferences", h.GetPreferences)
	rg.PATCH("/preferences", h.UpdatePreferences)
}

func (h *PreferenceHandler) GetPreferences(c *gin.Context) {
	prefs := h.prefs.GetPreferences(c.Request.Context(), userIDFromContext(c))
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreferences merges the given kinds; kinds left out keep their value.
func (h *PreferenceHandler) UpdatePreferences(c *gin.Context) {
	var req map[models.NotificationKind]bool
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no preferences given"})
		return
	}

	prefs, err := h.prefs.SetPreferences(c.Request.Context(), userIDFromContext(c), models.Preferences(req))
	if err != nil {
		respondError(c, err, "could not update preferences")
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}
