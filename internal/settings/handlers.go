// Package settings serves per-user preferences stored in user_settings.
package settings

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/respond"
	"github.com/linkedgrow/dashboard/internal/scraper"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

type Handler struct {
	store store.Settings
	log   *zap.Logger
}

func NewHandler(s store.Settings, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: s, log: log}
}

// GetLinkedIn returns the stored LinkedIn username, "" when unset.
func (h *Handler) GetLinkedIn(c *gin.Context) {
	userID := auth.UserID(c)
	username, err := h.store.GetSetting(c.Request.Context(), userID, models.SettingLinkedInUsername)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error("load linkedin username failed", zap.String("user_id", userID), zap.Error(err))
		respond.Internal(c, "Failed to load settings", nil)
		return
	}
	respond.OK(c, gin.H{"username": username})
}

// PutLinkedIn stores the LinkedIn username. Profile URLs are accepted.
func (h *Handler) PutLinkedIn(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	username := scraper.NormalizeUsername(req.Username)
	if err := validateLinkedIn(map[string]interface{}{"username": username}); err != nil {
		h.log.Debug("linkedin username rejected", zap.Error(err))
		respond.BadRequest(c, "username must be a LinkedIn username or profile URL")
		return
	}

	userID := auth.UserID(c)
	if err := h.store.SetSetting(c.Request.Context(), userID, models.SettingLinkedInUsername, username); err != nil {
		h.log.Error("save linkedin username failed", zap.String("user_id", userID), zap.Error(err))
		respond.Internal(c, "Failed to save settings", nil)
		return
	}
	respond.OK(c, gin.H{"username": username})
}
