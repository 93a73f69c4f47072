package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/service"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// PreferencesHandler handles notification preferences requests
type PreferencesHandler struct {
	service *service.PreferenceService
	log     *logger.Logger
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(service *service.PreferenceService, log *logger.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		service: service,
		log:     log,
	}
}

// GetPreferences returns the caller's preferences, creating defaults on first access
func (h *PreferencesHandler) GetPreferences(c *gin.Context) {
	userID, orgID := identity(c)

	prefs, err := h.service.GetOrCreate(c.Request.Context(), userID, orgID)
	if err != nil {
		respondError(c, h.log, "Failed to get preferences", err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences merges the supplied fields into the caller's preferences
func (h *PreferencesHandler) UpdatePreferences(c *gin.Context) {
	userID, orgID := identity(c)

	var update domain.PreferenceUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	prefs, err := h.service.Update(c.Request.Context(), userID, orgID, &update)
	if err != nil {
		respondError(c, h.log, "Failed to update preferences", err)
		return
	}
	h.log.Info("Preferences updated", "user_id", userID, "tenant_id", orgID)
	c.JSON(http.StatusOK, prefs)
}
