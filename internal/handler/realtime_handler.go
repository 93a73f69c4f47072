package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vhvplatform/go-smart-notification-service/internal/realtime"
)

// RealtimeHandler upgrades callers to the in-app websocket channel
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler creates a new realtime handler
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Connect registers the caller's socket under (user, organization)
func (h *RealtimeHandler) Connect(c *gin.Context) {
	userID, orgID := identity(c)
	h.hub.ServeWS(c.Writer, c.Request, userID, orgID)
}
