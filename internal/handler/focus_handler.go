package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/service"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// FocusHandler handles focus mode and focus block requests
type FocusHandler struct {
	service *service.FocusService
	log     *logger.Logger
}

// NewFocusHandler creates a new focus handler
func NewFocusHandler(service *service.FocusService, log *logger.Logger) *FocusHandler {
	return &FocusHandler{service: service, log: log}
}

// EnableFocusMode turns focus mode on, optionally for a number of minutes
func (h *FocusHandler) EnableFocusMode(c *gin.Context) {
	userID, orgID := identity(c)

	var req domain.EnableFocusModeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request", err)
		return
	}

	status, err := h.service.Enable(c.Request.Context(), userID, orgID, &req)
	if err != nil {
		respondError(c, h.log, "Failed to enable focus mode", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// DisableFocusMode turns focus mode off
func (h *FocusHandler) DisableFocusMode(c *gin.Context) {
	userID, orgID := identity(c)

	status, err := h.service.Disable(c.Request.Context(), userID, orgID)
	if err != nil {
		respondError(c, h.log, "Failed to disable focus mode", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// FocusModeStatus reports whether focus mode is on and until when notifications are held
func (h *FocusHandler) FocusModeStatus(c *gin.Context) {
	userID, orgID := identity(c)

	status, err := h.service.Status(c.Request.Context(), userID, orgID)
	if err != nil {
		respondError(c, h.log, "Failed to get focus mode status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListFocusBlocks returns current and upcoming blocks, or all with include_past=true
func (h *FocusHandler) ListFocusBlocks(c *gin.Context) {
	userID, orgID := identity(c)

	var query struct {
		IncludePast bool `form:"include_past"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "Invalid query", err)
		return
	}

	blocks, err := h.service.ListBlocks(c.Request.Context(), userID, orgID, query.IncludePast)
	if err != nil {
		respondError(c, h.log, "Failed to list focus blocks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": blocks, "total": len(blocks)})
}

// CreateFocusBlock stores an explicit suppression interval
func (h *FocusHandler) CreateFocusBlock(c *gin.Context) {
	userID, orgID := identity(c)

	var req domain.CreateFocusBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	block, err := h.service.CreateBlock(c.Request.Context(), userID, orgID, &req)
	if err != nil {
		respondError(c, h.log, "Failed to create focus block", err)
		return
	}
	c.JSON(http.StatusCreated, block)
}

// DeleteFocusBlock removes one of the caller's blocks
func (h *FocusHandler) DeleteFocusBlock(c *gin.Context) {
	userID, orgID := identity(c)

	if err := h.service.DeleteBlock(c.Request.Context(), c.Param("id"), userID, orgID); err != nil {
		respondError(c, h.log, "Failed to delete focus block", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Focus block deleted"})
}
