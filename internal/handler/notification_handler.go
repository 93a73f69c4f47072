package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/service"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// NotificationHandler handles HTTP requests for notifications
type NotificationHandler struct {
	service *service.NotificationService
	log     *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(service *service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     log,
	}
}

// ListNotifications returns the caller's ranked, filtered and optionally grouped notifications
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, orgID := identity(c)

	var req domain.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query", err)
		return
	}
	if req.Priority != "" && !req.Priority.Valid() {
		badRequest(c, "Invalid priority", nil)
		return
	}
	if req.Type != "" && !req.Type.Valid() {
		badRequest(c, "Invalid notification_type", nil)
		return
	}

	resp, err := h.service.List(c.Request.Context(), userID, orgID, req)
	if err != nil {
		respondError(c, h.log, "Failed to list notifications", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateNotification creates a notification for the recipient named in the body
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	_, orgID := identity(c)

	var req domain.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	n, err := h.service.Create(c.Request.Context(), orgID, &req)
	if err != nil {
		respondError(c, h.log, "Failed to create notification", err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// GetNotification retrieves a single notification by ID
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	userID, orgID := identity(c)

	n, err := h.service.Get(c.Request.Context(), c.Param("id"), userID, orgID)
	if err != nil {
		respondError(c, h.log, "Failed to get notification", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkRead marks one notification read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, orgID := identity(c)

	n, err := h.service.MarkRead(c.Request.Context(), c.Param("id"), userID, orgID)
	if err != nil {
		respondError(c, h.log, "Failed to mark notification read", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkManyRead marks the listed notifications read
func (h *NotificationHandler) MarkManyRead(c *gin.Context) {
	userID, orgID := identity(c)

	var req domain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	updated, err := h.service.MarkManyRead(c.Request.Context(), req.NotificationIDs, userID, orgID)
	if err != nil {
		respondError(c, h.log, "Failed to mark notifications read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Notifications marked as read",
		"updated": updated,
	})
}

// MarkAllRead marks every unread notification of the caller read
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, orgID := identity(c)

	updated, err := h.service.MarkAllRead(c.Request.Context(), userID, orgID)
	if err != nil {
		respondError(c, h.log, "Failed to mark all notifications read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "All notifications marked as read",
		"updated": updated,
	})
}

// Dismiss dismisses one notification
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	userID, orgID := identity(c)

	n, err := h.service.Dismiss(c.Request.Context(), c.Param("id"), userID, orgID)
	if err != nil {
		respondError(c, h.log, "Failed to dismiss notification", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkActionTaken records that the caller acted on a notification
func (h *NotificationHandler) MarkActionTaken(c *gin.Context) {
	userID, orgID := identity(c)

	n, err := h.service.MarkActionTaken(c.Request.Context(), c.Param("id"), userID, orgID)
	if err != nil {
		respondError(c, h.log, "Failed to mark action taken", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// DeleteNotification removes one notification
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, orgID := identity(c)

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), userID, orgID); err != nil {
		respondError(c, h.log, "Failed to delete notification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

// SubmitFeedback records relevance feedback, rating or spam marking
func (h *NotificationHandler) SubmitFeedback(c *gin.Context) {
	userID, orgID := identity(c)

	var fb domain.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	if err := h.service.SubmitFeedback(c.Request.Context(), c.Param("id"), userID, orgID, fb); err != nil {
		respondError(c, h.log, "Failed to submit feedback", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Feedback recorded"})
}
