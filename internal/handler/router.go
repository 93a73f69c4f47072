package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vhvplatform/go-smart-notification-service/internal/middleware"
)

// Handlers bundles the HTTP handlers mounted by NewRouter
type Handlers struct {
	Notifications *NotificationHandler
	Preferences   *PreferencesHandler
	Focus         *FocusHandler
	Digests       *DigestHandler
	Realtime      *RealtimeHandler
	Health        *HealthHandler
}

// NewRouter mounts every route. Routes under /api/v1 require caller identity
// and are rate limited per tenant.
func NewRouter(h Handlers, limiter *middleware.TenantRateLimiter, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(extra...)

	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.IdentityMiddleware(), middleware.RateLimitMiddleware(limiter))
	{
		v1.GET("/ws", h.Realtime.Connect)

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", h.Notifications.ListNotifications)
			notifications.POST("", h.Notifications.CreateNotification)
			notifications.POST("/mark-read", h.Notifications.MarkManyRead)
			notifications.PUT("/mark-all-read", h.Notifications.MarkAllRead)
			notifications.GET("/:id", h.Notifications.GetNotification)
			notifications.PUT("/:id/read", h.Notifications.MarkRead)
			notifications.PUT("/:id/dismiss", h.Notifications.Dismiss)
			notifications.PUT("/:id/action", h.Notifications.MarkActionTaken)
			notifications.DELETE("/:id", h.Notifications.DeleteNotification)
			notifications.POST("/:id/feedback", h.Notifications.SubmitFeedback)

			notifications.GET("/preferences", h.Preferences.GetPreferences)
			notifications.PUT("/preferences", h.Preferences.UpdatePreferences)

			notifications.GET("/focus-mode", h.Focus.FocusModeStatus)
			notifications.POST("/focus-mode/enable", h.Focus.EnableFocusMode)
			notifications.POST("/focus-mode/disable", h.Focus.DisableFocusMode)
			notifications.GET("/focus-blocks", h.Focus.ListFocusBlocks)
			notifications.POST("/focus-blocks", h.Focus.CreateFocusBlock)
			notifications.DELETE("/focus-blocks/:id", h.Focus.DeleteFocusBlock)

			notifications.GET("/digest/daily", h.Digests.DailyDigest)
			notifications.POST("/digests/run", h.Digests.RunDigest)
			notifications.GET("/insights", h.Digests.Insights)
		}
	}
	return router
}
