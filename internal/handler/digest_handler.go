package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/service"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// DigestHandler serves digests and engagement insights
type DigestHandler struct {
	digests  *service.DigestService
	insights *service.InsightsService
	log      *logger.Logger
}

// NewDigestHandler creates a new digest handler
func NewDigestHandler(digests *service.DigestService, insights *service.InsightsService, log *logger.Logger) *DigestHandler {
	return &DigestHandler{digests: digests, insights: insights, log: log}
}

// DailyDigest returns the daily digest for ?date=YYYY-MM-DD, or today in the caller's timezone
func (h *DigestHandler) DailyDigest(c *gin.Context) {
	userID, orgID := identity(c)

	d, err := h.digests.Daily(c.Request.Context(), userID, orgID, c.Query("date"))
	if err != nil {
		respondError(c, h.log, "Failed to generate daily digest", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// RunDigest generates a daily or weekly digest on demand. Nothing is persisted.
func (h *DigestHandler) RunDigest(c *gin.Context) {
	userID, orgID := identity(c)

	digestType := domain.DigestType(c.DefaultQuery("digest_type", string(domain.DigestDaily)))
	d, err := h.digests.Run(c.Request.Context(), userID, orgID, digestType, c.Query("date"))
	if err != nil {
		respondError(c, h.log, "Failed to run digest", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Insights summarizes the caller's engagement over ?days= (7 to 90, default 30)
func (h *DigestHandler) Insights(c *gin.Context) {
	userID, orgID := identity(c)

	var query struct {
		Days int `form:"days"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "Invalid query", err)
		return
	}

	insights, err := h.insights.Insights(c.Request.Context(), userID, orgID, query.Days)
	if err != nil {
		respondError(c, h.log, "Failed to compute insights", err)
		return
	}
	c.JSON(http.StatusOK, insights)
}
