package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vhvplatform/go-smart-notification-service/internal/middleware"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// respondError writes err with the status its code maps to. Server-side
// failures are logged with the caller's identity.
func respondError(c *gin.Context, log *logger.Logger, msg string, err error) {
	status := errors.HTTPStatus(err)
	if status >= 500 {
		log.Error(msg, "error", err,
			"tenant_id", middleware.GetTenantID(c), "user_id", middleware.GetUserID(c), "path", c.FullPath())
		c.JSON(status, errors.NewInternalError(msg, err))
		return
	}
	c.JSON(status, errors.From(err))
}

func badRequest(c *gin.Context, msg string, err error) {
	appErr := errors.NewValidationError(msg, err)
	if err != nil {
		appErr.Message = msg + ": " + err.Error()
	}
	c.JSON(errors.HTTPStatus(appErr), appErr)
}

func identity(c *gin.Context) (userID, orgID string) {
	return middleware.GetUserID(c), middleware.GetTenantID(c)
}
