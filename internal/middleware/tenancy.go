package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

const (
	// TenantIDHeader carries the caller's organization id
	TenantIDHeader = "X-Tenant-ID"
	// UserIDHeader carries the authenticated user id set by the gateway
	UserIDHeader = "X-User-ID"

	tenantIDKey = "tenant_id"
	userIDKey   = "user_id"
)

// identifiers allow alphanumerics, hyphens, underscores and dots
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,128}$`)

// IdentityMiddleware requires X-Tenant-ID and X-User-ID and stores them on the
// gin context. Every notification route is scoped by this pair.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(TenantIDHeader)
		if tenantID == "" {
			abortIdentity(c, "TENANT_ID_REQUIRED", "X-Tenant-ID header is required for all tenant operations")
			return
		}
		if !identifierRegex.MatchString(tenantID) {
			abortIdentity(c, "INVALID_TENANT_ID",
				"X-Tenant-ID must be 3 to 128 alphanumeric characters, hyphens, underscores or dots")
			return
		}

		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Missing user identifier",
				"message": "X-User-ID header is required",
				"code":    "USER_ID_REQUIRED",
			})
			return
		}
		if !identifierRegex.MatchString(userID) {
			abortIdentity(c, "INVALID_USER_ID",
				"X-User-ID must be 3 to 128 alphanumeric characters, hyphens, underscores or dots")
			return
		}

		c.Set(tenantIDKey, tenantID)
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func abortIdentity(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid identity",
		"message": message,
		"code":    code,
	})
}

// GetTenantID returns the organization id stored by IdentityMiddleware
func GetTenantID(c *gin.Context) string {
	return c.GetString(tenantIDKey)
}

// GetUserID returns the user id stored by IdentityMiddleware
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
