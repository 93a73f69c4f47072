package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": GetTenantID(c), "user": GetUserID(c)})
	})
	r.GET("/", handlers...)
	return r
}

func request(r http.Handler, tenant, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if tenant != "" {
		req.Header.Set(TenantIDHeader, tenant)
	}
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentityMiddleware(t *testing.T) {
	r := newRouter(IdentityMiddleware())

	tests := []struct {
		name         string
		tenant, user string
		wantStatus   int
	}{
		{"valid", "org-1", "user-1", http.StatusOK},
		{"missing tenant", "", "user-1", http.StatusBadRequest},
		{"short tenant", "o1", "user-1", http.StatusBadRequest},
		{"bad tenant characters", "org;drop", "user-1", http.StatusBadRequest},
		{"missing user", "org-1", "", http.StatusUnauthorized},
		{"bad user characters", "org-1", "user 1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(r, tt.tenant, tt.user)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	w := request(r, "org-1", "user-1")
	assert.JSONEq(t, `{"tenant":"org-1","user":"user-1"}`, w.Body.String())
}

func TestRateLimitMiddleware_PerTenant(t *testing.T) {
	r := newRouter(IdentityMiddleware(), RateLimitMiddleware(NewTenantRateLimiter(0.0001, 2)))

	assert.Equal(t, http.StatusOK, request(r, "org-1", "user-1").Code)
	assert.Equal(t, http.StatusOK, request(r, "org-1", "user-2").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, "org-1", "user-1").Code)

	assert.Equal(t, http.StatusOK, request(r, "org-2", "user-1").Code, "other tenants keep their own budget")
}

func TestGetLimiter_ReturnsSameInstance(t *testing.T) {
	rl := NewTenantRateLimiter(10, 10)
	assert.Same(t, rl.GetLimiter("org-1"), rl.GetLimiter("org-1"))
	assert.NotSame(t, rl.GetLimiter("org-1"), rl.GetLimiter("org-2"))
}
