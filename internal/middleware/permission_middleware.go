package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
)

// PermissionMiddleware gates endpoints on the caller's allowed-route map.
// The same route keys that drive dashboard navigation gate the API
// server-side.
type PermissionMiddleware struct {
	users  core.UserService
	logger *zap.Logger
}

// NewPermissionMiddleware creates a PermissionMiddleware.
func NewPermissionMiddleware(users core.UserService, logger *zap.Logger) *PermissionMiddleware {
	return &PermissionMiddleware{users: users, logger: logger}
}

// Require allows the request through only when the authenticated user's
// allowedRoutes contains the given route path. Must run after VerifyToken.
func (m *PermissionMiddleware) Require(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(ContextUIDKey)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Authentication required"})
			return
		}
		user, err := m.users.GetByID(c.Request.Context(), uid)
		if err != nil {
			m.logger.Warn("permission check failed to load user",
				zap.String("uid", uid), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Message: "Access denied"})
			return
		}
		if _, ok := user.AllowedRoutes[route]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Message: "Access denied"})
			return
		}
		c.Next()
	}
}
