package middleware

import (
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// Context keys set by the auth middleware.
const (
	ContextIdentityKey = "identity"
	ContextUIDKey      = "userID"
)

// ErrorResponse is the JSON error body. Defined here as well as in the api
// package to avoid an import cycle.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AuthMiddleware verifies Firebase ID tokens.
type AuthMiddleware struct {
	authClient *auth.Client
	logger     *zap.Logger
}

// NewAuthMiddleware creates an AuthMiddleware.
func NewAuthMiddleware(authClient *auth.Client, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{authClient: authClient, logger: logger}
}

// VerifyToken authenticates the request from the Authorization bearer token
// and stores the resolved identity in the Gin context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Authorization header is required"})
			return
		}
		parts := strings.Split(header, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		token, err := m.authClient.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			m.logger.Warn("failed to verify ID token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Invalid or expired authentication token"})
			return
		}

		identity := models.Identity{UID: token.UID}
		if email, ok := token.Claims["email"].(string); ok {
			identity.Email = email
		}
		if name, ok := token.Claims["name"].(string); ok {
			identity.Name = name
		}
		if picture, ok := token.Claims["picture"].(string); ok {
			identity.ImageURL = picture
		}

		c.Set(ContextUIDKey, token.UID)
		c.Set(ContextIdentityKey, identity)
		c.Next()
	}
}

// IdentityFromContext returns the identity stored by VerifyToken.
func IdentityFromContext(c *gin.Context) (models.Identity, bool) {
	raw, ok := c.Get(ContextIdentityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := raw.(models.Identity)
	return identity, ok
}
