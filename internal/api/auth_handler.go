package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/internal/middleware"
)

// AuthHandler resolves the authenticated identity into a user record.
type AuthHandler struct {
	users       core.UserService
	provisioner core.ProvisioningService
	logger      *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(users core.UserService, provisioner core.ProvisioningService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, provisioner: provisioner, logger: logger}
}

// InitializeSession handles POST /session/initialize. Called by the client
// after sign-in: returns the existing user record, or provisions one from
// the identity's invitation.
func (h *AuthHandler) InitializeSession(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), identity.UID)
	if err == nil {
		c.JSON(http.StatusOK, user)
		return
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		h.logger.Error("failed to look up user during session init",
			zap.String("uid", identity.UID), zap.Error(err))
		respondServiceError(c, err)
		return
	}

	user, err = h.provisioner.ProvisionUser(c.Request.Context(), identity)
	if err != nil {
		h.logger.Info("provisioning refused",
			zap.String("uid", identity.UID),
			zap.String("email", identity.Email),
			zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Me handles GET /me and returns the authenticated user's record.
func (h *AuthHandler) Me(c *gin.Context) {
	uid := c.GetString(middleware.ContextUIDKey)
	user, err := h.users.GetByID(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
