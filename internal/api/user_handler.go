package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/internal/middleware"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// UserHandler exposes user administration: listing, deletion, role
// assignment and environment entitlements.
type UserHandler struct {
	users        core.UserService
	roles        core.RoleService
	entitlements core.EntitlementService
	logger       *zap.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users core.UserService, roles core.RoleService, entitlements core.EntitlementService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, roles: roles, entitlements: entitlements, logger: logger}
}

// List handles GET /users.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Get handles GET /users/:uid.
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("uid"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /users/:uid.
func (h *UserHandler) Delete(c *gin.Context) {
	uid := c.Param("uid")
	actor := c.GetString(middleware.ContextUIDKey)
	if err := h.users.Delete(c.Request.Context(), uid, actor); err != nil {
		h.logger.Error("failed to delete user", zap.String("uid", uid), zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "User deleted"})
}

// GrantRole handles POST /users/:uid/roles.
func (h *UserHandler) GrantRole(c *gin.Context) {
	var req models.RoleAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "roleName is required")
		return
	}
	uid := c.Param("uid")
	actor := c.GetString(middleware.ContextUIDKey)
	if err := h.roles.GrantRole(c.Request.Context(), uid, req.RoleName, actor); err != nil {
		h.logger.Error("failed to assign role",
			zap.String("uid", uid), zap.String("role", req.RoleName), zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Role assigned"})
}

// RevokeRole handles DELETE /users/:uid/roles/:roleName.
func (h *UserHandler) RevokeRole(c *gin.Context) {
	uid := c.Param("uid")
	roleName := c.Param("roleName")
	actor := c.GetString(middleware.ContextUIDKey)
	if err := h.roles.RevokeRole(c.Request.Context(), uid, roleName, actor); err != nil {
		h.logger.Error("failed to remove role",
			zap.String("uid", uid), zap.String("role", roleName), zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Role removed"})
}

// GrantEnvironment handles POST /users/:uid/environments.
func (h *UserHandler) GrantEnvironment(c *gin.Context) {
	var req models.EnvironmentGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "key and name are required")
		return
	}
	uid := c.Param("uid")
	actor := c.GetString(middleware.ContextUIDKey)
	if err := h.entitlements.GrantEnvironment(c.Request.Context(), uid, req.Key, req.Name, actor); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Environment granted"})
}

// RevokeEnvironment handles DELETE /users/:uid/environments/:envKey.
func (h *UserHandler) RevokeEnvironment(c *gin.Context) {
	uid := c.Param("uid")
	envKey := c.Param("envKey")
	actor := c.GetString(middleware.ContextUIDKey)
	if err := h.entitlements.RevokeEnvironment(c.Request.Context(), uid, envKey, actor); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Environment revoked"})
}
