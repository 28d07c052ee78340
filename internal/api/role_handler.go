package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/internal/middleware"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// RoleHandler exposes role CRUD and reconciliation.
type RoleHandler struct {
	roles  core.RoleService
	logger *zap.Logger
}

// NewRoleHandler creates a RoleHandler.
func NewRoleHandler(roles core.RoleService, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, logger: logger}
}

// List handles GET /roles.
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list roles", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// Get handles GET /roles/:name.
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.roles.GetRole(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// Create handles POST /roles/:name.
func (h *RoleHandler) Create(c *gin.Context) {
	var req models.UpsertRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "routes map is required")
		return
	}
	role := &models.Role{
		Name:        c.Param("name"),
		Description: req.Description,
		Routes:      req.Routes,
	}
	actor := c.GetString(middleware.ContextUIDKey)
	if err := h.roles.CreateRole(c.Request.Context(), role, actor); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// Update handles PUT /roles/:name. Changing a role's route map reconciles
// every user holding the role.
func (h *RoleHandler) Update(c *gin.Context) {
	var req models.UpsertRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "routes map is required")
		return
	}
	role := &models.Role{
		Name:        c.Param("name"),
		Description: req.Description,
		Routes:      req.Routes,
	}
	actor := c.GetString(middleware.ContextUIDKey)
	if err := h.roles.UpdateRole(c.Request.Context(), role, actor); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// Delete handles DELETE /roles/:name.
func (h *RoleHandler) Delete(c *gin.Context) {
	actor := c.GetString(middleware.ContextUIDKey)
	if err := h.roles.DeleteRole(c.Request.Context(), c.Param("name"), actor); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Role deleted"})
}

// Reconcile handles POST /roles/:name/reconcile and recomputes the allowed
// routes of every user holding the role.
func (h *RoleHandler) Reconcile(c *gin.Context) {
	name := c.Param("name")
	updated, err := h.roles.ReconcileRole(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("failed to reconcile role", zap.String("role", name), zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: fmt.Sprintf("Reconciled %d users", updated),
	})
}
