package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/internal/environments"
	"github.com/parampatil/dashboardv2-sub000/internal/middleware"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// EnvironmentHandler exposes the environment registry, per-user selection,
// and backend connectivity.
type EnvironmentHandler struct {
	registry *environments.Registry
	selector *environments.Selector
	pool     *environments.ConnPool
	users    core.UserService
	logger   *zap.Logger
}

// NewEnvironmentHandler creates an EnvironmentHandler.
func NewEnvironmentHandler(
	registry *environments.Registry,
	selector *environments.Selector,
	pool *environments.ConnPool,
	users core.UserService,
	logger *zap.Logger,
) *EnvironmentHandler {
	return &EnvironmentHandler{
		registry: registry,
		selector: selector,
		pool:     pool,
		users:    users,
		logger:   logger,
	}
}

// List handles GET /environments and returns the registry.
func (h *EnvironmentHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.List())
}

// Active handles GET /environments/active: the environment the caller's
// session currently targets.
func (h *EnvironmentHandler) Active(c *gin.Context) {
	uid := c.GetString(middleware.ContextUIDKey)
	user, err := h.users.GetByID(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	key := h.selector.Active(c.Request.Context(), uid, user.AllowedEnvironments)
	env, _ := h.registry.Get(key)
	c.JSON(http.StatusOK, env)
}

// Select handles POST /environments/select.
func (h *EnvironmentHandler) Select(c *gin.Context) {
	var req models.SelectEnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "key is required")
		return
	}
	uid := c.GetString(middleware.ContextUIDKey)
	user, err := h.users.GetByID(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if err := h.selector.Select(c.Request.Context(), uid, req.Key, user.AllowedEnvironments); err != nil {
		fail(c, http.StatusForbidden, err.Error())
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Environment selected"})
}

// Health handles GET /environments/health/:key and reports the gRPC
// connectivity state of the environment's backend.
func (h *EnvironmentHandler) Health(c *gin.Context) {
	key := c.Param("key")
	if _, ok := h.registry.Get(key); !ok {
		fail(c, http.StatusNotFound, "Unknown environment")
		return
	}
	if _, err := h.pool.Conn(key); err != nil {
		h.logger.Warn("environment backend not reachable", zap.String("environment", key), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"key": key, "state": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "state": h.pool.State(key)})
}
