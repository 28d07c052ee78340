package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/internal/middleware"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// InvitationHandler exposes the invitation lifecycle.
type InvitationHandler struct {
	invitations core.InvitationService
	logger      *zap.Logger
}

// NewInvitationHandler creates an InvitationHandler.
func NewInvitationHandler(invitations core.InvitationService, logger *zap.Logger) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, logger: logger}
}

// List handles GET /invitations.
func (h *InvitationHandler) List(c *gin.Context) {
	invs, err := h.invitations.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list invitations", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invs)
}

// Get handles GET /invitations/:id.
func (h *InvitationHandler) Get(c *gin.Context) {
	inv, err := h.invitations.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// Create handles POST /invitations.
func (h *InvitationHandler) Create(c *gin.Context) {
	var req models.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "A valid email is required")
		return
	}
	actor := c.GetString(middleware.ContextUIDKey)
	inv, err := h.invitations.Create(c.Request.Context(), req, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// RequestAccess handles POST /access-requests. The authenticated
// identity requests access for its own email; an admin approves or rejects
// it later.
func (h *InvitationHandler) RequestAccess(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok || identity.Email == "" {
		fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	inv, err := h.invitations.RequestAccess(c.Request.Context(), identity.Email)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// Decide handles POST /invitations/:id/decision.
func (h *InvitationHandler) Decide(c *gin.Context) {
	var req models.DecideInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid decision payload")
		return
	}
	actor := c.GetString(middleware.ContextUIDKey)
	inv, err := h.invitations.Decide(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// UpdateExpiry handles PATCH /invitations/:id/expiry.
func (h *InvitationHandler) UpdateExpiry(c *gin.Context) {
	var req models.UpdateExpiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "expiry is required")
		return
	}
	expiry, err := time.Parse(time.RFC3339, req.Expiry)
	if err != nil {
		fail(c, http.StatusBadRequest, "expiry must be an RFC 3339 timestamp")
		return
	}
	actor := c.GetString(middleware.ContextUIDKey)
	inv, err := h.invitations.UpdateExpiry(c.Request.Context(), c.Param("id"), expiry, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
