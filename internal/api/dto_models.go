package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
)

// ErrorResponse is the JSON body for failed operations.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SuccessResponse is the JSON body for operations without a payload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// fail writes a structured error response.
func fail(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Success: false, Message: message})
}

// respondServiceError maps service errors to HTTP responses. Precondition
// failures carry their human-readable sentinel message; anything unexpected
// becomes a generic 500 (details stay in the server log).
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrNotInvited),
		errors.Is(err, core.ErrInvitationRejected),
		errors.Is(err, core.ErrInvitationPending),
		errors.Is(err, core.ErrInvitationExpired),
		errors.Is(err, core.ErrAlreadyJoined):
		fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrRoleNotFound),
		errors.Is(err, core.ErrInvitationNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrDuplicateInvite),
		errors.Is(err, core.ErrRoleExists):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrIllegalTransition):
		fail(c, http.StatusUnprocessableEntity, err.Error())
	default:
		fail(c, http.StatusInternalServerError, "The operation could not be completed")
	}
}
