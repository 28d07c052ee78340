package models

// CreateInvitationRequest is the payload for inviting an email address.
type CreateInvitationRequest struct {
	Email        string            `json:"email" binding:"required,email"`
	Roles        []string          `json:"roles"`
	Environments map[string]string `json:"environments"`
	Expiry       string            `json:"expiry,omitempty"` // RFC 3339, optional
}

// DecideInvitationRequest approves or rejects a requested invitation.
type DecideInvitationRequest struct {
	Approve      bool              `json:"approve"`
	Roles        []string          `json:"roles"`
	Environments map[string]string `json:"environments"`
}

// UpdateExpiryRequest changes an invitation's expiry.
type UpdateExpiryRequest struct {
	Expiry string `json:"expiry" binding:"required"` // RFC 3339
}

// RoleAssignmentRequest grants or revokes a role on a user.
type RoleAssignmentRequest struct {
	RoleName string `json:"roleName" binding:"required"`
}

// EnvironmentGrantRequest grants a named environment to a user.
type EnvironmentGrantRequest struct {
	Key  string `json:"key" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// UpsertRoleRequest creates or updates a role document.
type UpsertRoleRequest struct {
	Description string            `json:"description"`
	Routes      map[string]string `json:"routes" binding:"required"`
}

// SelectEnvironmentRequest records the caller's backend environment choice.
type SelectEnvironmentRequest struct {
	Key string `json:"key" binding:"required"`
}
