package core

import (
	"context"
	"time"

	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// ProvisioningService turns an authenticated identity into a user record,
// gated by the identity's invitation.
type ProvisioningService interface {
	ProvisionUser(ctx context.Context, identity models.Identity) (*models.User, error)
}

// InvitationService owns the invitation lifecycle. Status transitions happen
// only through the named operations here; there is no generic field patch.
type InvitationService interface {
	Create(ctx context.Context, req models.CreateInvitationRequest, invitedBy string) (*models.Invitation, error)
	RequestAccess(ctx context.Context, email string) (*models.Invitation, error)
	Decide(ctx context.Context, id string, req models.DecideInvitationRequest, decidedBy string) (*models.Invitation, error)
	UpdateExpiry(ctx context.Context, id string, expiry time.Time, updatedBy string) (*models.Invitation, error)
	MarkJoined(ctx context.Context, id, uid string) error
	MarkDeleted(ctx context.Context, email, deletedBy, deletedUID string) error
	GetByID(ctx context.Context, id string) (*models.Invitation, error)
	List(ctx context.Context) ([]*models.Invitation, error)
}

// RoleService manages role documents and their assignment to users,
// maintaining each user's cached allowed-route union.
type RoleService interface {
	GrantRole(ctx context.Context, uid, roleName, grantedBy string) error
	RevokeRole(ctx context.Context, uid, roleName, revokedBy string) error
	// ReconcileRole recomputes allowedRoutes for every user holding the role.
	// Called after a role's own route map changes.
	ReconcileRole(ctx context.Context, roleName string) (int, error)

	CreateRole(ctx context.Context, role *models.Role, createdBy string) error
	UpdateRole(ctx context.Context, role *models.Role, updatedBy string) error
	DeleteRole(ctx context.Context, name, deletedBy string) error
	GetRole(ctx context.Context, name string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]*models.Role, error)
}

// EntitlementService manages named deployment-environment access on user
// records.
type EntitlementService interface {
	GrantEnvironment(ctx context.Context, uid, envKey, envName, grantedBy string) error
	RevokeEnvironment(ctx context.Context, uid, envKey, revokedBy string) error
}

// UserService exposes user lookup and account teardown.
type UserService interface {
	GetByID(ctx context.Context, uid string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, uid, deletedBy string) error
}

// AuditService records admin actions.
type AuditService interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// AccountDeleter removes an account from the identity provider.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, uid string) error
}
