package db

import (
	"context"

	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// UserSnapshot is one observation of a watched user document.
type UserSnapshot struct {
	User   *models.User
	Exists bool
}

// UserSubscription is a live, cancellable stream of user-document snapshots.
// Updates is closed when the subscription ends; Err reports why. Stop must be
// called before establishing a new subscription for the same consumer.
type UserSubscription interface {
	Updates() <-chan UserSnapshot
	Err() error
	Stop()
}

// UserRepository defines the interface for user document storage.
type UserRepository interface {
	GetByID(ctx context.Context, uid string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// ListByRole returns every user whose roles list contains roleName.
	ListByRole(ctx context.Context, roleName string) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, uid string) error
	// Watch establishes a live subscription on a single user document.
	Watch(ctx context.Context, uid string) (UserSubscription, error)
}

// RoleRepository defines the interface for role document storage. Roles are
// keyed by name.
type RoleRepository interface {
	GetByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]*models.Role, error)
	Create(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, name string) error
}

// InvitationRepository defines the interface for invitation document storage.
type InvitationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Invitation, error)
	// FindLiveByEmail returns the non-deleted invitation for the email, or
	// ErrNotFound when only deleted invitations (or none) exist.
	FindLiveByEmail(ctx context.Context, email string) (*models.Invitation, error)
	List(ctx context.Context) ([]*models.Invitation, error)
	Create(ctx context.Context, inv *models.Invitation) error
	Update(ctx context.Context, inv *models.Invitation) error
}

// AuditRepository defines the interface for audit log storage.
type AuditRepository interface {
	Create(ctx context.Context, entry models.AuditLog) error
}
