package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/db"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// provisioningActor is recorded as the grantor for role/environment grants
// applied automatically during provisioning.
const provisioningActor = "system:provisioning"

// provisioningService implements ProvisioningService.
type provisioningService struct {
	userRepo       db.UserRepository
	invitationRepo db.InvitationRepository
	invitations    InvitationService
	roles          RoleService
	entitlements   EntitlementService
	logger         *zap.Logger
	now            func() time.Time
}

// NewProvisioningService creates a ProvisioningService.
func NewProvisioningService(
	userRepo db.UserRepository,
	invitationRepo db.InvitationRepository,
	invitations InvitationService,
	roles RoleService,
	entitlements EntitlementService,
	logger *zap.Logger,
) ProvisioningService {
	return &provisioningService{
		userRepo:       userRepo,
		invitationRepo: invitationRepo,
		invitations:    invitations,
		roles:          roles,
		entitlements:   entitlements,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ProvisionUser creates a user record for a newly authenticated identity,
// gated by the identity's invitation. The invitation's roles and environments
// are applied sequentially after the record exists; a grant failure surfaces
// as an error and leaves the user partially provisioned (best-effort, no
// rollback). On success the invitation is marked joined and the user is
// re-read so the returned record reflects the applied grants.
func (s *provisioningService) ProvisionUser(ctx context.Context, identity models.Identity) (*models.User, error) {
	inv, err := s.findInvitation(ctx, identity.Email)
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case models.StatusRejected:
		return nil, ErrInvitationRejected
	case models.StatusRequested:
		return nil, ErrInvitationPending
	case models.StatusExpired:
		return nil, ErrInvitationExpired
	}
	// Lazy expiry outranks the joined gate: a joined invitation past its
	// expiry reports expired.
	if inv.ExpiredAt(s.now()) {
		return nil, ErrInvitationExpired
	}
	if inv.Status == models.StatusJoined {
		// Also covers an account deleted out-of-band whose invitation was
		// never reset.
		return nil, ErrAlreadyJoined
	}

	now := s.now()
	user := &models.User{
		UID:                 identity.UID,
		Email:               identity.Email,
		Name:                identity.Name,
		ImageURL:            identity.ImageURL,
		Roles:               []string{},
		AllowedRoutes:       map[string]string{},
		AllowedEnvironments: map[string]string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user '%s': %w", identity.UID, err)
	}

	for _, roleName := range inv.Roles {
		if err := s.roles.GrantRole(ctx, identity.UID, roleName, provisioningActor); err != nil {
			return nil, fmt.Errorf("user created but role grant '%s' failed: %w", roleName, err)
		}
	}
	for envKey, envName := range inv.Environments {
		if err := s.entitlements.GrantEnvironment(ctx, identity.UID, envKey, envName, provisioningActor); err != nil {
			return nil, fmt.Errorf("user created but environment grant '%s' failed: %w", envKey, err)
		}
	}

	if err := s.invitations.MarkJoined(ctx, inv.ID, identity.UID); err != nil {
		return nil, fmt.Errorf("user provisioned but invitation update failed: %w", err)
	}

	s.logger.Info("user provisioned",
		zap.String("uid", identity.UID),
		zap.String("email", identity.Email),
		zap.Strings("roles", inv.Roles))

	provisioned, err := s.userRepo.GetByID(ctx, identity.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read provisioned user '%s': %w", identity.UID, err)
	}
	return provisioned, nil
}

// findInvitation resolves the email's live invitation. Deleted invitations do
// not count: an email whose invitation was deleted is simply not invited.
func (s *provisioningService) findInvitation(ctx context.Context, email string) (*models.Invitation, error) {
	inv, err := s.invitationRepo.FindLiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotInvited
		}
		return nil, fmt.Errorf("failed to look up invitation for '%s': %w", email, err)
	}
	return inv, nil
}
