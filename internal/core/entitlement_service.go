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

// entitlementService implements EntitlementService.
type entitlementService struct {
	userRepo db.UserRepository
	userLock *db.KeyedLock
	audit    AuditService
	logger   *zap.Logger
	now      func() time.Time
}

// NewEntitlementService creates an EntitlementService sharing the per-user
// lock with the role service.
func NewEntitlementService(userRepo db.UserRepository, userLock *db.KeyedLock, audit AuditService, logger *zap.Logger) EntitlementService {
	return &entitlementService{
		userRepo: userRepo,
		userLock: userLock,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GrantEnvironment merges the environment entry into the user's allowed set.
// Re-granting an existing key just overwrites the display name.
func (s *entitlementService) GrantEnvironment(ctx context.Context, uid, envKey, envName, grantedBy string) error {
	s.userLock.Lock(uid)
	defer s.userLock.Unlock(uid)

	user, err := s.getUser(ctx, uid)
	if err != nil {
		return err
	}
	if user.AllowedEnvironments == nil {
		user.AllowedEnvironments = make(map[string]string)
	}
	user.AllowedEnvironments[envKey] = envName
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to grant environment '%s' to user '%s': %w", envKey, uid, err)
	}
	s.audit.Record(ctx, models.AuditLog{
		Actor: grantedBy, Action: "ENVIRONMENT_GRANT",
		TargetType: "USER", TargetID: uid,
		Details: map[string]string{"environment": envKey},
	})
	return nil
}

// RevokeEnvironment removes the environment key from the user's allowed set.
// Revoking an absent key is a no-op.
func (s *entitlementService) RevokeEnvironment(ctx context.Context, uid, envKey, revokedBy string) error {
	s.userLock.Lock(uid)
	defer s.userLock.Unlock(uid)

	user, err := s.getUser(ctx, uid)
	if err != nil {
		return err
	}
	delete(user.AllowedEnvironments, envKey)
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to revoke environment '%s' from user '%s': %w", envKey, uid, err)
	}
	s.audit.Record(ctx, models.AuditLog{
		Actor: revokedBy, Action: "ENVIRONMENT_REVOKE",
		TargetType: "USER", TargetID: uid,
		Details: map[string]string{"environment": envKey},
	})
	return nil
}

func (s *entitlementService) getUser(ctx context.Context, uid string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user '%s': %w", uid, err)
	}
	return user, nil
}
