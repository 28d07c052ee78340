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

// roleService implements RoleService.
type roleService struct {
	userRepo db.UserRepository
	roleRepo db.RoleRepository
	userLock *db.KeyedLock
	audit    AuditService
	logger   *zap.Logger
	now      func() time.Time
}

// NewRoleService creates a RoleService. The userLock serializes every
// read-modify-write on a user document; it must be shared with the
// entitlement service so role and environment mutations on the same user do
// not interleave.
func NewRoleService(
	userRepo db.UserRepository,
	roleRepo db.RoleRepository,
	userLock *db.KeyedLock,
	audit AuditService,
	logger *zap.Logger,
) RoleService {
	return &roleService{
		userRepo: userRepo,
		roleRepo: roleRepo,
		userLock: userLock,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GrantRole appends roleName to the user's roles and merges the role's routes
// into the cached allowed-route map, with the granted role winning on path
// collision. Granting the same role twice appends it twice; the route merge
// is idempotent per path.
func (s *roleService) GrantRole(ctx context.Context, uid, roleName, grantedBy string) error {
	s.userLock.Lock(uid)
	defer s.userLock.Unlock(uid)

	user, role, err := s.fetchUserAndRole(ctx, uid, roleName)
	if err != nil {
		return err
	}

	merged := make(map[string]string, len(user.AllowedRoutes)+len(role.Routes))
	for path, name := range user.AllowedRoutes {
		merged[path] = name
	}
	for path, name := range role.Routes {
		merged[path] = name
	}

	user.Roles = append(user.Roles, roleName)
	user.AllowedRoutes = merged
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to assign role '%s' to user '%s': %w", roleName, uid, err)
	}

	s.audit.Record(ctx, models.AuditLog{
		Actor: grantedBy, Action: "ROLE_GRANT",
		TargetType: "USER", TargetID: uid,
		Details: map[string]string{"role": roleName},
	})
	return nil
}

// RevokeRole removes every occurrence of roleName from the user's roles and
// rebuilds the allowed-route map from scratch out of the remaining roles, in
// list order. Routes granted only by the removed role are dropped.
func (s *roleService) RevokeRole(ctx context.Context, uid, roleName, revokedBy string) error {
	s.userLock.Lock(uid)
	defer s.userLock.Unlock(uid)

	user, err := s.getUser(ctx, uid)
	if err != nil {
		return err
	}

	remaining := make([]string, 0, len(user.Roles))
	for _, name := range user.Roles {
		if name != roleName {
			remaining = append(remaining, name)
		}
	}
	user.Roles = remaining

	routes, err := s.foldRoutes(ctx, remaining)
	if err != nil {
		return err
	}
	user.AllowedRoutes = routes
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to remove role '%s' from user '%s': %w", roleName, uid, err)
	}

	s.audit.Record(ctx, models.AuditLog{
		Actor: revokedBy, Action: "ROLE_REVOKE",
		TargetType: "USER", TargetID: uid,
		Details: map[string]string{"role": roleName},
	})
	return nil
}

// ReconcileRole recomputes the allowed-route cache of every user holding the
// role. Returns the number of users updated. Failures on individual users are
// logged and skipped so one bad document does not block the fan-out.
func (s *roleService) ReconcileRole(ctx context.Context, roleName string) (int, error) {
	users, err := s.userRepo.ListByRole(ctx, roleName)
	if err != nil {
		return 0, fmt.Errorf("failed to list users with role '%s': %w", roleName, err)
	}

	updated := 0
	for _, stale := range users {
		uid := stale.UID
		err := func() error {
			s.userLock.Lock(uid)
			defer s.userLock.Unlock(uid)

			user, err := s.getUser(ctx, uid)
			if err != nil {
				return err
			}
			routes, err := s.foldRoutes(ctx, user.Roles)
			if err != nil {
				return err
			}
			user.AllowedRoutes = routes
			user.UpdatedAt = s.now()
			return s.userRepo.Update(ctx, user)
		}()
		if err != nil {
			s.logger.Warn("failed to reconcile user routes",
				zap.String("uid", uid),
				zap.String("role", roleName),
				zap.Error(err))
			continue
		}
		updated++
	}
	return updated, nil
}

// CreateRole stores a new role document.
func (s *roleService) CreateRole(ctx context.Context, role *models.Role, createdBy string) error {
	if _, err := s.roleRepo.GetByName(ctx, role.Name); err == nil {
		return ErrRoleExists
	} else if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("failed to check role '%s': %w", role.Name, err)
	}
	if err := s.roleRepo.Create(ctx, role); err != nil {
		return fmt.Errorf("failed to create role '%s': %w", role.Name, err)
	}
	s.audit.Record(ctx, models.AuditLog{
		Actor: createdBy, Action: "ROLE_CREATE",
		TargetType: "ROLE", TargetID: role.Name,
	})
	return nil
}

// UpdateRole overwrites a role's description and route map, then reconciles
// every holder so the cached route unions pick up the change.
func (s *roleService) UpdateRole(ctx context.Context, role *models.Role, updatedBy string) error {
	if _, err := s.getRole(ctx, role.Name); err != nil {
		return err
	}
	if err := s.roleRepo.Update(ctx, role); err != nil {
		return fmt.Errorf("failed to update role '%s': %w", role.Name, err)
	}
	updated, err := s.ReconcileRole(ctx, role.Name)
	if err != nil {
		// The role itself is updated; holders will converge on their next
		// grant/revoke or a manual reconcile.
		s.logger.Warn("role updated but reconcile failed",
			zap.String("role", role.Name),
			zap.Error(err))
	}
	s.audit.Record(ctx, models.AuditLog{
		Actor: updatedBy, Action: "ROLE_UPDATE",
		TargetType: "ROLE", TargetID: role.Name,
		Details: map[string]string{"reconciledUsers": fmt.Sprintf("%d", updated)},
	})
	return nil
}

// DeleteRole removes the role document. Users still listing the role keep the
// dangling name; their route caches drop the role's routes on next revoke or
// reconcile.
func (s *roleService) DeleteRole(ctx context.Context, name, deletedBy string) error {
	if _, err := s.getRole(ctx, name); err != nil {
		return err
	}
	if err := s.roleRepo.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete role '%s': %w", name, err)
	}
	s.audit.Record(ctx, models.AuditLog{
		Actor: deletedBy, Action: "ROLE_DELETE",
		TargetType: "ROLE", TargetID: name,
	})
	return nil
}

func (s *roleService) GetRole(ctx context.Context, name string) (*models.Role, error) {
	return s.getRole(ctx, name)
}

func (s *roleService) ListRoles(ctx context.Context) ([]*models.Role, error) {
	roles, err := s.roleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// fetchUserAndRole loads both documents concurrently.
func (s *roleService) fetchUserAndRole(ctx context.Context, uid, roleName string) (*models.User, *models.Role, error) {
	type roleResult struct {
		role *models.Role
		err  error
	}
	roleCh := make(chan roleResult, 1)
	go func() {
		role, err := s.getRole(ctx, roleName)
		roleCh <- roleResult{role, err}
	}()

	user, userErr := s.getUser(ctx, uid)
	res := <-roleCh
	if userErr != nil {
		return nil, nil, userErr
	}
	if res.err != nil {
		return nil, nil, res.err
	}
	return user, res.role, nil
}

// foldRoutes merges the route maps of the named roles in order; a later role
// wins on path collision. Duplicate names are fetched again, which is
// harmless since the merge is idempotent per key. A missing role document is
// skipped: it contributes no routes.
func (s *roleService) foldRoutes(ctx context.Context, roleNames []string) (map[string]string, error) {
	routes := make(map[string]string)
	for _, name := range roleNames {
		role, err := s.roleRepo.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				s.logger.Warn("user lists a role that no longer exists", zap.String("role", name))
				continue
			}
			return nil, fmt.Errorf("failed to fetch role '%s': %w", name, err)
		}
		for path, display := range role.Routes {
			routes[path] = display
		}
	}
	return routes, nil
}

func (s *roleService) getUser(ctx context.Context, uid string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user '%s': %w", uid, err)
	}
	return user, nil
}

func (s *roleService) getRole(ctx context.Context, name string) (*models.Role, error) {
	role, err := s.roleRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role '%s': %w", name, err)
	}
	return role, nil
}
