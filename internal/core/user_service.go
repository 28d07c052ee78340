package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/db"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// userService implements UserService.
type userService struct {
	userRepo    db.UserRepository
	accounts    AccountDeleter
	invitations InvitationService
	audit       AuditService
	logger      *zap.Logger
}

// NewUserService creates a UserService.
func NewUserService(
	userRepo db.UserRepository,
	accounts AccountDeleter,
	invitations InvitationService,
	audit AuditService,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo:    userRepo,
		accounts:    accounts,
		invitations: invitations,
		audit:       audit,
		logger:      logger,
	}
}

func (s *userService) GetByID(ctx context.Context, uid string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user '%s': %w", uid, err)
	}
	return user, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email '%s': %w", email, err)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Delete tears down a user account. The identity-provider account and the
// user document are deleted independently; one failing does not block the
// other. Both failing is fatal. Exactly one failing is logged as a partial
// success and still reported as overall success, accepting the data
// inconsistency. On the success path the email's invitation is marked
// deleted so the email can be re-invited.
func (s *userService) Delete(ctx context.Context, uid, deletedBy string) error {
	// The email must be captured before anything is deleted; it drives the
	// invitation bookkeeping afterwards.
	user, err := s.GetByID(ctx, uid)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return fmt.Errorf("user '%s' has no email; cannot reconcile invitation", uid)
	}

	accountErr := s.accounts.DeleteAccount(ctx, uid)
	docErr := s.userRepo.Delete(ctx, uid)

	if accountErr != nil && docErr != nil {
		return fmt.Errorf("failed to delete user '%s': auth: %v; document: %v", uid, accountErr, docErr)
	}
	if accountErr != nil {
		s.logger.Warn("partial success deleting user: auth account survives without a document",
			zap.String("uid", uid), zap.Error(accountErr))
	}
	if docErr != nil {
		s.logger.Warn("partial success deleting user: document survives without an auth account",
			zap.String("uid", uid), zap.Error(docErr))
	}

	if err := s.invitations.MarkDeleted(ctx, user.Email, deletedBy, uid); err != nil {
		s.logger.Warn("user deleted but invitation bookkeeping failed",
			zap.String("uid", uid),
			zap.String("email", user.Email),
			zap.Error(err))
	}

	s.audit.Record(ctx, models.AuditLog{
		Actor: deletedBy, Action: "USER_DELETE",
		TargetType: "USER", TargetID: uid,
		Details: map[string]string{"email": user.Email},
	})
	return nil
}
